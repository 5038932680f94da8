package document

// Status classifies the outcome of one download job.
type Status string

const (
	StatusAlreadyDownloaded Status = "alreadyDownloaded"
	StatusDownloaded        Status = "downloaded"
	StatusFailed            Status = "failed"
	StatusNotFound          Status = "notFound"
	StatusCanceled          Status = "canceled"
	StatusRateLimited       Status = "rateLimited"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{
	StatusDownloaded,
	StatusAlreadyDownloaded,
	StatusCanceled,
	StatusRateLimited,
	StatusNotFound,
	StatusFailed,
}

// Success reports whether the status leaves nothing left to download.
func (s Status) Success() bool {
	switch s {
	case StatusAlreadyDownloaded, StatusDownloaded, StatusCanceled:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// Result is the immutable outcome of one job attempt.
type Result struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Success    bool   `json:"success"`
	Status     Status `json:"status"`
}

// NewResult builds a Result whose Success flag always agrees with its status.
func NewResult(documentID, path string, status Status) Result {
	return Result{
		DocumentID: documentID,
		Path:       path,
		Success:    status.Success(),
		Status:     status,
	}
}
