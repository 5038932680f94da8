// Package document holds the domain types the download orchestrator works with and the
// contracts of the collaborators it depends on.
package document

import "context"

// CanceledStatusID is the D4Sign status code of a canceled document.
const CanceledStatusID = "6"

// DefaultRateLimitReason is the error text D4Sign returns when the API key ran out of
// quota for a method.
const DefaultRateLimitReason = "Esta chave da API já atingiu o tempo limite para este método"

// Document is a remote document as listed by the signing service.
type Document struct {
	ID          string
	DisplayName string
	StatusID    string
	StatusName  string
	SafeName    string
}

func (d *Document) IsCanceled() bool {
	return d.StatusID == CanceledStatusID
}

// Link is the answer to a download link request. An empty URL means no rendition is
// available and ErrorReason says why.
type Link struct {
	URL         string
	Name        string
	ErrorReason string
}

func (l *Link) HasURL() bool {
	return l.URL != ""
}

// IsRateLimited reports whether the vendor refused the link because of quota exhaustion.
func (l *Link) IsRateLimited(sentinel string) bool {
	return l.URL == "" && sentinel != "" && l.ErrorReason == sentinel
}

type Lister interface {
	ListDocuments(ctx context.Context) ([]*Document, error)
}

type LinkResolver interface {
	ResolveDownloadLink(ctx context.Context, documentID string) (*Link, error)
}

// Client is the signing service as seen by the orchestrator.
type Client interface {
	Lister
	LinkResolver
}

// Transferer streams a remote file to a local path.
type Transferer interface {
	Transfer(ctx context.Context, url, destinationPath string) error
}
