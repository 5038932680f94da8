package document

import (
	"errors"
	"fmt"
)

// ErrEmptyDocumentID is returned when an operation needs a document id and got none.
var ErrEmptyDocumentID = errors.New("document: empty document id")

// NetworkError represents a failed call to the signing service, either at the transport
// level or because the API answered with something that is not a usable response.
type NetworkError struct {
	Operation  string // The operation that failed (e.g., "list_documents", "resolve_download_link")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	APIMessage string // Error message from the API or network layer
	Err        error  // Underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.APIMessage)
	}

	return fmt.Sprintf("network error during %s: %s", e.Operation, e.APIMessage)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TransferError represents a failure while copying a file after a valid link was obtained.
type TransferError struct {
	Path       string // Destination path of the transfer
	StatusCode int    // HTTP status code of the download response, 0 if the copy itself failed
	Err        error  // Underlying error, if any
}

func (e *TransferError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transfer to %s failed (HTTP %d)", e.Path, e.StatusCode)
	}

	return fmt.Sprintf("transfer to %s failed: %v", e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ListingError is returned when the document list could not be fetched. It aborts the pass.
type ListingError struct {
	Page int   // Page being fetched when the listing failed
	Err  error // Underlying error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("failed to list documents (page %d): %v", e.Page, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}
