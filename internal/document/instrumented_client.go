package document

import (
	"context"

	"github.com/italolelis/d4sign_downloader/internal/telemetry"
)

// InstrumentedClient wraps Client with telemetry.
type InstrumentedClient struct {
	client     Client
	telemetry  *telemetry.Telemetry
	clientType string
}

// NewInstrumentedClient creates a new instrumented signing service client.
func NewInstrumentedClient(client Client, tel *telemetry.Telemetry, clientType string) *InstrumentedClient {
	return &InstrumentedClient{
		client:     client,
		telemetry:  tel,
		clientType: clientType,
	}
}

// ListDocuments lists every document with telemetry.
func (c *InstrumentedClient) ListDocuments(ctx context.Context) ([]*Document, error) {
	var result []*Document

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "list_documents", func(ctx context.Context) error {
		result, err = c.client.ListDocuments(ctx)

		return err
	})

	if instrumentedErr != nil {
		c.telemetry.RecordSystemError(c.clientType, "list_documents")

		return nil, instrumentedErr
	}

	return result, nil
}

// ResolveDownloadLink asks for a download link with telemetry.
func (c *InstrumentedClient) ResolveDownloadLink(ctx context.Context, documentID string) (*Link, error) {
	var result *Link

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.clientType, "resolve_download_link", func(ctx context.Context) error {
		result, err = c.client.ResolveDownloadLink(ctx, documentID)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}
