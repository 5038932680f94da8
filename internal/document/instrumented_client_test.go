package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	docs    []*Document
	link    *Link
	listErr error
}

func (s *stubClient) ListDocuments(ctx context.Context) ([]*Document, error) {
	return s.docs, s.listErr
}

func (s *stubClient) ResolveDownloadLink(ctx context.Context, id string) (*Link, error) {
	return s.link, nil
}

func TestInstrumentedClient_PassesThrough(t *testing.T) {
	stub := &stubClient{
		docs: []*Document{{ID: "a1"}},
		link: &Link{URL: "https://files/a1.pdf"},
	}

	c := NewInstrumentedClient(stub, nil, "d4sign")

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stub.docs, docs)

	link, err := c.ResolveDownloadLink(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, stub.link, link)
}

func TestInstrumentedClient_ListError(t *testing.T) {
	cause := &ListingError{Page: 1, Err: errors.New("reset")}

	_, err := NewInstrumentedClient(&stubClient{listErr: cause}, nil, "d4sign").ListDocuments(context.Background())

	var listErr *ListingError
	assert.True(t, errors.As(err, &listErr))
}
