package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/italolelis/d4sign_downloader/internal/document"
	"github.com/italolelis/d4sign_downloader/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	link  *document.Link
	err   error
	calls int32
}

func (f *fakeResolver) ResolveDownloadLink(ctx context.Context, documentID string) (*document.Link, error) {
	atomic.AddInt32(&f.calls, 1)

	return f.link, f.err
}

type fakeTransferer struct {
	err   error
	calls int32
	urls  []string
}

func (f *fakeTransferer) Transfer(ctx context.Context, url, destinationPath string) error {
	atomic.AddInt32(&f.calls, 1)
	f.urls = append(f.urls, url)

	if f.err != nil {
		return f.err
	}

	return os.WriteFile(destinationPath, []byte("%PDF-1.4"), 0o644)
}

func newDoc(id string) *document.Document {
	return &document.Document{ID: id, DisplayName: "Contrato &amp; Anexo", StatusID: "4", SafeName: "Cofre"}
}

func TestJobRun(t *testing.T) {
	tests := []struct {
		name          string
		doc           *document.Document
		link          *document.Link
		resolveErr    error
		transferErr   error
		wantStatus    document.Status
		wantSuccess   bool
		wantResolves  int32
		wantTransfers int32
		wantFile      bool
	}{
		{
			name:          "downloaded",
			doc:           newDoc("a1"),
			link:          &document.Link{URL: "https://files/a1.pdf", Name: "Contrato"},
			wantStatus:    document.StatusDownloaded,
			wantSuccess:   true,
			wantResolves:  1,
			wantTransfers: 1,
			wantFile:      true,
		},
		{
			name:         "canceled",
			doc:          &document.Document{ID: "c1", DisplayName: "Aditivo &amp; Co", StatusID: document.CanceledStatusID, SafeName: "Cofre"},
			link:         &document.Link{URL: "https://files/c1.pdf"},
			wantStatus:   document.StatusCanceled,
			wantSuccess:  true,
			wantResolves: 0,
		},
		{
			name:         "rate limited",
			doc:          newDoc("r1"),
			link:         &document.Link{ErrorReason: document.DefaultRateLimitReason},
			wantStatus:   document.StatusRateLimited,
			wantResolves: 1,
		},
		{
			name:         "not found",
			doc:          newDoc("n1"),
			link:         &document.Link{ErrorReason: "Documento sem arquivo"},
			wantStatus:   document.StatusNotFound,
			wantResolves: 1,
		},
		{
			name:         "nil link",
			doc:          newDoc("n2"),
			wantStatus:   document.StatusNotFound,
			wantResolves: 1,
		},
		{
			name:         "resolver error",
			doc:          newDoc("f1"),
			resolveErr:   &document.NetworkError{Operation: "resolve_download_link", APIMessage: "reset"},
			wantStatus:   document.StatusFailed,
			wantResolves: 1,
		},
		{
			name:          "transfer error",
			doc:           newDoc("f2"),
			link:          &document.Link{URL: "https://files/f2.pdf"},
			transferErr:   &document.TransferError{Path: "x", StatusCode: 500},
			wantStatus:    document.StatusFailed,
			wantResolves:  1,
			wantTransfers: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			resolver := &fakeResolver{link: tt.link, err: tt.resolveErr}
			transferer := &fakeTransferer{err: tt.transferErr}

			job := NewJob(resolver, filestore.NewGuard(root), transferer, nil, "")

			result := job.Run(context.Background(), tt.doc)

			assert.Equal(t, tt.doc.ID, result.DocumentID)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantResolves, atomic.LoadInt32(&resolver.calls))
			assert.Equal(t, tt.wantTransfers, atomic.LoadInt32(&transferer.calls))

			if tt.wantFile {
				assert.Equal(t, filepath.Join(root, "Cofre", "a1-Contrato.pdf"), result.Path)
				assert.FileExists(t, result.Path)
			}
		})
	}
}

func TestJobRun_CanceledTouchesNothing(t *testing.T) {
	root := t.TempDir()
	doc := &document.Document{ID: "c1", DisplayName: "Aditivo &amp; Co", StatusID: document.CanceledStatusID, SafeName: "Cofre"}

	result := NewJob(&fakeResolver{}, filestore.NewGuard(root), &fakeTransferer{}, nil, "").Run(context.Background(), doc)

	assert.Equal(t, "Aditivo & Co", result.Path)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJobRun_AlreadyDownloadedSkipsResolver(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Cofre")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	existing := filepath.Join(dir, "a1-Contrato.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("%PDF"), 0o644))

	resolver := &fakeResolver{err: errors.New("must not be called")}
	transferer := &fakeTransferer{}

	result := NewJob(resolver, filestore.NewGuard(root), transferer, nil, "").Run(context.Background(), newDoc("a1"))

	assert.Equal(t, document.StatusAlreadyDownloaded, result.Status)
	assert.True(t, result.Success)
	assert.Equal(t, existing, result.Path)
	assert.Zero(t, resolver.calls)
	assert.Zero(t, transferer.calls)
}

func TestJobRun_Idempotent(t *testing.T) {
	root := t.TempDir()
	resolver := &fakeResolver{link: &document.Link{URL: "https://files/a1.pdf", Name: "Contrato"}}
	transferer := &fakeTransferer{}
	job := NewJob(resolver, filestore.NewGuard(root), transferer, nil, "")

	first := job.Run(context.Background(), newDoc("a1"))
	second := job.Run(context.Background(), newDoc("a1"))

	assert.Equal(t, document.StatusDownloaded, first.Status)
	assert.Equal(t, document.StatusAlreadyDownloaded, second.Status)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, int32(1), transferer.calls)
}

func TestJobRun_CustomSentinel(t *testing.T) {
	resolver := &fakeResolver{link: &document.Link{ErrorReason: "quota exceeded"}}

	job := NewJob(resolver, filestore.NewGuard(t.TempDir()), &fakeTransferer{}, nil, "quota exceeded")

	assert.Equal(t, document.StatusRateLimited, job.Run(context.Background(), newDoc("r1")).Status)
}

func TestJobRun_GuardError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Cofre"), nil, 0o644))

	resolver := &fakeResolver{}

	result := NewJob(resolver, filestore.NewGuard(root), &fakeTransferer{}, nil, "").Run(context.Background(), newDoc("a1"))

	assert.Equal(t, document.StatusFailed, result.Status)
	assert.Zero(t, resolver.calls)
}
