package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/d4sign_downloader/internal/document"
	"github.com/italolelis/d4sign_downloader/internal/downloader/progress"
	"github.com/italolelis/d4sign_downloader/internal/filestore"
	"github.com/italolelis/d4sign_downloader/internal/logctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	dirPerm  = 0755
	filePerm = 0644

	progressInterval = int64(1024 * 1024) // 1MB
)

// HTTPTransferer downloads a URL into a file. The body is written to a temporary file next
// to the destination and renamed into place only after a complete, synced copy.
type HTTPTransferer struct {
	httpClient *http.Client
}

func NewHTTPTransferer(hc *http.Client) *HTTPTransferer {
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &HTTPTransferer{httpClient: hc}
}

var _ document.Transferer = (*HTTPTransferer)(nil)

func (t *HTTPTransferer) Transfer(ctx context.Context, url, destinationPath string) error {
	logger := logctx.LoggerFromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &document.TransferError{Path: destinationPath, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &document.TransferError{Path: destinationPath, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &document.TransferError{Path: destinationPath, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(destinationPath), dirPerm); err != nil {
		return &document.TransferError{Path: destinationPath, Err: fmt.Errorf("failed to create target directory: %w", err)}
	}

	start := time.Now()

	written, err := t.writeAtomic(ctx, resp.Body, resp.ContentLength, destinationPath)
	if err != nil {
		return &document.TransferError{Path: destinationPath, Err: err}
	}

	logger.Debug("transfer completed",
		"path", destinationPath,
		"size", humanize.Bytes(uint64(written)),
		"duration", time.Since(start).String())

	return nil
}

func (t *HTTPTransferer) writeAtomic(ctx context.Context, body io.Reader, total int64, destinationPath string) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)
	partial := filestore.PartialName(destinationPath)

	out, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	cleanup := func() {
		_ = out.Close()
		_ = os.Remove(partial)
	}

	pr := progress.NewReader(body, total, progressInterval, func(written, total int64) {
		if total > 0 {
			logger.Debug("download progress",
				"path", destinationPath,
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		} else {
			logger.Debug("download progress", "path", destinationPath, "downloaded", humanize.Bytes(uint64(written)))
		}
	})

	written, err := io.Copy(out, pr)
	if err != nil {
		cleanup()

		return written, fmt.Errorf("failed to copy file: %w", err)
	}

	if total > 0 && written != total {
		cleanup()

		return written, fmt.Errorf("short body: got %d of %d bytes", written, total)
	}

	if err := out.Sync(); err != nil {
		cleanup()

		return written, fmt.Errorf("failed to sync file: %w", err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(partial)

		return written, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(partial, destinationPath); err != nil {
		_ = os.Remove(partial)

		return written, fmt.Errorf("failed to move file into place: %w", err)
	}

	return written, nil
}
