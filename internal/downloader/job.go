package downloader

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/italolelis/d4sign_downloader/internal/document"
	"github.com/italolelis/d4sign_downloader/internal/filestore"
	"github.com/italolelis/d4sign_downloader/internal/logctx"
	"github.com/italolelis/d4sign_downloader/internal/telemetry"
)

// Job classifies and, when needed, downloads one document. It is safe for concurrent use.
type Job struct {
	resolver   document.LinkResolver
	guard      *filestore.Guard
	transferer document.Transferer
	telemetry  *telemetry.Telemetry
	sentinel   string
}

func NewJob(
	resolver document.LinkResolver,
	guard *filestore.Guard,
	transferer document.Transferer,
	tel *telemetry.Telemetry,
	sentinel string,
) *Job {
	if sentinel == "" {
		sentinel = document.DefaultRateLimitReason
	}

	return &Job{
		resolver:   resolver,
		guard:      guard,
		transferer: transferer,
		telemetry:  tel,
		sentinel:   sentinel,
	}
}

// Run never fails: every outcome, including collaborator errors, becomes a Result.
func (j *Job) Run(ctx context.Context, doc *document.Document) document.Result {
	var result document.Result

	j.telemetry.InstrumentJob(ctx, func(ctx context.Context) string {
		result = j.run(ctx, doc)

		return result.Status.String()
	})

	return result
}

func (j *Job) run(ctx context.Context, doc *document.Document) document.Result {
	logger := logctx.LoggerFromContext(ctx).With("document_id", doc.ID)

	if doc.IsCanceled() {
		logger.Debug("document canceled, skipping", "status_name", doc.StatusName)

		return document.NewResult(doc.ID, filestore.DecodeName(doc.DisplayName), document.StatusCanceled)
	}

	dir := j.guard.DocumentDir(doc)

	match, exists, err := j.guard.EnsureAndCheck(dir, doc.ID)
	if err != nil {
		logger.Error("failed to check target directory", "dir", dir, "err", err)

		return document.NewResult(doc.ID, dir, document.StatusFailed)
	}

	if exists {
		logger.Debug("document already downloaded", "path", match)

		return document.NewResult(doc.ID, match, document.StatusAlreadyDownloaded)
	}

	link, err := j.resolver.ResolveDownloadLink(ctx, doc.ID)
	if err != nil {
		logger.Error("failed to resolve download link", "err", err)

		return document.NewResult(doc.ID, dir, document.StatusFailed)
	}

	if link == nil {
		link = &document.Link{}
	}

	return j.classify(ctx, logger, doc, dir, link)
}

func (j *Job) classify(ctx context.Context, logger *slog.Logger, doc *document.Document, dir string, link *document.Link) document.Result {
	target := filepath.Join(dir, filestore.FileName(doc.ID, link.Name))

	switch {
	case link.HasURL():
		if err := j.transferer.Transfer(ctx, link.URL, target); err != nil {
			logger.Error("failed to download document", "path", target, "err", err)

			return document.NewResult(doc.ID, target, document.StatusFailed)
		}

		logger.Info("downloaded document", "path", target)

		return document.NewResult(doc.ID, target, document.StatusDownloaded)
	case link.IsRateLimited(j.sentinel):
		logger.Warn("download link rate limited")

		return document.NewResult(doc.ID, target, document.StatusRateLimited)
	default:
		logger.Warn("no download link available", "reason", link.ErrorReason)

		return document.NewResult(doc.ID, target, document.StatusNotFound)
	}
}
