package progress

import "io"

// Reader wraps an io.Reader and reports progress via a callback every interval bytes and
// once more when the underlying reader is exhausted.
type Reader struct {
	Reader     io.Reader
	Total      int64
	OnProgress func(written int64, total int64)

	totalRead      int64
	lastReport     int64 // bytes since last report
	reportInterval int64
	done           bool
}

func NewReader(r io.Reader, total int64, interval int64, cb func(written int64, total int64)) *Reader {
	return &Reader{
		Reader:         r,
		Total:          total,
		OnProgress:     cb,
		reportInterval: interval,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.totalRead += int64(n)
		pr.lastReport += int64(n)

		if pr.reportInterval > 0 && pr.lastReport >= pr.reportInterval {
			pr.report()
		}
	}

	if err == io.EOF && !pr.done {
		pr.done = true

		if pr.lastReport > 0 {
			pr.report()
		}
	}

	return n, err
}

func (pr *Reader) report() {
	pr.lastReport = 0

	if pr.OnProgress != nil {
		pr.OnProgress(pr.totalRead, pr.Total)
	}
}
