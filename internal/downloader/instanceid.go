package downloader

import (
	"os"
	"strconv"

	"github.com/google/uuid"
)

// GenerateRunID returns a unique string for this process (hostname+pid+random), attached to
// every log line of a run.
func GenerateRunID() string {
	host, _ := os.Hostname()

	return host + "-" + strconv.Itoa(os.Getpid()) + "-" + uuid.NewString()[:8]
}
