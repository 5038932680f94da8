// Package filestore decides where a document lives on disk and whether it is already there.
package filestore

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/italolelis/d4sign_downloader/internal/document"
)

const (
	dirPerm = 0755

	partialPrefix = "."
	partialSuffix = ".part"
)

var nameReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "")

// Guard resolves document directories under a root and checks them for completed files.
type Guard struct {
	root string
}

func NewGuard(root string) *Guard {
	return &Guard{root: root}
}

// DocumentDir is the directory holding doc's files: the decoded safe name under the root.
func (g *Guard) DocumentDir(doc *document.Document) string {
	return filepath.Join(g.root, DecodeName(doc.SafeName))
}

// EnsureAndCheck creates dir when it does not exist and reports exists=false. Otherwise it
// returns the first regular file in dir whose name starts with documentID.
func (g *Guard) EnsureAndCheck(dir, documentID string) (string, bool, error) {
	if documentID == "" {
		return "", false, document.ErrEmptyDocumentID
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return "", false, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		if strings.HasPrefix(entry.Name(), documentID) {
			return filepath.Join(dir, entry.Name()), true, nil
		}
	}

	return "", false, nil
}

// DecodeName turns a vendor supplied name into a single path element. HTML entities are
// decoded and path separators replaced.
func DecodeName(s string) string {
	name := nameReplacer.Replace(html.UnescapeString(s))

	switch name {
	case ".", "..":
		return strings.Repeat("_", len(name))
	}

	return name
}

// FileName is the final file name of a document download.
func FileName(documentID, linkName string) string {
	name := DecodeName(linkName)
	if name == "" {
		return documentID + ".pdf"
	}

	return documentID + "-" + name + ".pdf"
}

// PartialName is the temporary name a transfer writes to before the final rename.
// It never starts with the document id.
func PartialName(finalPath string) string {
	dir, base := filepath.Split(finalPath)

	return filepath.Join(dir, partialPrefix+base+partialSuffix)
}

// IsPartial reports whether name is a temporary transfer file.
func IsPartial(name string) bool {
	return strings.HasPrefix(name, partialPrefix) && strings.HasSuffix(name, partialSuffix)
}
