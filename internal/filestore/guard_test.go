package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/italolelis/d4sign_downloader/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAndCheck_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cofre", "nested")

	match, exists, err := NewGuard(t.TempDir()).EnsureAndCheck(dir, "abc")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, match)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureAndCheck_PrefixMatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other-x.pdf"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc-Contrato.pdf"), []byte("%PDF"), 0o644))

	match, exists, err := NewGuard(dir).EnsureAndCheck(dir, "abc")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, filepath.Join(dir, "abc-Contrato.pdf"), match)
}

func TestEnsureAndCheck_IgnoresPartialsAndDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(PartialName(filepath.Join(dir, "abc-Contrato.pdf")), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "abc-dir"), 0o755))

	_, exists, err := NewGuard(dir).EnsureAndCheck(dir, "abc")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsureAndCheck_EmptyID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.pdf"), nil, 0o644))

	_, exists, err := NewGuard(dir).EnsureAndCheck(dir, "")
	assert.ErrorIs(t, err, document.ErrEmptyDocumentID)
	assert.False(t, exists)
}

func TestEnsureAndCheck_DirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, _, err := NewGuard(t.TempDir()).EnsureAndCheck(path, "abc")
	assert.Error(t, err)
}

func TestDecodeName(t *testing.T) {
	tests := map[string]string{
		"Contrato &amp; Anexo": "Contrato & Anexo",
		"Jo&atilde;o":          "João",
		"a/b\\c":               "a_b_c",
		"&#47;etc":             "_etc",
		"..":                   "__",
		"plain":                "plain",
		"":                     "",
	}

	for in, want := range tests {
		assert.Equal(t, want, DecodeName(in), in)
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "abc-Contrato & Anexo.pdf", FileName("abc", "Contrato &amp; Anexo"))
	assert.Equal(t, "abc.pdf", FileName("abc", ""))
}

func TestDocumentDir(t *testing.T) {
	g := NewGuard("contratos")

	assert.Equal(t, filepath.Join("contratos", "Cofre & Co"), g.DocumentDir(&document.Document{SafeName: "Cofre &amp; Co"}))
}

func TestPartialName(t *testing.T) {
	p := PartialName(filepath.Join("contratos", "cofre", "abc-x.pdf"))

	assert.Equal(t, filepath.Join("contratos", "cofre", ".abc-x.pdf.part"), p)
	assert.True(t, IsPartial(filepath.Base(p)))
	assert.False(t, IsPartial("abc-x.pdf"))
}
