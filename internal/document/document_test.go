package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusSuccess(t *testing.T) {
	success := map[Status]bool{
		StatusAlreadyDownloaded: true,
		StatusDownloaded:        true,
		StatusCanceled:          true,
		StatusRateLimited:       false,
		StatusNotFound:          false,
		StatusFailed:            false,
	}

	assert.Len(t, Statuses, len(success))

	for _, s := range Statuses {
		assert.Equal(t, success[s], s.Success(), s.String())
	}
}

func TestNewResultAgreesWithStatus(t *testing.T) {
	for _, s := range Statuses {
		r := NewResult("abc", "contratos/abc", s)

		assert.Equal(t, s.Success(), r.Success)
		assert.Equal(t, "abc", r.DocumentID)
		assert.Equal(t, s, r.Status)
	}
}

func TestDocumentIsCanceled(t *testing.T) {
	assert.True(t, (&Document{StatusID: "6"}).IsCanceled())
	assert.False(t, (&Document{StatusID: "4"}).IsCanceled())
	assert.False(t, (&Document{}).IsCanceled())
}

func TestLinkClassification(t *testing.T) {
	tests := []struct {
		name        string
		link        Link
		hasURL      bool
		rateLimited bool
	}{
		{"url", Link{URL: "https://x/y.pdf"}, true, false},
		{"sentinel", Link{ErrorReason: DefaultRateLimitReason}, false, true},
		{"other error", Link{ErrorReason: "Documento não encontrado"}, false, false},
		{"url wins over sentinel", Link{URL: "https://x", ErrorReason: DefaultRateLimitReason}, true, false},
		{"empty", Link{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hasURL, tt.link.HasURL())
			assert.Equal(t, tt.rateLimited, tt.link.IsRateLimited(DefaultRateLimitReason))
		})
	}

	assert.False(t, (&Link{}).IsRateLimited(""))
}
