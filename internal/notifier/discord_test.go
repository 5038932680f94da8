package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier_Notify(t *testing.T) {
	var got map[string]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	n := New(ts.URL)
	require.IsType(t, &DiscordNotifier{}, n)

	require.NoError(t, n.Notify(context.Background(), "pass 1 finished"))
	assert.Equal(t, "pass 1 finished", got["content"])
}

func TestDiscordNotifier_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	err := (&DiscordNotifier{WebhookURL: ts.URL}).Notify(context.Background(), "x")
	assert.ErrorContains(t, err, "status 429")

	err = (&DiscordNotifier{}).Notify(context.Background(), "x")
	assert.ErrorContains(t, err, "webhook URL is not set")
}

func TestNop(t *testing.T) {
	n := New("")

	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
}
