package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompleteJSONReturnsMessageContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"memories\":[]}"}}]}`))
	}))
	defer srv.Close()

	original := openRouterURL
	openRouterURL = srv.URL
	defer func() { openRouterURL = original }()

	c := New(Config{APIKey: "test-key", Model: "test-model"})
	content, err := c.CompleteJSON(context.Background(), "system", "user", 0.3, 512)
	require.NoError(t, err)
	require.JSONEq(t, `{"memories":[]}`, content)
}

func TestCompleteJSONSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"rate limited","code":429}}`))
	}))
	defer srv.Close()

	original := openRouterURL
	openRouterURL = srv.URL
	defer func() { openRouterURL = original }()

	c := New(Config{APIKey: "test-key", Model: "test-model"})
	_, err := c.CompleteJSON(context.Background(), "system", "user", 0.3, 512)
	require.ErrorContains(t, err, "rate limited")
}

func TestEnabledRequiresKeyAndModel(t *testing.T) {
	require.False(t, New(Config{}).Enabled())
	require.False(t, New(Config{APIKey: "k"}).Enabled())
	require.False(t, New(Config{Model: "m"}).Enabled())
	require.True(t, New(Config{APIKey: "k", Model: "m"}).Enabled())
}

func TestCompleteJSONErrorsWithoutCredentials(t *testing.T) {
	c := New(Config{})
	_, err := c.CompleteJSON(context.Background(), "system", "user", 0.3, 512)
	require.Error(t, err)
}
