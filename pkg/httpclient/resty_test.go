package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestyClient_QueryAuthAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		assert.Equal(t, "open", r.URL.Query().Get("filter"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "c1"})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, WithQueryParams(map[string]string{"key": "k", "token": "tok"}))

	var out struct {
		ID string `json:"id"`
	}
	resp, err := client.Get(context.Background(), "/cards/c1", map[string]string{"filter": "open"}, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "c1", out.ID)
}

func TestRestyClient_PostReturnsStatusOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	resp, err := client.Post(context.Background(), "/cards", map[string]string{"name": "x"}, map[string]string{"X-Request-ID": "req-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream down", string(resp.Body))
}
