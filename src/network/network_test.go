package network

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"signal-hub/src/helpers"
	"signal-hub/src/logger"
	"signal-hub/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, url string, retries int) *HTTPNotifier {
	t.Helper()
	log := logger.NewLogger(nil, "network-test")
	log.SetOutput(io.Discard)

	cfg := &models.MConfig{Hub: models.MHubConfig{PushURL: url, PushRetries: retries, PushTimeoutSeconds: 2}}
	n := NewHTTPNotifier(cfg, log)
	n.backoff = time.Millisecond
	return n
}

func TestNotifyPostsPayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, 0)
	err := n.Notify(context.Background(), map[string]interface{}{"type": "prices", "data": map[string]interface{}{"AAPL": 1}})
	require.NoError(t, err)
	assert.Equal(t, "prices", got["type"])
}

func TestNotifyRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"ok":false,"error":"busy"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, 3)
	require.NoError(t, n.Notify(context.Background(), map[string]interface{}{"type": "prices"}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNotifyDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, 3)
	err := n.Notify(context.Background(), map[string]interface{}{"type": "prices"})
	require.Error(t, err)

	var netErr *helpers.NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNotifyGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, 2)
	require.Error(t, n.Notify(context.Background(), map[string]interface{}{"type": "prices"}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
