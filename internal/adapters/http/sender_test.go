package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/pkg/log"
)

func testWindow() *domain.Window {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	w := domain.NewWindow(start)
	w.Offer("MH12AB1234")
	w.Offer("DL08CA5678")
	w.Close(start.Add(21 * time.Second))
	return w
}

func TestWindowSender_Flush(t *testing.T) {
	var (
		got     domain.WindowPayload
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWindowSender(WindowSenderConfig{URL: srv.URL + "/v1/windows", AuthKey: "secret"}, srv.Client(), log.NewNoopLogger())
	w := testWindow()

	require.NoError(t, s.Flush(context.Background(), w))

	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, w.ID, headers.Get("Idempotency-Key"))
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, "2024-03-01T10:00:00.000000Z", got.StartTime)
	assert.Equal(t, "2024-03-01T10:00:21.000000Z", got.EndTime)
	assert.Equal(t, []string{"MH12AB1234", "DL08CA5678"}, got.Plates)
}

func TestWindowSender_NoAuthHeaderWithoutKey(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	s := NewWindowSender(WindowSenderConfig{URL: srv.URL}, srv.Client(), log.NewNoopLogger())
	require.NoError(t, s.Flush(context.Background(), testWindow()))
	assert.Empty(t, auth)
}

func TestWindowSender_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database locked", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewWindowSender(WindowSenderConfig{URL: srv.URL}, srv.Client(), log.NewNoopLogger())
	err := s.Flush(context.Background(), testWindow())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "database locked")
}

func TestWindowSender_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewWindowSender(WindowSenderConfig{URL: url}, http.DefaultClient, log.NewNoopLogger())
	assert.Error(t, s.Flush(context.Background(), testWindow()))
}
