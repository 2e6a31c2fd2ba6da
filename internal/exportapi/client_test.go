package exportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, maxBytes int64) *HTTPClient {
	return NewHTTPClient(ClientConfig{BaseURL: url, MaxBytes: maxBytes})
}

func TestHTTPClient_ExportSession_Success(t *testing.T) {
	archive := []byte("PK\x03\x04fake-zip-bytes")
	var received map[string]any
	var contentType, requestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/export_session", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		requestID = r.Header.Get("X-Request-Id")

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		w.Header().Set("Content-Type", "application/zip")
		w.WriteHeader(http.StatusOK)
		w.Write(archive)
	}))
	defer server.Close()

	got, err := newTestClient(server.URL, 0).ExportSession(context.Background(), Request{SessionID: "abc123"})
	require.NoError(t, err)

	assert.Equal(t, archive, got.Data)
	assert.Equal(t, "abc123", got.SessionID)
	assert.Equal(t, "application/zip", got.ContentType)
	assert.Equal(t, int64(len(archive)), got.Size())

	assert.Equal(t, "application/json", contentType)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, map[string]any{"session_id": "abc123", "extract_frames": false}, received)
}

func TestHTTPClient_ExportSession_EndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "disk full"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 0).ExportSession(context.Background(), Request{SessionID: "abc123"})
	require.Error(t, err)

	var epErr *EndpointError
	require.True(t, errors.As(err, &epErr), "expected EndpointError, got %T", err)
	assert.Equal(t, http.StatusInternalServerError, epErr.StatusCode)
	assert.Equal(t, "disk full", epErr.Message)
	assert.Equal(t, "disk full", err.Error())
	assert.Equal(t, "HTTP 500: disk full", epErr.Detail())
}

func TestHTTPClient_ExportSession_MalformedFailureBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<html>Internal Server Error</html>`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 0).ExportSession(context.Background(), Request{SessionID: "abc123"})

	var epErr *EndpointError
	require.ErrorAs(t, err, &epErr)
	assert.Equal(t, FallbackMessage, epErr.Message)
}

func TestHTTPClient_ExportSession_TruncatedFailureBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error": "dis`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := NewHTTPClient(ClientConfig{
		BaseURL: server.URL,
		Logger:  slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})

	_, err := client.ExportSession(context.Background(), Request{SessionID: "abc123"})

	var epErr *EndpointError
	require.ErrorAs(t, err, &epErr)
	assert.Equal(t, http.StatusBadGateway, epErr.StatusCode)
	assert.Equal(t, FallbackMessage, epErr.Message)
	assert.Contains(t, buf.String(), "failed to read failure body")
}

func TestHTTPClient_ExportSession_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "Session abc123 not found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 0).ExportSession(context.Background(), Request{SessionID: "abc123"})

	var epErr *EndpointError
	require.ErrorAs(t, err, &epErr)
	assert.Equal(t, http.StatusNotFound, epErr.StatusCode)
	assert.Equal(t, "Session abc123 not found", epErr.Message)
}

func TestHTTPClient_ExportSession_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url, 0).ExportSession(context.Background(), Request{SessionID: "abc123"})
	require.Error(t, err)

	var epErr *EndpointError
	assert.False(t, errors.As(err, &epErr), "transport failures must not look like endpoint errors")
}

func TestHTTPClient_ExportSession_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL, 0).ExportSession(ctx, Request{SessionID: "abc123"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPClient_ExportSession_ArchiveTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 64))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 32).ExportSession(context.Background(), Request{SessionID: "abc123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestHTTPClient_ExportSession_ArchiveAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 32))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL, 32).ExportSession(context.Background(), Request{SessionID: "abc123"})
	require.NoError(t, err)
	assert.Len(t, got.Data, 32)
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "error field", body: `{"error":"disk full"}`, want: "disk full"},
		{name: "missing field", body: `{"detail":"nope"}`, want: FallbackMessage},
		{name: "blank field", body: `{"error":"  "}`, want: FallbackMessage},
		{name: "null field", body: `{"error":null}`, want: FallbackMessage},
		{name: "wrong type", body: `{"error":42}`, want: FallbackMessage},
		{name: "not json", body: `oops`, want: FallbackMessage},
		{name: "empty", body: ``, want: FallbackMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, failureMessage([]byte(tc.body)))
		})
	}
}

func TestHTTPClient_ImplementsExporter(t *testing.T) {
	var _ Exporter = (*HTTPClient)(nil)
}
