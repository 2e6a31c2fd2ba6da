// Package exportapi talks to the annotation backend that packages a
// session into a ZIP archive.
package exportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-exporter/internal/logging"
)

const (
	exportPath = "/export_session"

	// maxFailureBody bounds how much of an error response is read.
	maxFailureBody = 64 * 1024
)

// Exporter asks the backend for a session archive.
type Exporter interface {
	ExportSession(ctx context.Context, req Request) (*Archive, error)
}

// HTTPClient is the Exporter backed by the annotation backend's HTTP API.
type HTTPClient struct {
	baseURL    string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration // zero means no timeout
	MaxBytes int64
	Logger   *slog.Logger
}

func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPClient{
		baseURL:  cfg.BaseURL,
		maxBytes: cfg.MaxBytes,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logging.WithComponent(logger, "exportapi"),
	}
}

func (c *HTTPClient) ExportSession(ctx context.Context, payload Request) (*Archive, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal export request: %w", err)
	}

	url := c.baseURL + exportPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/zip, application/json")
	req.Header.Set("X-Request-Id", requestID)

	logger := logging.WithRequestID(logging.WithSessionID(c.logger, payload.SessionID), requestID)
	logger.Info("requesting session export", "url", url, "extract_frames", payload.ExtractFrames)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxFailureBody))
		if readErr != nil {
			logger.Debug("failed to read failure body", "status", resp.StatusCode, "error", readErr)
		}
		epErr := &EndpointError{StatusCode: resp.StatusCode, Message: failureMessage(respBody)}
		logger.Warn("session export rejected", "status", resp.StatusCode, "error", epErr.Message)
		return nil, epErr
	}

	data, err := c.readArchive(resp.Body)
	if err != nil {
		return nil, err
	}

	logger.Info("session export received",
		"status", resp.StatusCode,
		"size", logging.Size(int64(len(data))),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Archive{
		SessionID:   payload.SessionID,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (c *HTTPClient) readArchive(r io.Reader) ([]byte, error) {
	if c.maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("archive exceeds %s limit", logging.Size(c.maxBytes))
	}
	return data, nil
}
