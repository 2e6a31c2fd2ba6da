package api

import (
	"time"

	"github.com/heimdex/heimdex-exporter/internal/export"
	"github.com/heimdex/heimdex-exporter/internal/session"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
	Database string `json:"database,omitempty"`
}

type StatusResponse struct {
	State         string          `json:"state"`
	Busy          bool            `json:"busy"`
	Button        ButtonResponse  `json:"button"`
	ActiveSession string          `json:"active_session,omitempty"`
	DownloadDir   string          `json:"download_dir"`
	LastExport    *ExportResponse `json:"last_export,omitempty"`
}

// ButtonResponse mirrors the widget props so a web front end can render the
// same control.
type ButtonResponse struct {
	Title        string              `json:"title"`
	LoadingProps export.LoadingProps `json:"loading_props"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type SessionResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Source    string `json:"source,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type ExportResponse struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	Filename   string `json:"filename"`
	Path       string `json:"path,omitempty"`
	SizeBytes  int64  `json:"size_bytes"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

type ExportsResponse struct {
	Exports []ExportResponse `json:"exports"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ExportToResponse(e *session.ExportRecord) ExportResponse {
	resp := ExportResponse{
		ID:        e.ID,
		SessionID: e.SessionID,
		Status:    e.Status,
		Filename:  e.Filename,
		Path:      e.Path,
		SizeBytes: e.SizeBytes,
		Error:     e.Error,
		StartedAt: e.StartedAt.Format(time.RFC3339),
	}
	if e.FinishedAt != nil {
		resp.FinishedAt = e.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

func SessionToResponse(s *session.Session) SessionResponse {
	if s == nil {
		return SessionResponse{}
	}
	return SessionResponse{
		SessionID: s.ID,
		Source:    s.Source,
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
}

// ExportFailureResponse carries the recorded attempt alongside the error so
// callers can show the same message the control notified.
type ExportFailureResponse struct {
	Error  string          `json:"error"`
	Code   string          `json:"code"`
	Export *ExportResponse `json:"export,omitempty"`
}
