package session

import (
	"time"

	"github.com/google/uuid"
)

// Reference identifies the session the editor currently has open.
// An empty ID means no session is active.
type Reference struct {
	ID string `json:"session_id,omitempty"`
}

// Present reports whether the reference names a session.
func (r Reference) Present() bool {
	return r.ID != ""
}

type Session struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SourceAPI  = "api"
	SourceFile = "file"

	ExportStatusRunning   = "running"
	ExportStatusSucceeded = "succeeded"
	ExportStatusFailed    = "failed"
)

// ExportRecord is the persisted trace of one export cycle.
type ExportRecord struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Status     string     `json:"status"`
	Filename   string     `json:"filename"`
	Path       string     `json:"path,omitempty"`
	SizeBytes  int64      `json:"size_bytes"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func NewID() string {
	return uuid.NewString()
}
