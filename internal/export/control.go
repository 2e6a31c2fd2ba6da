package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/heimdex/heimdex-exporter/internal/exportapi"
	"github.com/heimdex/heimdex-exporter/internal/logging"
	"github.com/heimdex/heimdex-exporter/internal/session"
)

const (
	NoSessionMessage    = "No active session found"
	FailurePrefix       = "Export failed: "
	UnknownErrorMessage = "Unknown error"
)

var (
	// ErrNoSession is returned when activation finds no active session.
	ErrNoSession = errors.New("no active session")
	// ErrBusy is returned when activation arrives while a cycle is running.
	ErrBusy = errors.New("export already in progress")
)

type State int

const (
	StateIdle State = iota
	StateRequesting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Notifier shows a message to the user.
type Notifier interface {
	Notify(message string)
}

// Saver delivers an archive to the user as a file and returns its path.
type Saver interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// History records export cycles. Optional.
type History interface {
	CreateExport(ctx context.Context, rec *session.ExportRecord) error
	FinishExport(ctx context.Context, rec *session.ExportRecord) error
}

type ControlConfig struct {
	Sessions session.Provider
	Exporter exportapi.Exporter
	Saver    Saver
	Notifier Notifier
	History  History
	Logger   *slog.Logger
}

// Control is the export button's state machine. It moves Idle -> Requesting
// on an accepted activation and always returns to Idle when the cycle ends.
type Control struct {
	sessions session.Provider
	exporter exportapi.Exporter
	saver    Saver
	notifier Notifier
	history  History
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	observers []func(busy bool)
}

func NewControl(cfg ControlConfig) *Control {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Control{
		sessions: cfg.Sessions,
		exporter: cfg.Exporter,
		saver:    cfg.Saver,
		notifier: cfg.Notifier,
		history:  cfg.History,
		logger:   logging.WithComponent(logger, "export"),
		state:    StateIdle,
	}
}

// State returns the current state.
func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether an export cycle is in flight.
func (c *Control) Busy() bool {
	return c.State() == StateRequesting
}

// OnBusyChange registers fn to be called every time the busy flag flips.
// fn runs on the goroutine that called Activate.
func (c *Control) OnBusyChange(fn func(busy bool)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Activate runs one export cycle and blocks until it ends. The returned
// record is nil when the cycle was refused (ErrNoSession, ErrBusy).
func (c *Control) Activate(ctx context.Context) (*session.ExportRecord, error) {
	if c.State() != StateIdle {
		c.logger.Warn("export activation rejected: already exporting")
		return nil, ErrBusy
	}

	ref, err := c.sessions.Current(ctx)
	if err != nil {
		c.logger.Error("session lookup failed", "error", err)
		c.notifier.Notify(FailurePrefix + failureText(err))
		return nil, err
	}
	if !ref.Present() {
		c.logger.Info("export activation refused: no active session")
		c.notifier.Notify(NoSessionMessage)
		return nil, ErrNoSession
	}

	if !c.enter() {
		return nil, ErrBusy
	}
	defer c.leave()

	return c.run(ctx, ref)
}

func (c *Control) run(ctx context.Context, ref session.Reference) (*session.ExportRecord, error) {
	logger := logging.WithSessionID(c.logger, ref.ID)
	rec := &session.ExportRecord{
		ID:        session.NewID(),
		SessionID: ref.ID,
		Status:    session.ExportStatusRunning,
		Filename:  ArchiveFilename(ref.ID),
		StartedAt: time.Now(),
	}
	c.recordStart(ctx, rec)

	logger.Info("export started", "export_id", rec.ID)

	path, size, err := c.fetchAndSave(ctx, ref, rec.Filename)
	if err != nil {
		rec.Status = session.ExportStatusFailed
		rec.Error = failureText(err)
		c.recordFinish(rec)

		var epErr *exportapi.EndpointError
		if errors.As(err, &epErr) {
			logger.Warn("export failed", "export_id", rec.ID, "error", epErr.Detail())
		} else {
			logger.Error("export failed", "export_id", rec.ID, "error", err)
		}
		c.notifier.Notify(FailurePrefix + rec.Error)
		return rec, err
	}

	rec.Status = session.ExportStatusSucceeded
	rec.Filename = filepath.Base(path)
	rec.Path = path
	rec.SizeBytes = size
	c.recordFinish(rec)

	logger.Info("export saved",
		"export_id", rec.ID,
		"path", logging.SanitizePath(path),
		"size", logging.Size(size),
	)
	return rec, nil
}

func (c *Control) fetchAndSave(ctx context.Context, ref session.Reference, filename string) (string, int64, error) {
	archive, err := c.exporter.ExportSession(ctx, exportapi.Request{
		SessionID:     ref.ID,
		ExtractFrames: false,
	})
	if err != nil {
		return "", 0, err
	}

	path, err := c.saver.Save(ctx, filename, archive.Data)
	if err != nil {
		return "", 0, fmt.Errorf("save archive: %w", err)
	}
	return path, archive.Size(), nil
}

func (c *Control) enter() bool {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return false
	}
	c.state = StateRequesting
	observers := c.observers
	c.mu.Unlock()

	notifyObservers(observers, true)
	return true
}

func (c *Control) leave() {
	c.mu.Lock()
	c.state = StateIdle
	observers := c.observers
	c.mu.Unlock()

	notifyObservers(observers, false)
}

func notifyObservers(observers []func(bool), busy bool) {
	for _, fn := range observers {
		fn(busy)
	}
}

// History writes use a detached context so a cancelled export still gets
// its terminal status recorded.
func (c *Control) recordStart(ctx context.Context, rec *session.ExportRecord) {
	if c.history == nil {
		return
	}
	if err := c.history.CreateExport(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("failed to record export start", "export_id", rec.ID, "error", err)
	}
}

func (c *Control) recordFinish(rec *session.ExportRecord) {
	if c.history == nil {
		return
	}
	now := time.Now()
	rec.FinishedAt = &now
	if err := c.history.FinishExport(context.Background(), rec); err != nil {
		c.logger.Warn("failed to record export result", "export_id", rec.ID, "error", err)
	}
}

// failureText is the user-facing description of an export failure.
func failureText(err error) string {
	var epErr *exportapi.EndpointError
	if errors.As(err, &epErr) {
		return epErr.Message
	}
	if err == nil || err.Error() == "" {
		return UnknownErrorMessage
	}
	return err.Error()
}
