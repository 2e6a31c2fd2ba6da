package ui

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/heimdex/heimdex-exporter/internal/export"
	"github.com/heimdex/heimdex-exporter/internal/logging"
	"github.com/heimdex/heimdex-exporter/internal/session"
)

const sessionRefreshInterval = 2 * time.Second

type Tray struct {
	control  *export.Control
	sessions session.Provider
	logger   *slog.Logger

	statusItem  *systray.MenuItem
	sessionItem *systray.MenuItem
	exportItem  *systray.MenuItem

	mu sync.Mutex

	ctx    context.Context
	onQuit func()
}

type TrayConfig struct {
	Control  *export.Control
	Sessions session.Provider
	Logger   *slog.Logger
	OnQuit   func()
}

func NewTray(ctx context.Context, cfg TrayConfig) *Tray {
	return &Tray{
		control:  cfg.Control,
		sessions: cfg.Sessions,
		logger:   logging.WithComponent(cfg.Logger, "tray"),
		ctx:      ctx,
		onQuit:   cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Heimdex")
	systray.SetTooltip("Heimdex Exporter")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current exporter status")
	t.statusItem.Disable()

	t.sessionItem = systray.AddMenuItem("Session: none", "Active annotation session")
	t.sessionItem.Disable()

	systray.AddSeparator()

	t.exportItem = systray.AddMenuItem(export.ButtonTitle, "Download the active session as a ZIP archive")
	t.exportItem.SetIcon(iconBytes)
	t.render()

	t.control.OnBusyChange(func(busy bool) {
		t.render()
	})

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Exporter")

	go t.refreshSession()

	go func() {
		for {
			select {
			case <-t.exportItem.ClickedCh:
				t.button().Click()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.ctx.Done():
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) button() OptionButton {
	return OptionButton{
		Title:   export.ButtonTitle,
		Icon:    iconBytes,
		Loading: t.control.Loading(),
		OnClick: func() { go t.handleExport() },
	}
}

func (t *Tray) render() {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.button()
	applyButton(t.exportItem, b)
	if b.Loading.Loading {
		t.statusItem.SetTitle("Status: Exporting")
	} else {
		t.statusItem.SetTitle("Status: Idle")
	}
}

func (t *Tray) handleExport() {
	_, err := t.control.Activate(t.ctx)
	if errors.Is(err, export.ErrBusy) {
		t.logger.Debug("export click ignored while busy")
	}
}

func (t *Tray) refreshSession() {
	ticker := time.NewTicker(sessionRefreshInterval)
	defer ticker.Stop()

	for {
		t.updateSession()
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *Tray) updateSession() {
	ref, err := t.sessions.Current(t.ctx)
	if err != nil {
		t.logger.Debug("session lookup failed", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionItem.SetTitle(sessionLabel(ref))
}

func sessionLabel(ref session.Reference) string {
	if !ref.Present() {
		return "Session: none"
	}
	id := []rune(ref.ID)
	if len(id) > 24 {
		return "Session: " + string(id[:21]) + "..."
	}
	return "Session: " + ref.ID
}

func (t *Tray) Quit() {
	systray.Quit()
}
