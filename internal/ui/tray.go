// Package ui is the system tray: one status line per feature plus shortcuts
// to the control page and quit.
package ui

import (
	"context"
	_ "embed"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/mediabatch/mediabatch-agent/internal/jobs"
)

//go:embed icon.png
var iconBytes []byte

// titled is the part of a menu item the status refresh touches.
type titled interface {
	SetTitle(title string)
}

type Tray struct {
	state    *jobs.State
	bus      *jobs.EventBus
	features []jobs.Feature
	logger   *slog.Logger

	mu          sync.Mutex
	statusItems map[jobs.Feature]titled

	onOpen func() error
	onQuit func()
}

type TrayConfig struct {
	State    *jobs.State
	Bus      *jobs.EventBus
	Features []jobs.Feature
	Logger   *slog.Logger
	// OnOpen opens the control page in a browser.
	OnOpen func() error
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		state:       cfg.State,
		bus:         cfg.Bus,
		features:    cfg.Features,
		logger:      cfg.Logger,
		statusItems: make(map[jobs.Feature]titled, len(cfg.Features)),
		onOpen:      cfg.OnOpen,
		onQuit:      cfg.OnQuit,
	}
}

// Run blocks in the platform event loop until Quit.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconBytes)
	systray.SetTitle("MediaBatch")
	systray.SetTooltip("MediaBatch Agent")

	t.mu.Lock()
	for _, f := range t.features {
		item := systray.AddMenuItem(StatusLine(t.state.Session(f)), "Job status")
		item.Disable()
		t.statusItems[f] = item
	}
	t.mu.Unlock()

	systray.AddSeparator()
	openItem := systray.AddMenuItem("Open control page", "Open the control page in a browser")
	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Quit MediaBatch Agent")

	if t.bus != nil {
		go t.follow(ctx)
	}

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				t.handleOpen()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

// follow refreshes the status lines whenever a job changes.
func (t *Tray) follow(ctx context.Context) {
	signal, unsubscribe := t.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
			t.Refresh()
		}
	}
}

// Refresh rewrites every status line from the current sessions.
func (t *Tray) Refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for f, item := range t.statusItems {
		item.SetTitle(StatusLine(t.state.Session(f)))
	}
}

func (t *Tray) handleOpen() {
	if t.onOpen == nil {
		return
	}
	if err := t.onOpen(); err != nil {
		t.logger.Error("failed to open control page", "error", err)
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
