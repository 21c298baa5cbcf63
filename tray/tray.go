package tray

import (
	"log"
	"sync/atomic"

	"github.com/getlantern/systray"
)

// Config wires the tray menu to the application.
type Config struct {
	Title   string
	Tooltip string
	// OnOpen is invoked from the tray goroutine; it must not block.
	OnOpen func()
	// Status returns the resident status line for the status menu item.
	Status func() string
	// StatusShown receives the status line for display.
	StatusShown func(string)
	OnExit      func()
}

// Tray owns the systray icon and menu.
type Tray struct {
	cfg Config
}

func New(cfg Config) (*Tray, error) {
	return &Tray{cfg: cfg}, nil
}

var ready atomic.Bool

// Run blocks inside the systray loop. Call it from a dedicated goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Destroy tears the tray down. Safe to call more than once.
func (t *Tray) Destroy() {
	if ready.Load() {
		systray.Quit()
	}
}

func (t *Tray) onReady() {
	if icon := getIcon(); len(icon) > 0 {
		systray.SetIcon(icon)
	}
	systray.SetTitle(t.cfg.Title)
	systray.SetTooltip(t.cfg.Tooltip)

	mOpen := systray.AddMenuItem("Open Overlay", "Open the drawing overlay")
	mStatus := systray.AddMenuItem("Status", "Show hotkey and service status")
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	ready.Store(true)

	go func() {
		for {
			select {
			case <-mOpen.ClickedCh:
				if t.cfg.OnOpen != nil {
					t.cfg.OnOpen()
				}
			case <-mStatus.ClickedCh:
				t.showStatus()
			case <-mQuit.ClickedCh:
				systray.Quit()
			}
		}
	}()
}

func (t *Tray) showStatus() {
	if t.cfg.Status == nil {
		return
	}
	line := t.cfg.Status()
	log.Printf("Tray status: %s", line)
	if t.cfg.StatusShown != nil {
		t.cfg.StatusShown(line)
	}
}

func (t *Tray) onExit() {
	ready.Store(false)
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

// UpdateTooltip updates the tray tooltip. Calls before the tray is ready are
// dropped, which keeps headless tests and early startup safe.
func UpdateTooltip(tooltip string) {
	if !ready.Load() {
		return
	}
	systray.SetTooltip(tooltip)
}
