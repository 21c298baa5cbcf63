package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ink2tex/hotkey"
	"ink2tex/session"
	"ink2tex/singleinstance"
	"ink2tex/tray"
)

// Surface is the overlay window collaborator. Show must be cheap to call and
// may be invoked again to bring an existing window to the foreground.
type Surface interface {
	Show() error
	Foreground()
	Hide()
}

// Preview receives the recognized text for display/editing. Rendering is the
// collaborator's business; the loop only pushes the text.
type Preview interface {
	ShowResult(text string)
}

// Config wires the loop's collaborators.
type Config struct {
	Session   session.Config
	Runner    session.TaskRunner
	Clipboard session.ClipboardWriter
	Notifier  session.Notifier
	Surface   Surface
	Preview   Preview
	// ServiceOK answers the read-only "service reachable?" status query.
	ServiceOK      func() bool
	DefaultTooltip string
}

// Loop is the single-threaded coordinator: it owns the session, drains input
// events, delegated IPC requests, and worker completions, and is the only
// goroutine that mutates session state.
type Loop struct {
	cfg  Config
	sess *session.Session
	srv  singleinstance.Server

	events      chan Event
	hotkeyCh    chan struct{}
	completions chan session.Completion

	hotkeyActive bool
}

// New creates an event loop. Run must be called before events have effect.
func New(cfg Config) *Loop {
	if cfg.DefaultTooltip == "" {
		cfg.DefaultTooltip = "Ink2TeX"
	}
	return &Loop{
		cfg:         cfg,
		events:      make(chan Event, 256),
		hotkeyCh:    make(chan struct{}, 4),
		completions: make(chan session.Completion, 1),
	}
}

// Post injects an event from any goroutine.
func (l *Loop) Post(ev Event) {
	select {
	case l.events <- ev:
	default:
		// A full queue only happens under pathological pointer-move floods;
		// dropping the oldest semantics are not worth the complexity.
		log.Printf("eventloop: dropping %s, queue full", ev.Type())
	}
}

// StartHotkey registers the global hotkey and posts open requests into the
// loop. The gohook callback runs on the listener goroutine; it only touches
// a channel.
func (l *Loop) StartHotkey(combo string) {
	if combo == "" {
		return
	}
	hotkey.Listen(combo, func() {
		select {
		case l.hotkeyCh <- struct{}{}:
		default:
		}
	})
	l.hotkeyActive = true
}

// Session exposes the current session (nil when idle). Interaction-goroutine
// use only.
func (l *Loop) Session() *session.Session { return l.sess }

// Run acquires the activation token, then processes requests until ctx is
// cancelled. A failure to acquire the token is returned as
// singleinstance.ErrAlreadyRunning.
func (l *Loop) Run(ctx context.Context) error {
	l.srv = singleinstance.NewServer()
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	defer l.srv.Close()
	if p := l.srv.Port(); p > 0 {
		log.Printf("Resident listening on 127.0.0.1:%d", p)
	}
	tray.UpdateTooltip(l.cfg.DefaultTooltip)

	// Accept loop in background so delegated requests never block result
	// handling.
	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				close(reqCh)
				return
			}
			reqCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.closeSession()
			return ctx.Err()
		case <-l.hotkeyCh:
			l.handleOpen()
		case ev := <-l.events:
			l.handleEvent(ev)
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handleConn(conn)
		case c := <-l.completions:
			l.handleCompletion(c)
		}
	}
}

// handleOpen admits a new session or brings the existing one forward.
// Requests arriving while a session is active are coalesced into a no-op.
func (l *Loop) handleOpen() {
	if l.sess != nil && l.sess.Active() {
		log.Printf("eventloop: open request while session %s, foregrounding", l.sess.State())
		if l.cfg.Surface != nil {
			l.cfg.Surface.Foreground()
		}
		return
	}
	if l.cfg.Surface != nil {
		if err := l.cfg.Surface.Show(); err != nil {
			log.Printf("eventloop: cannot show overlay: %v", err)
			l.notify("Could not open the drawing overlay")
			return
		}
	}
	l.sess = session.New(l.cfg.Session, session.Deps{
		Runner:      l.cfg.Runner,
		Clipboard:   l.cfg.Clipboard,
		Notifier:    l.cfg.Notifier,
		Completions: l.completions,
	})
	log.Printf("eventloop: session opened")
}

func (l *Loop) handleEvent(ev Event) {
	if _, ok := ev.(OpenRequested); ok {
		l.handleOpen()
		return
	}
	if l.sess == nil {
		return
	}
	switch e := ev.(type) {
	case PointerDown:
		l.sess.BeginStroke(e.P)
	case PointerMove:
		l.sess.ExtendStroke(e.P)
	case PointerUp:
		l.sess.EndStroke()
	case UndoStroke:
		l.sess.Undo()
	case ClearCanvas:
		l.sess.Clear()
	case ConvertRequested:
		l.handleConvert()
	case ResultEdited:
		l.sess.SetResultText(e.Text)
	case AcceptResult:
		if l.sess.State() == session.StateResult {
			l.closeSession()
		}
	case DismissRequested:
		l.closeSession()
	default:
		log.Printf("eventloop: unhandled event %s", ev.Type())
	}
}

func (l *Loop) handleConvert() {
	err := l.sess.Convert(context.Background())
	switch {
	case err == nil:
		tray.UpdateTooltip("Ink2TeX: converting...")
	case errors.Is(err, session.ErrBusy):
		l.notify("Busy, please retry")
	case errors.Is(err, session.ErrEmptyInput):
		// Session already notified.
	default:
		log.Printf("eventloop: convert failed: %v", err)
	}
}

func (l *Loop) handleCompletion(c session.Completion) {
	tray.UpdateTooltip(l.cfg.DefaultTooltip)
	if l.sess == nil {
		log.Printf("eventloop: completion for request %d after session close, discarded", c.RequestID)
		return
	}
	l.sess.ApplyCompletion(c)
	if l.sess.State() == session.StateResult && l.cfg.Preview != nil {
		l.cfg.Preview.ShowResult(l.sess.ResultText())
	}
}

// closeSession runs the Closing transition and frees the gate slot.
func (l *Loop) closeSession() {
	if l.sess == nil {
		return
	}
	l.sess.Dismiss()
	if l.cfg.Surface != nil {
		l.cfg.Surface.Hide()
	}
	l.sess.Close()
	l.sess = nil
	log.Printf("eventloop: session closed")
}

func (l *Loop) handleConn(conn singleinstance.Conn) {
	defer conn.Close()
	switch conn.Request().Kind {
	case singleinstance.KindOpen:
		l.handleOpen()
		if err := conn.RespondSuccess(""); err != nil {
			log.Printf("eventloop: open ack failed: %v", err)
		}
	case singleinstance.KindStatus:
		if err := conn.RespondSuccess(l.status()); err != nil {
			log.Printf("eventloop: status reply failed: %v", err)
		}
	default:
		_ = conn.RespondError("unsupported request")
	}
}

// status answers the read-only tray/IPC status query without side effects.
func (l *Loop) status() string {
	hk := "inactive"
	if l.hotkeyActive {
		hk = "active"
	}
	svc := "unknown"
	if l.cfg.ServiceOK != nil {
		svc = "unreachable"
		if l.cfg.ServiceOK() {
			svc = "ok"
		}
	}
	state := "idle"
	if l.sess != nil {
		state = l.sess.State().String()
	}
	return fmt.Sprintf("hotkey=%s service=%s session=%s", hk, svc, state)
}

func (l *Loop) notify(msg string) {
	if l.cfg.Notifier != nil {
		l.cfg.Notifier.Notify(msg)
	}
}
