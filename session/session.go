// Package session owns one draw-convert-result lifecycle. Exactly one
// Session exists per process at a time; the event loop creates it when the
// activation gate admits an open request and drops it on close.
//
// All methods must be called from the interaction goroutine. The only
// asynchronous boundary is the recognition worker, whose result is posted as
// a Completion on the channel supplied at construction and handed back via
// ApplyCompletion.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"ink2tex/canvas"
	"ink2tex/crop"
	"ink2tex/worker"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota // no session (zero value, only seen after Close)
	StateDrawing
	StateConverting
	StateResult
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StateConverting:
		return "converting"
	case StateResult:
		return "result"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrEmptyInput is returned by Convert when nothing has been drawn.
	ErrEmptyInput = crop.ErrEmptyInput
	// ErrBusy is returned by Convert while a request is already outstanding.
	// The attempt is rejected, not queued.
	ErrBusy = errors.New("conversion already in progress")
	// ErrNotDrawing is returned by Convert outside the drawing states.
	ErrNotDrawing = errors.New("session is not accepting a conversion")
)

// ClipboardWriter receives the recognized text. Failures are non-fatal.
type ClipboardWriter interface {
	Write(text string) error
}

// Notifier surfaces user-visible messages (errors, hints). Implementations
// must not block the interaction goroutine.
type Notifier interface {
	Notify(message string)
}

// TaskRunner dispatches the recognition call off the interaction goroutine.
// *worker.Pool satisfies it.
type TaskRunner interface {
	Submit(ctx context.Context, image []byte, cb worker.ResultCallback) bool
}

// Completion is the worker's result, marshaled back to the interaction
// goroutine before any state is touched.
type Completion struct {
	RequestID uint64
	Text      string
	Err       error
}

// Config holds the session-creation-time values from the configuration
// provider.
type Config struct {
	CanvasSize image.Point
	Crop       crop.Options
	Deadline   time.Duration
	// ResumeAfterResult allows stroke input to reopen Drawing from Result
	// instead of being ignored.
	ResumeAfterResult bool
}

// Deps are the collaborators injected by the event loop.
type Deps struct {
	Runner      TaskRunner
	Clipboard   ClipboardWriter
	Notifier    Notifier
	Completions chan<- Completion
}

// Session is the aggregate root: strokes, undo list, current state, and the
// outstanding request id (if any).
type Session struct {
	cfg  Config
	deps Deps

	rec   *canvas.Recorder
	state State

	reqSeq    uint64
	pendingID uint64
	cancel    context.CancelFunc

	resultText string

	cropRect    image.Rectangle
	cropVersion uint64
	cropValid   bool
}

// New opens a session in Drawing state.
func New(cfg Config, deps Deps) *Session {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 20 * time.Second
	}
	return &Session{
		cfg:   cfg,
		deps:  deps,
		rec:   canvas.NewRecorder(),
		state: StateDrawing,
	}
}

func (s *Session) State() State { return s.state }

// Active reports whether the session is open for user interaction. An active
// session makes further open requests a no-op.
func (s *Session) Active() bool {
	switch s.state {
	case StateDrawing, StateConverting, StateResult:
		return true
	}
	return false
}

// ResultText returns the last recognized text, or "".
func (s *Session) ResultText() string { return s.resultText }

// Strokes exposes the completed strokes for rendering collaborators.
func (s *Session) Strokes() []canvas.Stroke { return s.rec.Strokes() }

// drawable reports whether stroke mutations are currently legal, switching
// Result back to Drawing when the configuration allows it.
func (s *Session) drawable() bool {
	switch s.state {
	case StateDrawing:
		return true
	case StateResult:
		if s.cfg.ResumeAfterResult {
			s.state = StateDrawing
			return true
		}
	}
	return false
}

// BeginStroke starts recording a new stroke at p.
func (s *Session) BeginStroke(p canvas.Point) {
	if !s.drawable() {
		return
	}
	s.rec.BeginStroke(p)
}

// ExtendStroke appends p to the stroke being recorded.
func (s *Session) ExtendStroke(p canvas.Point) {
	if s.state != StateDrawing {
		return
	}
	s.rec.ExtendStroke(p)
}

// EndStroke finalizes the stroke being recorded.
func (s *Session) EndStroke() {
	if s.state != StateDrawing {
		return
	}
	s.rec.EndStroke()
}

// Undo removes the most recently completed stroke; no-op on empty canvas.
func (s *Session) Undo() {
	if !s.drawable() {
		return
	}
	s.rec.Undo()
}

// Clear drops all strokes.
func (s *Session) Clear() {
	if !s.drawable() {
		return
	}
	s.rec.Clear()
}

// CropRect returns the current crop rectangle, recomputing lazily when the
// stroke list changed since the last call.
func (s *Session) CropRect() (image.Rectangle, error) {
	if s.cropValid && s.cropVersion == s.rec.Version() {
		return s.cropRect, nil
	}
	r, err := crop.ComputeCropRect(s.rec.Strokes(), s.cfg.CanvasSize, s.cfg.Crop)
	if err != nil {
		s.cropValid = false
		return image.Rectangle{}, err
	}
	s.cropRect = r
	s.cropVersion = s.rec.Version()
	s.cropValid = true
	return r, nil
}

// Convert rasterizes the padded crop of the drawing and dispatches one
// recognition request. While a request is outstanding further attempts get
// ErrBusy and the original request stays untouched.
func (s *Session) Convert(ctx context.Context) error {
	switch s.state {
	case StateConverting:
		return ErrBusy
	case StateDrawing:
	case StateResult:
		if !s.cfg.ResumeAfterResult {
			return ErrNotDrawing
		}
	default:
		return ErrNotDrawing
	}

	rect, err := s.CropRect()
	if err != nil {
		if errors.Is(err, ErrEmptyInput) {
			s.notify("Draw something first")
		}
		return err
	}

	img := crop.Rasterize(s.rec.Strokes(), rect, s.cfg.Crop)
	data, err := crop.EncodePNG(img)
	if err != nil {
		s.notify("Could not prepare the drawing image")
		return err
	}

	s.reqSeq++
	id := s.reqSeq
	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.Deadline)

	completions := s.deps.Completions
	submitted := s.deps.Runner.Submit(jobCtx, data, func(text string, err error) {
		// Worker goroutine: hand off, never mutate session state here.
		completions <- Completion{RequestID: id, Text: text, Err: err}
	})
	if !submitted {
		cancel()
		return ErrBusy
	}

	s.pendingID = id
	s.cancel = cancel
	s.state = StateConverting
	log.Printf("session: dispatched recognition request %d, crop %v", id, rect)
	return nil
}

// ApplyCompletion applies a worker result on the interaction goroutine.
// Results whose request id does not match the outstanding one, or that arrive
// outside Converting, belong to a cancelled request and are discarded.
func (s *Session) ApplyCompletion(c Completion) {
	if s.state != StateConverting || c.RequestID != s.pendingID {
		log.Printf("session: discarding stale result for request %d", c.RequestID)
		return
	}
	s.clearPending()

	if c.Err != nil {
		s.state = StateDrawing
		switch {
		case errors.Is(c.Err, context.DeadlineExceeded):
			log.Printf("session: request %d timed out", c.RequestID)
			s.notify("Recognition timed out, please retry")
		case errors.Is(c.Err, context.Canceled):
			// Cancelled by close; nothing to surface.
		default:
			log.Printf("session: request %d failed: %v", c.RequestID, c.Err)
			s.notify(fmt.Sprintf("Recognition failed: %v", c.Err))
		}
		return
	}

	s.resultText = c.Text
	s.state = StateResult
	if s.deps.Clipboard != nil {
		if err := s.deps.Clipboard.Write(c.Text); err != nil {
			log.Printf("session: clipboard write failed: %v", err)
			s.notify("Result ready, but the clipboard write failed")
		}
	}
	log.Printf("session: request %d resolved, %d chars", c.RequestID, len(c.Text))
}

// SetResultText records a user edit of the recognized text in Result state.
func (s *Session) SetResultText(text string) {
	if s.state != StateResult {
		return
	}
	s.resultText = text
}

// Dismiss moves the session to Closing from any interactive state. An
// outstanding request is cancelled best-effort: the service call may still
// complete, but its result is discarded on arrival.
func (s *Session) Dismiss() {
	switch s.state {
	case StateDrawing, StateConverting, StateResult:
	default:
		return
	}
	if s.state == StateConverting {
		s.clearPending()
	}
	s.state = StateClosing
	log.Printf("session: closing")
}

// Close completes cleanup after Dismiss. The caller drops its reference and
// frees the activation gate's slot.
func (s *Session) Close() {
	if s.state == StateConverting {
		s.clearPending()
	}
	s.state = StateIdle
}

func (s *Session) clearPending() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pendingID = 0
}

func (s *Session) notify(msg string) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(msg)
	}
}
