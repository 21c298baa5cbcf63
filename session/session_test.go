package session

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"ink2tex/canvas"
	"ink2tex/crop"
	"ink2tex/worker"
)

type stubRunner struct {
	refuse bool
	images [][]byte
	cbs    []worker.ResultCallback
}

func (r *stubRunner) Submit(ctx context.Context, image []byte, cb worker.ResultCallback) bool {
	if r.refuse {
		return false
	}
	r.images = append(r.images, image)
	r.cbs = append(r.cbs, cb)
	return true
}

type fakeClipboard struct {
	writes []string
	err    error
}

func (c *fakeClipboard) Write(text string) error {
	c.writes = append(c.writes, text)
	return c.err
}

type fakeNotifier struct{ messages []string }

func (n *fakeNotifier) Notify(msg string) { n.messages = append(n.messages, msg) }

type fixture struct {
	sess        *Session
	runner      *stubRunner
	clip        *fakeClipboard
	notes       *fakeNotifier
	completions chan Completion
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.CanvasSize == (image.Point{}) {
		cfg.CanvasSize = image.Pt(800, 600)
	}
	if cfg.Crop == (crop.Options{}) {
		cfg.Crop = crop.Options{Padding: 30, MinSize: 100}
	}
	if cfg.Deadline == 0 {
		cfg.Deadline = time.Second
	}
	f := &fixture{
		runner:      &stubRunner{},
		clip:        &fakeClipboard{},
		notes:       &fakeNotifier{},
		completions: make(chan Completion, 1),
	}
	f.sess = New(cfg, Deps{
		Runner:      f.runner,
		Clipboard:   f.clip,
		Notifier:    f.notes,
		Completions: f.completions,
	})
	return f
}

func (f *fixture) drawStroke(pts ...canvas.Point) {
	f.sess.BeginStroke(pts[0])
	for _, p := range pts[1:] {
		f.sess.ExtendStroke(p)
	}
	f.sess.EndStroke()
}

// resolve simulates the worker completing request i and the event loop
// draining the handoff channel back into the session.
func (f *fixture) resolve(t *testing.T, i int, text string, err error) {
	t.Helper()
	f.runner.cbs[i](text, err)
	select {
	case c := <-f.completions:
		f.sess.ApplyCompletion(c)
	case <-time.After(time.Second):
		t.Fatal("completion never posted")
	}
}

func TestNewSessionStartsDrawing(t *testing.T) {
	f := newFixture(t, Config{})
	if f.sess.State() != StateDrawing {
		t.Fatalf("state = %v, want drawing", f.sess.State())
	}
	if !f.sess.Active() {
		t.Fatal("fresh session should be active")
	}
}

func TestConvertWithoutInk(t *testing.T) {
	f := newFixture(t, Config{})
	err := f.sess.Convert(context.Background())
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
	if f.sess.State() != StateDrawing {
		t.Errorf("state = %v, want drawing", f.sess.State())
	}
	if len(f.runner.images) != 0 {
		t.Error("no request should be dispatched")
	}
}

func TestConvertSuccessScenario(t *testing.T) {
	f := newFixture(t, Config{})
	f.drawStroke(canvas.Point{X: 10, Y: 10}, canvas.Point{X: 20, Y: 20})

	rect, err := f.sess.CropRect()
	if err != nil {
		t.Fatalf("CropRect: %v", err)
	}
	if want := image.Rect(0, 0, 66, 66); rect != want {
		t.Errorf("crop rect = %v, want %v", rect, want)
	}

	if err := f.sess.Convert(context.Background()); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if f.sess.State() != StateConverting {
		t.Fatalf("state = %v, want converting", f.sess.State())
	}
	if len(f.runner.images) != 1 || len(f.runner.images[0]) == 0 {
		t.Fatal("expected one dispatched request with image bytes")
	}

	f.resolve(t, 0, "x^2", nil)

	if f.sess.State() != StateResult {
		t.Fatalf("state = %v, want result", f.sess.State())
	}
	if f.sess.ResultText() != "x^2" {
		t.Errorf("result = %q", f.sess.ResultText())
	}
	if len(f.clip.writes) != 1 || f.clip.writes[0] != "x^2" {
		t.Errorf("clipboard writes = %v, want exactly one %q", f.clip.writes, "x^2")
	}
}

func TestConvertWhileConvertingIsBusy(t *testing.T) {
	f := newFixture(t, Config{})
	f.drawStroke(canvas.Point{X: 50, Y: 50})
	if err := f.sess.Convert(context.Background()); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	err := f.sess.Convert(context.Background())
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if f.sess.State() != StateConverting {
		t.Errorf("state = %v, want converting", f.sess.State())
	}
	if len(f.runner.cbs) != 1 {
		t.Errorf("original request must stay outstanding, got %d dispatches", len(f.runner.cbs))
	}

	// The original request still resolves normally.
	f.resolve(t, 0, "y", nil)
	if f.sess.State() != StateResult {
		t.Errorf("state = %v, want result", f.sess.State())
	}
}

func TestConvertRefusedByRunnerIsBusy(t *testing.T) {
	f := newFixture(t, Config{})
	f.runner.refuse = true
	f.drawStroke(canvas.Point{X: 50, Y: 50})
	if err := f.sess.Convert(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if f.sess.State() != StateDrawing {
		t.Errorf("state = %v, want drawing", f.sess.State())
	}
}

func TestRecognitionFailureReturnsToDrawing(t *testing.T) {
	f := newFixture(t, Config{})
	f.drawStroke(canvas.Point{X: 10, Y: 10}, canvas.Point{X: 30, Y: 15})
	if err := f.sess.Convert(context.Background()); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	f.resolve(t, 0, "", errors.New("service unavailable"))

	if f.sess.State() != StateDrawing {
		t.Fatalf("state = %v, want drawing", f.sess.State())
	}
	if len(f.sess.Strokes()) != 1 {
		t.Error("strokes must be preserved for retry")
	}
	if len(f.notes.messages) == 0 {
		t.Error("failure must be surfaced to the user")
	}
	if len(f.clip.writes) != 0 {
		t.Error("no clipboard write on failure")
	}
}

func TestTimeoutTreatedAsFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.drawStroke(canvas.Point{X: 10, Y: 10})
	if err := f.sess.Convert(context.Background()); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	f.resolve(t, 0, "", context.DeadlineExceeded)

	if f.sess.State() != StateDrawing {
		t.Fatalf("state = %v, want drawing", f.sess.State())
	}
	if len(f.notes.messages) == 0 {
		t.Error("timeout must be surfaced to the user")
	}
}

func TestDismissWhileConvertingDiscardsLateResult(t *testing.T) {
	f := newFixture(t, Config{})
	f.drawStroke(canvas.Point{X: 10, Y: 10})
	if err := f.sess.Convert(context.Background()); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	f.sess.Dismiss()
	if f.sess.State() != StateClosing {
		t.Fatalf("state = %v, want closing immediately", f.sess.State())
	}

	// The in-flight call completes anyway; its result must be discarded.
	f.resolve(t, 0, "late", nil)

	if f.sess.State() != StateClosing {
		t.Errorf("late result mutated state to %v", f.sess.State())
	}
	if f.sess.ResultText() != "" {
		t.Error("late result text applied")
	}
	if len(f.clip.writes) != 0 {
		t.Error("late result reached the clipboard")
	}
}

func TestCompletionAppliedExactlyOnce(t *testing.T) {
	f := newFixture(t, Config{})
	f.drawStroke(canvas.Point{X: 10, Y: 10})
	if err := f.sess.Convert(context.Background()); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	c := Completion{RequestID: 1, Text: "x^2"}
	f.sess.ApplyCompletion(c)
	f.sess.ApplyCompletion(c)

	if len(f.clip.writes) != 1 {
		t.Fatalf("clipboard writes = %d, want 1", len(f.clip.writes))
	}
}

func TestResumeAfterResultReopensDrawing(t *testing.T) {
	f := newFixture(t, Config{ResumeAfterResult: true})
	f.drawStroke(canvas.Point{X: 10, Y: 10})
	f.sess.Convert(context.Background())
	f.resolve(t, 0, "x", nil)

	f.sess.BeginStroke(canvas.Point{X: 40, Y: 40})
	if f.sess.State() != StateDrawing {
		t.Fatalf("state = %v, want drawing after resumed stroke", f.sess.State())
	}
	f.sess.EndStroke()
	if len(f.sess.Strokes()) != 2 {
		t.Errorf("strokes = %d, want previous ink kept", len(f.sess.Strokes()))
	}
}

func TestResultStateIgnoresStrokesWhenResumeDisabled(t *testing.T) {
	f := newFixture(t, Config{ResumeAfterResult: false})
	f.drawStroke(canvas.Point{X: 10, Y: 10})
	f.sess.Convert(context.Background())
	f.resolve(t, 0, "x", nil)

	f.sess.BeginStroke(canvas.Point{X: 40, Y: 40})
	if f.sess.State() != StateResult {
		t.Fatalf("state = %v, want result", f.sess.State())
	}
	if err := f.sess.Convert(context.Background()); !errors.Is(err, ErrNotDrawing) {
		t.Errorf("convert from result = %v, want ErrNotDrawing", err)
	}
}

func TestUndoThroughSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.drawStroke(canvas.Point{X: 1, Y: 1})
	f.drawStroke(canvas.Point{X: 2, Y: 2})
	f.sess.Undo()
	if got := len(f.sess.Strokes()); got != 1 {
		t.Fatalf("strokes = %d after undo, want 1", got)
	}
	f.sess.Undo()
	f.sess.Undo() // empty: no-op, no panic
	if got := len(f.sess.Strokes()); got != 0 {
		t.Fatalf("strokes = %d, want 0", got)
	}
}

func TestSetResultTextOnlyInResult(t *testing.T) {
	f := newFixture(t, Config{})
	f.sess.SetResultText("nope")
	if f.sess.ResultText() != "" {
		t.Fatal("edit applied outside result state")
	}

	f.drawStroke(canvas.Point{X: 10, Y: 10})
	f.sess.Convert(context.Background())
	f.resolve(t, 0, "x", nil)
	f.sess.SetResultText("x+1")
	if f.sess.ResultText() != "x+1" {
		t.Fatalf("result = %q, want edited text", f.sess.ResultText())
	}
}

func TestCropRectCachedUntilMutation(t *testing.T) {
	f := newFixture(t, Config{})
	f.drawStroke(canvas.Point{X: 100, Y: 100}, canvas.Point{X: 140, Y: 120})
	r1, err := f.sess.CropRect()
	if err != nil {
		t.Fatalf("CropRect: %v", err)
	}
	r2, _ := f.sess.CropRect()
	if r1 != r2 {
		t.Fatal("cached crop rect changed without mutation")
	}

	f.drawStroke(canvas.Point{X: 400, Y: 400})
	r3, _ := f.sess.CropRect()
	if r3 == r1 {
		t.Fatal("crop rect not recomputed after mutation")
	}
	if !image.Pt(400, 400).In(r3) {
		t.Errorf("new ink not covered by crop rect %v", r3)
	}
}

func TestClipboardFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, Config{})
	f.clip.err = errors.New("clipboard locked")
	f.drawStroke(canvas.Point{X: 10, Y: 10})
	f.sess.Convert(context.Background())
	f.resolve(t, 0, "x^2", nil)

	if f.sess.State() != StateResult {
		t.Fatalf("state = %v, clipboard failure must not break the session", f.sess.State())
	}
	if len(f.notes.messages) == 0 {
		t.Error("clipboard failure should be notified")
	}
}
