package canvas

import "testing"

func TestRecorderStrokeLifecycle(t *testing.T) {
	r := NewRecorder()

	r.BeginStroke(Point{X: 10, Y: 10})
	r.ExtendStroke(Point{X: 20, Y: 20})
	r.EndStroke()

	if r.Len() != 1 {
		t.Fatalf("expected 1 completed stroke, got %d", r.Len())
	}
	s := r.Strokes()[0]
	if len(s.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(s.Points))
	}
	if s.Index != 0 {
		t.Errorf("expected creation index 0, got %d", s.Index)
	}
}

func TestRecorderCoalescesDuplicatePoints(t *testing.T) {
	r := NewRecorder()
	r.BeginStroke(Point{X: 5, Y: 5})
	r.ExtendStroke(Point{X: 5, Y: 5})
	r.ExtendStroke(Point{X: 5, Y: 5})
	r.ExtendStroke(Point{X: 6, Y: 5})
	r.ExtendStroke(Point{X: 6, Y: 5})
	r.EndStroke()

	pts := r.Strokes()[0].Points
	if len(pts) != 2 {
		t.Fatalf("expected duplicates coalesced to 2 points, got %d: %v", len(pts), pts)
	}
}

func TestRecorderUndoRemovesMostRecent(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < 3; i++ {
		r.BeginStroke(Point{X: i, Y: i})
		r.EndStroke()
	}

	r.Undo()
	if r.Len() != 2 {
		t.Fatalf("expected 2 strokes after undo, got %d", r.Len())
	}
	if got := r.Strokes()[1].Index; got != 1 {
		t.Errorf("expected newest remaining stroke index 1, got %d", got)
	}
}

func TestRecorderUndoOnEmptyIsNoop(t *testing.T) {
	r := NewRecorder()
	v := r.Version()
	r.Undo()
	if r.Len() != 0 {
		t.Fatalf("undo on empty recorder changed stroke count")
	}
	if r.Version() != v {
		t.Errorf("undo on empty recorder bumped version")
	}
}

func TestRecorderExtendWithoutBeginIgnored(t *testing.T) {
	r := NewRecorder()
	r.ExtendStroke(Point{X: 1, Y: 1})
	r.EndStroke()
	if r.Len() != 0 {
		t.Fatalf("expected no strokes, got %d", r.Len())
	}
}

func TestRecorderBeginFinalizesUnfinishedStroke(t *testing.T) {
	r := NewRecorder()
	r.BeginStroke(Point{X: 1, Y: 1})
	// pointer-up was missed; next pointer-down must not lose the first stroke
	r.BeginStroke(Point{X: 9, Y: 9})
	r.EndStroke()
	if r.Len() != 2 {
		t.Fatalf("expected 2 strokes, got %d", r.Len())
	}
}

func TestRecorderVersionTracksMutations(t *testing.T) {
	r := NewRecorder()
	v0 := r.Version()
	r.BeginStroke(Point{X: 0, Y: 0})
	if r.Version() == v0 {
		t.Fatal("BeginStroke did not bump version")
	}
	v1 := r.Version()
	r.ExtendStroke(Point{X: 0, Y: 0}) // coalesced, no mutation
	if r.Version() != v1 {
		t.Error("coalesced point bumped version")
	}
	r.ExtendStroke(Point{X: 1, Y: 0})
	if r.Version() == v1 {
		t.Error("ExtendStroke did not bump version")
	}
	r.EndStroke()
	v2 := r.Version()
	r.Undo()
	if r.Version() == v2 {
		t.Error("Undo did not bump version")
	}
}

func TestRecorderClear(t *testing.T) {
	r := NewRecorder()
	r.BeginStroke(Point{X: 1, Y: 2})
	r.EndStroke()
	r.BeginStroke(Point{X: 3, Y: 4})
	r.Clear()
	if r.Len() != 0 || r.HasInk() {
		t.Fatal("clear left strokes behind")
	}
	r.ExtendStroke(Point{X: 5, Y: 6})
	r.EndStroke()
	if r.Len() != 0 {
		t.Fatal("cleared current stroke came back")
	}
}

func TestStrokeBounds(t *testing.T) {
	s := Stroke{Points: []Point{{X: 10, Y: 30}, {X: 20, Y: 10}, {X: 15, Y: 40}}}
	min, max, ok := s.Bounds()
	if !ok {
		t.Fatal("expected bounds for non-empty stroke")
	}
	if min != (Point{X: 10, Y: 10}) || max != (Point{X: 20, Y: 40}) {
		t.Errorf("bounds = %v..%v", min, max)
	}

	if _, _, ok := (Stroke{}).Bounds(); ok {
		t.Error("expected ok=false for empty stroke")
	}
}
