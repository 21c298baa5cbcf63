package canvas

// Point is a canvas-local pixel coordinate.
type Point struct {
	X int
	Y int
}

// Stroke is one continuous pointer-down-to-pointer-up path. Points are
// appended while the pointer is down and never mutated after the stroke
// is finalized.
type Stroke struct {
	// Index is the creation index, increasing across the session.
	Index  int
	Points []Point
}

// Bounds returns the inclusive min/max corners of the stroke. ok is false
// for a stroke with no points.
func (s Stroke) Bounds() (min, max Point, ok bool) {
	if len(s.Points) == 0 {
		return Point{}, Point{}, false
	}
	min, max = s.Points[0], s.Points[0]
	for _, p := range s.Points[1:] {
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
	}
	return min, max, true
}

// Recorder accumulates strokes for one overlay session. All methods must be
// called from the interaction goroutine; the recorder does no locking.
type Recorder struct {
	strokes []Stroke
	current *Stroke
	nextIdx int
	version uint64
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Version increases on every mutation. Callers caching anything derived from
// the stroke list (e.g. the crop rectangle) compare versions to know when the
// cache is stale.
func (r *Recorder) Version() uint64 { return r.version }

// BeginStroke starts a new current stroke at p. An unfinished previous stroke
// is finalized first so a missed pointer-up cannot drop ink.
func (r *Recorder) BeginStroke(p Point) {
	if r.current != nil {
		r.EndStroke()
	}
	r.current = &Stroke{Index: r.nextIdx, Points: []Point{p}}
	r.nextIdx++
	r.version++
}

// ExtendStroke appends p to the current stroke. Consecutive duplicate points
// are coalesced so zero-length segments never enter the path. Without a
// current stroke the call is ignored.
func (r *Recorder) ExtendStroke(p Point) {
	if r.current == nil {
		return
	}
	last := r.current.Points[len(r.current.Points)-1]
	if last == p {
		return
	}
	r.current.Points = append(r.current.Points, p)
	r.version++
}

// EndStroke finalizes the current stroke and pushes it onto the undo list.
func (r *Recorder) EndStroke() {
	if r.current == nil {
		return
	}
	r.strokes = append(r.strokes, *r.current)
	r.current = nil
	r.version++
}

// Undo removes the most recently completed stroke. With no completed strokes
// it is a no-op, not an error.
func (r *Recorder) Undo() {
	if len(r.strokes) == 0 {
		return
	}
	r.strokes = r.strokes[:len(r.strokes)-1]
	r.version++
}

// Clear drops all strokes, completed and current.
func (r *Recorder) Clear() {
	if len(r.strokes) == 0 && r.current == nil {
		return
	}
	r.strokes = nil
	r.current = nil
	r.version++
}

// Strokes returns the completed strokes in creation order. The slice is
// shared; callers must not mutate it.
func (r *Recorder) Strokes() []Stroke { return r.strokes }

// HasInk reports whether at least one completed stroke exists.
func (r *Recorder) HasInk() bool { return len(r.strokes) > 0 }

// Len returns the number of completed strokes.
func (r *Recorder) Len() int { return len(r.strokes) }
