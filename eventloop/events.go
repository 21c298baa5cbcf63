package eventloop

import "ink2tex/canvas"

// Event is one unit of interaction input posted into the loop. Producers run
// on foreign threads (hotkey listener, overlay window, tray); the loop drains
// events on its own goroutine, so session state is never touched cross-thread.
type Event interface {
	Type() string
}

const (
	TypeOpenRequested    = "OpenRequested"
	TypePointerDown      = "PointerDown"
	TypePointerMove      = "PointerMove"
	TypePointerUp        = "PointerUp"
	TypeUndoStroke       = "UndoStroke"
	TypeClearCanvas      = "ClearCanvas"
	TypeConvertRequested = "ConvertRequested"
	TypeResultEdited     = "ResultEdited"
	TypeAcceptResult     = "AcceptResult"
	TypeDismissRequested = "DismissRequested"
)

// OpenRequested - hotkey press, tray click, or a delegated client asking for
// an overlay session.
type OpenRequested struct{}

func (OpenRequested) Type() string { return TypeOpenRequested }

// PointerDown - pointer pressed on the canvas at P (canvas-local pixels).
type PointerDown struct{ P canvas.Point }

func (PointerDown) Type() string { return TypePointerDown }

// PointerMove - pointer dragged to P while down.
type PointerMove struct{ P canvas.Point }

func (PointerMove) Type() string { return TypePointerMove }

// PointerUp - pointer released, finalizing the current stroke.
type PointerUp struct{}

func (PointerUp) Type() string { return TypePointerUp }

// UndoStroke - remove the most recently completed stroke.
type UndoStroke struct{}

func (UndoStroke) Type() string { return TypeUndoStroke }

// ClearCanvas - drop all strokes.
type ClearCanvas struct{}

func (ClearCanvas) Type() string { return TypeClearCanvas }

// ConvertRequested - dispatch the drawing to the recognition service.
type ConvertRequested struct{}

func (ConvertRequested) Type() string { return TypeConvertRequested }

// ResultEdited - the user edited the recognized text.
type ResultEdited struct{ Text string }

func (ResultEdited) Type() string { return TypeResultEdited }

// AcceptResult - keep the result (already on the clipboard) and close.
type AcceptResult struct{}

func (AcceptResult) Type() string { return TypeAcceptResult }

// DismissRequested - cancel key or external force-close.
type DismissRequested struct{}

func (DismissRequested) Type() string { return TypeDismissRequested }
