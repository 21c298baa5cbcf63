// Package singleinstance implements the activation token: ownership of a
// loopback TCP port proves this process is the sole holder of the hotkey and
// tray presence. A second instance that fails to acquire the port delegates
// its request to the resident over a small line protocol and exits.
package singleinstance

import (
	"context"
	"errors"
)

// ErrAlreadyRunning means the activation token is held by another process.
var ErrAlreadyRunning = errors.New("another instance is already running")

// RequestKind distinguishes delegated client requests.
type RequestKind int

const (
	// KindOpen asks the resident to open its overlay session.
	KindOpen RequestKind = iota
	// KindStatus asks for a read-only status line (hotkey active, service
	// reachable); must be answered without side effects.
	KindStatus
)

func (k RequestKind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Request is one parsed client request.
type Request struct {
	Kind RequestKind
}

// Server owns the TCP endpoint (the activation token) and surfaces delegated
// requests to the event loop.
type Server interface {
	// Start binds the first port of the configured range. Failing to bind
	// returns ErrAlreadyRunning: the token is held elsewhere.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted request as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases the token and stops accepting clients.
	Close() error
}

// Conn represents one delegated client connection.
type Conn interface {
	Request() Request
	// RespondSuccess acknowledges the request; detail carries the status
	// line for KindStatus and is empty for KindOpen.
	RespondSuccess(detail string) error
	RespondError(msg string) error
	Close() error
}

// Client delegates requests to a resident instance.
type Client interface {
	// TryOpen scans the port range and forwards an open request. If no
	// resident is found it returns delegated=false, err=nil.
	TryOpen(ctx context.Context) (delegated bool, err error)
	// QueryStatus fetches the resident's status line.
	QueryStatus(ctx context.Context) (status string, found bool, err error)
}

// NewServer returns the TCP implementation.
func NewServer() Server { return newTCPServer() }

// NewClient returns the TCP implementation.
func NewClient() Client { return newTCPClient() }
