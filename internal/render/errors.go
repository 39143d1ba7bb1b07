package render

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a render failure. The export manager's fallback decision
// is driven entirely by this classification.
type Kind int

const (
	// KindUnavailable means the backend cannot run at all: binary not
	// installed, sidecar failed to initialize, handshake never completed.
	KindUnavailable Kind = iota + 1

	// KindTimeout means the render exceeded its deadline.
	KindTimeout

	// KindRenderFailure means the backend ran but could not render:
	// malformed diagram or an internal renderer exception.
	KindRenderFailure

	// KindIO means the output could not be written. Never retried.
	KindIO

	// KindCancelled means the caller cancelled the operation. Never retried.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "strategy unavailable"
	case KindTimeout:
		return "render timeout"
	case KindRenderFailure:
		return "render failure"
	case KindIO:
		return "io failure"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Error is a typed render failure tied to the strategy that produced it.
type Error struct {
	Kind     Kind
	Strategy string
	Err      error
}

func (e *Error) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s strategy: %s: %v", e.Strategy, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a failure kind. Context errors are normalized so
// deadline overruns always classify as timeouts and cancellations are never
// mistaken for renderer faults.
func NewError(kind Kind, strategy string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	}
	return &Error{Kind: kind, Strategy: strategy, Err: err}
}

// KindOf extracts the failure kind from err, defaulting to
// KindRenderFailure for untyped errors.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	return KindRenderFailure
}

// Fallbackable reports whether a failure of this kind may trigger the
// alternate strategy under auto mode. IO failures and cancellations are
// final.
func Fallbackable(err error) bool {
	switch KindOf(err) {
	case KindUnavailable, KindTimeout, KindRenderFailure:
		return true
	}
	return false
}
