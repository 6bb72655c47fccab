// ABOUTME: Error taxonomy for clock startup and time sync failures
// ABOUTME: Kinds classify failures so callers can decide fatal vs degraded
package clockerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a clock error.
type Kind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindNetworkUnavailable means no network association exists.
	KindNetworkUnavailable
	// KindTimeSyncTimeout means the sync deadline passed without any sample.
	KindTimeSyncTimeout
	// KindImplausibleTime means samples arrived but none passed the year check.
	KindImplausibleTime
	// KindDisplayInit means a panel, bus or font could not be initialized.
	KindDisplayInit
)

func (k Kind) String() string {
	switch k {
	case KindNetworkUnavailable:
		return "network unavailable"
	case KindTimeSyncTimeout:
		return "time sync timeout"
	case KindImplausibleTime:
		return "implausible time"
	case KindDisplayInit:
		return "display init"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks. Any *Error of the same kind matches.
var (
	ErrNetworkUnavailable = &Error{Kind: KindNetworkUnavailable}
	ErrTimeSyncTimeout    = &Error{Kind: KindTimeSyncTimeout}
	ErrImplausibleTime    = &Error{Kind: KindImplausibleTime}
	ErrDisplayInit        = &Error{Kind: KindDisplayInit}
)

// Error is a classified clock error.
type Error struct {
	// Op is the operation that failed (e.g. "timesource.Sync").
	Op string
	// Kind categorizes the error.
	Kind Kind
	// Err is the underlying error, if any.
	Err error
}

// New creates a classified error.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s [%s]", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("[%s]: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Fatal reports whether err must halt startup. Only display init failures do;
// network and sync failures degrade to the local clock.
func Fatal(err error) bool {
	return errors.Is(err, ErrDisplayInit)
}
