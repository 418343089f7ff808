// Package errs classifies every error a long-running service raises into
// one of six kinds, logged
// at the kind's policy-appropriate level through go.uber.org/zap, and
// counted per kind for operational visibility through
// prometheus/client_golang. No panics or exceptions cross a goroutine
// boundary — a Fatal error is reported through this package and the
// caller's Run loop returns, letting the composition root's shutdown path
// join cleanly.
package errs

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Kind classifies an error by the handling policy attached to it.
type Kind uint8

const (
	// Transport: send/receive failure at the messaging layer. Policy:
	// log warning, increment drop counter, continue.
	Transport Kind = iota
	// Parse: malformed wire frame or historical data row. Policy: log
	// warning, skip the offending message, continue.
	Parse
	// BookReject: an order-book update violated an invariant (crossed
	// book, stale sequence). Policy: log warning, discard the update.
	BookReject
	// FillHold: a fill simulator order can't be evaluated yet (no
	// market state, market closed). Policy: log debug, retry later.
	FillHold
	// Risk: a pre-/post-trade risk limit breach. Policy: log per
	// severity, deny (pre-trade) or alert (post-trade).
	Risk
	// Fatal: unrecoverable failure (bind failure, allocation failure).
	// Policy: log critical, stop the service cleanly.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Parse:
		return "parse"
	case BookReject:
		return "book_reject"
	case FillHold:
		return "fill_hold"
	case Risk:
		return "risk"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its Kind and the component that
// raised it.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s[%s]: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err as a classified Error.
func New(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

var kindCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "hft_errors_total",
	Help: "Count of classified errors raised, by kind and component.",
}, []string{"kind", "component"})

func init() {
	prometheus.MustRegister(kindCounter)
}

// Report logs e at the level its Kind's policy calls for and increments
// its counter. Call this at the point an error is classified, not at
// every layer it's subsequently wrapped through.
func Report(logger *zap.Logger, e *Error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	kindCounter.WithLabelValues(e.Kind.String(), e.Component).Inc()

	fields := []zap.Field{zap.String("component", e.Component), zap.Error(e.Err)}
	switch e.Kind {
	case Fatal:
		logger.Error(e.Kind.String(), fields...)
	case Risk, BookReject:
		logger.Warn(e.Kind.String(), fields...)
	case FillHold:
		logger.Debug(e.Kind.String(), fields...)
	default:
		logger.Warn(e.Kind.String(), fields...)
	}
}

// IsFatal reports whether err is a classified Fatal error, unwrapping as
// needed so a Run loop can decide whether to stop.
func IsFatal(err error) bool {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return e != nil && e.Kind == Fatal
}
