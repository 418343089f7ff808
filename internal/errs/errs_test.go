package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsKindAndComponent(t *testing.T) {
	e := New(Parse, "historical/csv", errors.New("bad row"))
	assert.Equal(t, "historical/csv[parse]: bad row", e.Error())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	e := New(Transport, "transport", cause)
	assert.ErrorIs(t, e, cause)
}

func TestIsFatalDetectsWrappedFatal(t *testing.T) {
	fatal := New(Fatal, "gateway", errors.New("bind failed"))
	wrapped := fmt.Errorf("startup: %w", fatal)

	assert.True(t, IsFatal(wrapped))
	assert.False(t, IsFatal(New(Risk, "risk", errors.New("limit"))))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestReportTalliesWithoutLogger(t *testing.T) {
	// nil logger must not panic; counting still happens.
	Report(nil, New(BookReject, "book", errors.New("stale sequence")))
}
