package render

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"typed unavailable", NewError(KindUnavailable, "cli", errors.New("not found")), KindUnavailable},
		{"typed timeout", NewError(KindTimeout, "cli", errors.New("slow")), KindTimeout},
		{"wrapped typed error", fmt.Errorf("outer: %w", NewError(KindIO, "web", errors.New("disk"))), KindIO},
		{"bare deadline", context.DeadlineExceeded, KindTimeout},
		{"bare cancellation", context.Canceled, KindCancelled},
		{"untyped error defaults to render failure", errors.New("boom"), KindRenderFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestNewErrorNormalizesContextErrors(t *testing.T) {
	err := NewError(KindRenderFailure, "cli", fmt.Errorf("run: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, err.Kind, "deadline overruns always classify as timeouts")

	err = NewError(KindUnavailable, "web", fmt.Errorf("exchange: %w", context.Canceled))
	assert.Equal(t, KindCancelled, err.Kind, "cancellations are never blamed on the renderer")
}

func TestFallbackable(t *testing.T) {
	assert.True(t, Fallbackable(NewError(KindUnavailable, "cli", errors.New("x"))))
	assert.True(t, Fallbackable(NewError(KindTimeout, "cli", errors.New("x"))))
	assert.True(t, Fallbackable(NewError(KindRenderFailure, "cli", errors.New("x"))))
	assert.False(t, Fallbackable(NewError(KindIO, "cli", errors.New("x"))))
	assert.False(t, Fallbackable(NewError(KindCancelled, "cli", errors.New("x"))))
}

func TestErrorMessageNamesStrategy(t *testing.T) {
	err := NewError(KindRenderFailure, "web", errors.New("bad syntax"))
	assert.Contains(t, err.Error(), "web strategy")
	assert.Contains(t, err.Error(), "bad syntax")
}
