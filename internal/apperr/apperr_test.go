package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	sentinel := New(KindNotFound, "profile not found")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sentinel", sentinel, KindNotFound},
		{"wrapped with fmt", fmt.Errorf("load: %w", sentinel), KindNotFound},
		{"wrap keeps outer kind", Wrap(KindStateConflict, "limit reached", sentinel), KindStateConflict},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessageOf_HidesInternals(t *testing.T) {
	assert.Equal(t, "not enough coins", MessageOf(New(KindInsufficientResource, "not enough coins")))
	assert.Equal(t, "not enough coins", MessageOf(fmt.Errorf("purchase: %w", New(KindInsufficientResource, "not enough coins"))))
	assert.NotContains(t, MessageOf(errors.New("pq: relation missing")), "relation")
	assert.NotContains(t, MessageOf(Wrap(KindInternal, "db exploded", nil)), "exploded")
}

func TestWrap_Is(t *testing.T) {
	sentinel := New(KindStateConflict, "daily limit reached")
	err := Wrap(KindStateConflict, "daily limit reached: 1 of 1 used", sentinel)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "daily limit reached: 1 of 1 used", err.Error())
}
