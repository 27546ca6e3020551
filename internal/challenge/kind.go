// Package challenge defines the per-type challenge rules and the registry
// that maps a challenge type to them.
package challenge

import (
	"fmt"

	"calixo/internal/apperr"
	"calixo/internal/model"
)

// MaxFocusMinutes is the longest custom duration a focus attempt may choose.
const MaxFocusMinutes = 23 * 60

// Kind defines the rules that vary by challenge type.
// Adding a new type only requires implementing Kind and registering it.
type Kind interface {
	// Type returns the challenge type this kind handles.
	Type() model.ChallengeType

	// DailyCapped reports whether starts of this type count toward and are
	// limited by the per-day cap.
	DailyCapped() bool

	// SessionDuration returns the duration in minutes to record for a new
	// attempt, given the definition and an optional caller-chosen duration.
	SessionDuration(def *model.ChallengeDefinition, custom *int) (*int, error)
}

type dailyKind struct{}

func (dailyKind) Type() model.ChallengeType { return model.ChallengeDaily }
func (dailyKind) DailyCapped() bool         { return true }

func (dailyKind) SessionDuration(def *model.ChallengeDefinition, _ *int) (*int, error) {
	return def.DurationMinutes, nil
}

// FocusKind lets the caller pick the attempt length up to MaxMinutes.
type FocusKind struct {
	MaxMinutes int
}

func (FocusKind) Type() model.ChallengeType { return model.ChallengeFocus }
func (FocusKind) DailyCapped() bool         { return false }

func (k FocusKind) SessionDuration(def *model.ChallengeDefinition, custom *int) (*int, error) {
	if custom == nil {
		return def.DurationMinutes, nil
	}
	maxMinutes := k.MaxMinutes
	if maxMinutes <= 0 {
		maxMinutes = MaxFocusMinutes
	}
	if *custom < 1 || *custom > maxMinutes {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("custom duration must be between 1 and %d minutes", maxMinutes))
	}
	d := *custom
	return &d, nil
}

type socialKind struct{}

func (socialKind) Type() model.ChallengeType { return model.ChallengeSocial }
func (socialKind) DailyCapped() bool         { return false }

func (socialKind) SessionDuration(def *model.ChallengeDefinition, _ *int) (*int, error) {
	return def.DurationMinutes, nil
}
