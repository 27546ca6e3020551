// Package energy implements the avatar energy model: a bounded wellbeing
// value raised by completed challenges and lowered by inactivity.
// All functions are pure.
package energy

import "calixo/internal/model"

const (
	Min = 0
	Max = 100

	// MaxDecay caps the energy lost over one inactivity run.
	MaxDecay = 50
	// DecayPerDay is the energy lost per inactive day.
	DecayPerDay = 2
)

// Level is the presentation bucket of an energy value.
type Level string

const (
	LevelHigh   Level = "alta"
	LevelMedium Level = "media"
	LevelLow    Level = "baja"
)

// LevelOf returns the bucket for an energy value.
func LevelOf(energy int) Level {
	switch {
	case energy >= 70:
		return LevelHigh
	case energy >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Gain returns the energy granted for completing a challenge of the given type.
func Gain(t model.ChallengeType) int {
	switch t {
	case model.ChallengeDaily:
		return 5
	case model.ChallengeFocus:
		return 10
	case model.ChallengeSocial:
		return 8
	default:
		return 0
	}
}

// Decay returns the energy lost after daysInactive days without activity.
func Decay(daysInactive int) int {
	if daysInactive <= 0 {
		return 0
	}
	if daysInactive >= MaxDecay/DecayPerDay {
		return MaxDecay
	}
	return daysInactive * DecayPerDay
}

// DecayDelta returns the decay still owed when decay for appliedDays has
// already been subtracted and the user is now daysInactive days inactive.
// Summing the deltas of a run of sweeps yields Decay(daysInactive).
func DecayDelta(appliedDays, daysInactive int) int {
	if daysInactive <= appliedDays {
		return 0
	}
	return Decay(daysInactive) - Decay(appliedDays)
}

// Clamp bounds an energy value to [Min, Max].
func Clamp(energy int) int {
	return max(Min, min(Max, energy))
}

// AfterCompletion returns the energy after completing a challenge.
func AfterCompletion(energy int, t model.ChallengeType) int {
	return Clamp(energy + Gain(t))
}

// AfterInactivity returns the energy after daysInactive days without activity.
func AfterInactivity(energy, daysInactive int) int {
	return Clamp(energy - Decay(daysInactive))
}
