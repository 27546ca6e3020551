package model

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeType is the kind of a challenge definition.
type ChallengeType string

const (
	ChallengeDaily  ChallengeType = "daily"
	ChallengeFocus  ChallengeType = "focus"
	ChallengeSocial ChallengeType = "social"
)

// ChallengeTypes returns every known challenge type.
func ChallengeTypes() []ChallengeType {
	return []ChallengeType{ChallengeDaily, ChallengeFocus, ChallengeSocial}
}

// Valid reports whether t is a known challenge type.
func (t ChallengeType) Valid() bool {
	switch t {
	case ChallengeDaily, ChallengeFocus, ChallengeSocial:
		return true
	}
	return false
}

// ChallengeDefinition is a catalog entry. Definitions are deactivated, never deleted.
type ChallengeDefinition struct {
	ID              uuid.UUID     `json:"id"`
	Type            ChallengeType `json:"type"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Reward          int64         `json:"reward"`
	DurationMinutes *int          `json:"durationMinutes,omitempty"`
	IsActive        bool          `json:"isActive"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// SessionStatus is the state of a challenge session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// Terminal reports whether no transition leaves the status.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// ChallengeSession is one attempt by one user at one challenge definition.
type ChallengeSession struct {
	ID          uuid.UUID     `json:"id"`
	UserID      string        `json:"userId"`
	ChallengeID uuid.UUID     `json:"challengeId"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	FailedAt    *time.Time    `json:"failedAt,omitempty"`
	SessionData SessionData   `json:"sessionData"`

	// Challenge is populated by reads that join the definition.
	Challenge *ChallengeDefinition `json:"challenge,omitempty"`
}

// SessionData is the attempt metadata stored with a session. At most one of
// Cancellation, Failure and Completion is set, matching how the session ended.
type SessionData struct {
	DurationMinutes *int          `json:"durationMinutes,omitempty"`
	StartTime       time.Time     `json:"startTime"`
	Interruptions   int           `json:"interruptions"`
	Cancellation    *Cancellation `json:"cancellation,omitempty"`
	Failure         *Failure      `json:"failure,omitempty"`
	Completion      *Completion   `json:"completion,omitempty"`
}

// Cancellation records a user-initiated abort.
type Cancellation struct {
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// Failure records a failed attempt together with the client-reported metrics.
type Failure struct {
	Reason          string `json:"reason"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	Interruptions   int    `json:"interruptions,omitempty"`
}

// Completion records the client-reported metrics of a successful attempt.
type Completion struct {
	DurationSeconds int `json:"durationSeconds,omitempty"`
	Interruptions   int `json:"interruptions,omitempty"`
}

// AttemptMetrics is what a client reports about a finished attempt.
type AttemptMetrics struct {
	DurationSeconds int `json:"durationSeconds" binding:"gte=0"`
	Interruptions   int `json:"interruptions" binding:"gte=0"`
}

// FocusSession is a denormalized audit row of a timed attempt.
type FocusSession struct {
	ID                    uuid.UUID `json:"id"`
	UserID                string    `json:"userId"`
	UserChallengeID       uuid.UUID `json:"userChallengeId"`
	DurationSeconds       int       `json:"durationSeconds"`
	Interruptions         int       `json:"interruptions"`
	CompletedSuccessfully bool      `json:"completedSuccessfully"`
	CreatedAt             time.Time `json:"createdAt"`
}

// SocialSessionStatus is the state of a social challenge invitation.
type SocialSessionStatus string

const (
	SocialPending    SocialSessionStatus = "pending"
	SocialInProgress SocialSessionStatus = "in_progress"
	SocialDeclined   SocialSessionStatus = "declined"
	SocialExpired    SocialSessionStatus = "expired"
)

// SocialSession pairs an inviter and an invitee around a shared challenge.
type SocialSession struct {
	ID          uuid.UUID           `json:"id"`
	ChallengeID uuid.UUID           `json:"challengeId"`
	InviterID   string              `json:"inviterId"`
	InviteeID   string              `json:"inviteeId"`
	Status      SocialSessionStatus `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	RespondedAt *time.Time          `json:"respondedAt,omitempty"`
}
