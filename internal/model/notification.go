package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType tags the payload variant of a notification.
type NotificationType string

const (
	NotificationSocialInvite   NotificationType = "social_invite"
	NotificationSocialAccepted NotificationType = "social_accepted"
	NotificationSocialDeclined NotificationType = "social_declined"
	NotificationNewFollower    NotificationType = "new_follower"
	NotificationReportResolved NotificationType = "report_resolved"
)

// NotificationPayload is the closed set of notification payloads.
// Each variant reports the type it is stored under.
type NotificationPayload interface {
	NotificationType() NotificationType
}

// SocialInvitePayload is sent to the invitee of a social session.
type SocialInvitePayload struct {
	SocialSessionID uuid.UUID `json:"socialSessionId"`
	ChallengeID     uuid.UUID `json:"challengeId"`
	ChallengeTitle  string    `json:"challengeTitle"`
	InviterID       string    `json:"inviterId"`
	InviterName     string    `json:"inviterName"`
}

// SocialResponsePayload is sent to the inviter when the invitee answers.
type SocialResponsePayload struct {
	SocialSessionID uuid.UUID `json:"socialSessionId"`
	InviteeID       string    `json:"inviteeId"`
	InviteeName     string    `json:"inviteeName"`
	accepted        bool
}

// NewFollowerPayload is sent to the followee.
type NewFollowerPayload struct {
	FollowerID   string `json:"followerId"`
	FollowerName string `json:"followerName"`
}

// ReportResolvedPayload is sent to the reporter.
type ReportResolvedPayload struct {
	ReportID       uuid.UUID    `json:"reportId"`
	Status         ReportStatus `json:"status"`
	ContentRemoved bool         `json:"contentRemoved"`
}

func (SocialInvitePayload) NotificationType() NotificationType {
	return NotificationSocialInvite
}

func (NewFollowerPayload) NotificationType() NotificationType {
	return NotificationNewFollower
}

func (ReportResolvedPayload) NotificationType() NotificationType {
	return NotificationReportResolved
}

func (p SocialResponsePayload) NotificationType() NotificationType {
	if p.accepted {
		return NotificationSocialAccepted
	}
	return NotificationSocialDeclined
}

// NewSocialResponse builds the payload for an accepted or declined invitation.
func NewSocialResponse(sessionID uuid.UUID, inviteeID, inviteeName string, accepted bool) SocialResponsePayload {
	return SocialResponsePayload{
		SocialSessionID: sessionID,
		InviteeID:       inviteeID,
		InviteeName:     inviteeName,
		accepted:        accepted,
	}
}

// Notification is a message addressed to one user.
type Notification struct {
	ID        uuid.UUID           `json:"id"`
	UserID    string              `json:"userId"`
	Type      NotificationType    `json:"type"`
	Payload   NotificationPayload `json:"payload"`
	Seen      bool                `json:"seen"`
	CreatedAt time.Time           `json:"createdAt"`
}

// DecodeNotificationPayload decodes a stored payload according to its type tag.
func DecodeNotificationPayload(t NotificationType, raw []byte) (NotificationPayload, error) {
	switch t {
	case NotificationSocialInvite:
		var p SocialInvitePayload
		if err := unmarshalPayload(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case NotificationSocialAccepted, NotificationSocialDeclined:
		var p SocialResponsePayload
		if err := unmarshalPayload(raw, &p); err != nil {
			return nil, err
		}
		p.accepted = t == NotificationSocialAccepted
		return p, nil
	case NotificationNewFollower:
		var p NewFollowerPayload
		if err := unmarshalPayload(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case NotificationReportResolved:
		var p ReportResolvedPayload
		if err := unmarshalPayload(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown notification type %q", t)
	}
}

func unmarshalPayload(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode notification payload: %w", err)
	}
	return nil
}
