// Package model defines the data models for the Calixo backend.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role stored on a profile.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Profile is the per-user game state. UserID is the identity provider subject.
type Profile struct {
	UserID           string     `json:"userId"`
	Username         string     `json:"username"`
	AvatarURL        *string    `json:"avatarUrl,omitempty"`
	Role             Role       `json:"role"`
	Coins            int64      `json:"coins"`
	IsPremium        bool       `json:"isPremium"`
	Streak           int        `json:"streak"`
	AvatarEnergy     int        `json:"avatarEnergy"`
	LastActiveAt     *time.Time `json:"lastActiveAt,omitempty"`
	DecayDaysApplied int        `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Transaction types of the coin ledger.
const (
	TxTypeEarn  = "earn"
	TxTypeSpend = "spend"
)

// Transaction is one append-only ledger entry. Amount is signed.
type Transaction struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"userId"`
	Amount      int64      `json:"amount"`
	Type        string     `json:"type"`
	ItemID      *uuid.UUID `json:"itemId,omitempty"`
	ChallengeID *uuid.UUID `json:"challengeId,omitempty"`
	CouponID    *uuid.UUID `json:"couponId,omitempty"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// StoreItem is a purchasable avatar item.
type StoreItem struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       int64     `json:"price"`
	PremiumOnly bool      `json:"premiumOnly"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AvatarCustomization records ownership and equip state of one item.
type AvatarCustomization struct {
	UserID     string    `json:"userId"`
	ItemID     uuid.UUID `json:"itemId"`
	Category   string    `json:"category"`
	Equipped   bool      `json:"equipped"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// Coupon is a discount code. CoinPrice is set for coupons sold in the store.
type Coupon struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	Description     string     `json:"description"`
	DiscountPercent int        `json:"discountPercent"`
	CoinPrice       *int64     `json:"coinPrice,omitempty"`
	MaxUses         *int       `json:"maxUses,omitempty"`
	UsedCount       int        `json:"usedCount"`
	ValidFrom       time.Time  `json:"validFrom"`
	ValidUntil      *time.Time `json:"validUntil,omitempty"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// UserCoupon is a coupon a user obtained with coins.
type UserCoupon struct {
	UserID     string    `json:"userId"`
	Coupon     Coupon    `json:"coupon"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// Follow is an edge of the social graph.
type Follow struct {
	FollowerID string    `json:"followerId"`
	FolloweeID string    `json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FeedItemKind distinguishes user posts from generated activity.
type FeedItemKind string

const (
	FeedItemPost               FeedItemKind = "post"
	FeedItemChallengeCompleted FeedItemKind = "challenge_completed"
)

// FeedItem is an entry of the social feed.
type FeedItem struct {
	ID          uuid.UUID    `json:"id"`
	UserID      string       `json:"userId"`
	Username    string       `json:"username"`
	Kind        FeedItemKind `json:"kind"`
	Content     string       `json:"content"`
	ImageURL    *string      `json:"imageUrl,omitempty"`
	ChallengeID *uuid.UUID   `json:"challengeId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// ReportStatus is the moderation state of a report.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
	ReportResolved ReportStatus = "resolved"
)

// Report is a moderation ticket about a user or a feed item.
type Report struct {
	ID             uuid.UUID    `json:"id"`
	ReporterID     string       `json:"reporterId"`
	ReportedUserID *string      `json:"reportedUserId,omitempty"`
	FeedItemID     *uuid.UUID   `json:"feedItemId,omitempty"`
	Reason         string       `json:"reason"`
	Status         ReportStatus `json:"status"`
	Resolution     *string      `json:"resolution,omitempty"`
	ResolvedBy     *string      `json:"resolvedBy,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	ResolvedAt     *time.Time   `json:"resolvedAt,omitempty"`
}

// Setting keys stored in the settings table.
const (
	SettingDailyLimitFree    = "daily_challenge_limit_free"
	SettingDailyLimitPremium = "daily_challenge_limit_premium"
)
