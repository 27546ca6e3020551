package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// schema is applied in order on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id            TEXT PRIMARY KEY,
		username           VARCHAR(64) NOT NULL DEFAULT '',
		avatar_url         TEXT,
		role               VARCHAR(16) NOT NULL DEFAULT 'user',
		coins              BIGINT NOT NULL DEFAULT 0 CHECK (coins >= 0),
		is_premium         BOOLEAN NOT NULL DEFAULT FALSE,
		streak             INT NOT NULL DEFAULT 0 CHECK (streak >= 0),
		avatar_energy      INT NOT NULL DEFAULT 100 CHECK (avatar_energy BETWEEN 0 AND 100),
		last_active_at     TIMESTAMPTZ,
		decay_days_applied INT NOT NULL DEFAULT 0,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_coins ON profiles (coins DESC)`,

	`CREATE TABLE IF NOT EXISTS challenges (
		id               UUID PRIMARY KEY,
		type             VARCHAR(16) NOT NULL CHECK (type IN ('daily', 'focus', 'social')),
		title            VARCHAR(200) NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		reward           BIGINT NOT NULL DEFAULT 0 CHECK (reward >= 0),
		duration_minutes INT CHECK (duration_minutes > 0),
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS user_challenges (
		id           UUID PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES profiles(user_id),
		challenge_id UUID NOT NULL REFERENCES challenges(id),
		status       VARCHAR(16) NOT NULL CHECK (status IN ('in_progress', 'completed', 'failed')),
		started_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ,
		failed_at    TIMESTAMPTZ,
		session_data JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_user_challenges_one_active
		ON user_challenges (user_id) WHERE status = 'in_progress'`,
	`CREATE INDEX IF NOT EXISTS idx_user_challenges_user_started
		ON user_challenges (user_id, started_at DESC)`,

	`CREATE TABLE IF NOT EXISTS store_items (
		id           UUID PRIMARY KEY,
		item_key     VARCHAR(100) NOT NULL UNIQUE,
		name         VARCHAR(200) NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		category     VARCHAR(32) NOT NULL,
		price        BIGINT NOT NULL CHECK (price >= 0),
		premium_only BOOLEAN NOT NULL DEFAULT FALSE,
		image_url    TEXT,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS coupons (
		id               UUID PRIMARY KEY,
		code             VARCHAR(64) NOT NULL UNIQUE,
		description      TEXT NOT NULL DEFAULT '',
		discount_percent INT NOT NULL CHECK (discount_percent BETWEEN 0 AND 100),
		coin_price       BIGINT CHECK (coin_price >= 0),
		max_uses         INT CHECK (max_uses > 0),
		used_count       INT NOT NULL DEFAULT 0,
		valid_from       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		valid_until      TIMESTAMPTZ,
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (max_uses IS NULL OR used_count <= max_uses)
	)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id           BIGSERIAL PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES profiles(user_id),
		amount       BIGINT NOT NULL,
		type         VARCHAR(8) NOT NULL CHECK (type IN ('earn', 'spend')),
		item_id      UUID REFERENCES store_items(id),
		challenge_id UUID REFERENCES challenges(id),
		coupon_id    UUID REFERENCES coupons(id),
		description  TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((type = 'earn' AND amount > 0) OR (type = 'spend' AND amount < 0))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		ON transactions (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS avatar_customizations (
		user_id     TEXT NOT NULL REFERENCES profiles(user_id),
		item_id     UUID NOT NULL REFERENCES store_items(id),
		category    VARCHAR(32) NOT NULL,
		equipped    BOOLEAN NOT NULL DEFAULT FALSE,
		unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, item_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_avatar_one_equipped_per_category
		ON avatar_customizations (user_id, category) WHERE equipped`,

	`CREATE TABLE IF NOT EXISTS user_coupons (
		user_id     TEXT NOT NULL REFERENCES profiles(user_id),
		coupon_id   UUID NOT NULL REFERENCES coupons(id),
		acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, coupon_id)
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id         UUID PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES profiles(user_id),
		type       VARCHAR(32) NOT NULL,
		payload    JSONB NOT NULL,
		seen       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_created
		ON notifications (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL REFERENCES profiles(user_id),
		followee_id TEXT NOT NULL REFERENCES profiles(user_id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (follower_id, followee_id),
		CHECK (follower_id <> followee_id)
	)`,

	`CREATE TABLE IF NOT EXISTS feed_items (
		id           UUID PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES profiles(user_id),
		kind         VARCHAR(32) NOT NULL,
		content      TEXT NOT NULL DEFAULT '',
		image_url    TEXT,
		challenge_id UUID REFERENCES challenges(id),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feed_items_user_created
		ON feed_items (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS reports (
		id               UUID PRIMARY KEY,
		reporter_id      TEXT NOT NULL REFERENCES profiles(user_id),
		reported_user_id TEXT REFERENCES profiles(user_id),
		feed_item_id     UUID,
		reason           TEXT NOT NULL,
		status           VARCHAR(16) NOT NULL DEFAULT 'pending',
		resolution       TEXT,
		resolved_by      TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at      TIMESTAMPTZ,
		CHECK (reported_user_id IS NOT NULL OR feed_item_id IS NOT NULL)
	)`,

	`CREATE TABLE IF NOT EXISTS focus_sessions (
		id                     UUID PRIMARY KEY,
		user_id                TEXT NOT NULL REFERENCES profiles(user_id),
		user_challenge_id      UUID NOT NULL REFERENCES user_challenges(id),
		duration_seconds       INT NOT NULL DEFAULT 0,
		interruptions          INT NOT NULL DEFAULT 0,
		completed_successfully BOOLEAN NOT NULL,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS social_sessions (
		id           UUID PRIMARY KEY,
		challenge_id UUID NOT NULL REFERENCES challenges(id),
		inviter_id   TEXT NOT NULL REFERENCES profiles(user_id),
		invitee_id   TEXT NOT NULL REFERENCES profiles(user_id),
		status       VARCHAR(16) NOT NULL DEFAULT 'pending',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		responded_at TIMESTAMPTZ,
		CHECK (inviter_id <> invitee_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_social_sessions_pending
		ON social_sessions (created_at) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS settings (
		key        VARCHAR(64) PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, p *Pool) error {
	for i, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i, err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("Database schema is up to date")
	return nil
}
