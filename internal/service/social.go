package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"calixo/internal/apperr"
	"calixo/internal/model"
	"calixo/internal/pkg/lock"
	"calixo/internal/repository"
)

// maxPostLength bounds the text of a feed post.
const maxPostLength = 2000

// SocialService handles the follow graph, the feed and social challenge
// invitations.
type SocialService struct {
	store     *repository.Store
	userLock  *lock.UserLock
	blobs     BlobStore
	inviteTTL time.Duration
	now       func() time.Time
}

// NewSocialService creates a new SocialService instance. blobs may be nil.
func NewSocialService(store *repository.Store, userLock *lock.UserLock, blobs BlobStore, inviteTTL time.Duration) *SocialService {
	if inviteTTL <= 0 {
		inviteTTL = 24 * time.Hour
	}
	return &SocialService{
		store:     store,
		userLock:  userLock,
		blobs:     blobs,
		inviteTTL: inviteTTL,
		now:       time.Now,
	}
}

// Follow makes userID follow followeeID and notifies the followee the first
// time. Following twice is a no-op.
func (s *SocialService) Follow(ctx context.Context, userID, followeeID string) error {
	if userID == followeeID {
		return ErrSelfFollow
	}
	err := s.store.InTx(ctx, func(r *repository.Repositories) error {
		follower, err := r.Profiles.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := requireUser(ctx, r, followeeID); err != nil {
			return err
		}
		created, err := r.Feed.Follow(ctx, userID, followeeID)
		if err != nil || !created {
			return err
		}
		_, err = r.Notifications.Create(ctx, followeeID, model.NewFollowerPayload{
			FollowerID:   userID,
			FollowerName: follower.Username,
		})
		return err
	})
	return translate(err)
}

// Unfollow removes the edge if present.
func (s *SocialService) Unfollow(ctx context.Context, userID, followeeID string) error {
	_, err := s.store.Feed.Unfollow(ctx, userID, followeeID)
	return err
}

// Feed returns the caller's posts and those of followed users, newest first.
// before paginates; the zero time starts from now.
func (s *SocialService) Feed(ctx context.Context, userID string, before time.Time, limit int) ([]*model.FeedItem, error) {
	if before.IsZero() {
		before = s.now().Add(time.Second)
	}
	return s.store.Feed.ListFeed(ctx, userID, before, clampLimit(limit))
}

// Post publishes a feed item with text, an image, or both.
func (s *SocialService) Post(ctx context.Context, userID, content string, image *Upload) (*model.FeedItem, error) {
	content = strings.TrimSpace(content)
	if content == "" && image == nil {
		return nil, ErrEmptyPost
	}
	if len([]rune(content)) > maxPostLength {
		return nil, apperr.Validation("post is too long")
	}

	p, err := s.store.Profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}

	item := &model.FeedItem{
		UserID:   userID,
		Username: p.Username,
		Kind:     model.FeedItemPost,
		Content:  content,
	}
	if image != nil {
		url, err := storeImage(ctx, s.blobs, "feed", userID, image)
		if err != nil {
			return nil, err
		}
		item.ImageURL = &url
	}

	if err := s.store.Feed.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Invite asks another user to take a social challenge together.
func (s *SocialService) Invite(ctx context.Context, userID string, challengeID uuid.UUID, inviteeID string) (*model.SocialSession, error) {
	if userID == inviteeID {
		return nil, ErrSelfInvite
	}

	var ss *model.SocialSession
	err := s.store.InTx(ctx, func(r *repository.Repositories) error {
		def, err := r.Challenges.GetByID(ctx, challengeID)
		if err != nil {
			return err
		}
		if !def.IsActive {
			return ErrChallengeNotFound
		}
		if def.Type != model.ChallengeSocial {
			return ErrNotSocialChallenge
		}

		inviter, err := r.Profiles.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := requireUser(ctx, r, inviteeID); err != nil {
			return err
		}

		if ss, err = r.Social.Create(ctx, def.ID, userID, inviteeID); err != nil {
			return err
		}
		_, err = r.Notifications.Create(ctx, inviteeID, model.SocialInvitePayload{
			SocialSessionID: ss.ID,
			ChallengeID:     def.ID,
			ChallengeTitle:  def.Title,
			InviterID:       userID,
			InviterName:     inviter.Username,
		})
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	log.Info().
		Str("inviter_id", userID).
		Str("invitee_id", inviteeID).
		Str("social_session_id", ss.ID.String()).
		Msg("Social invitation sent")
	return ss, nil
}

// Accept accepts a pending invitation addressed to the caller.
func (s *SocialService) Accept(ctx context.Context, userID string, inviteID uuid.UUID) (*model.SocialSession, error) {
	return s.respond(ctx, userID, inviteID, true)
}

// Decline declines a pending invitation addressed to the caller.
func (s *SocialService) Decline(ctx context.Context, userID string, inviteID uuid.UUID) (*model.SocialSession, error) {
	return s.respond(ctx, userID, inviteID, false)
}

func (s *SocialService) respond(ctx context.Context, userID string, inviteID uuid.UUID, accept bool) (*model.SocialSession, error) {
	var ss *model.SocialSession

	err := s.store.InTx(ctx, func(r *repository.Repositories) error {
		now := s.now()

		cur, err := r.Social.GetForUpdate(ctx, inviteID)
		if err != nil {
			return err
		}
		if cur.InviteeID != userID {
			return ErrInviteNotFound
		}
		if err := checkInvite(cur, now, s.inviteTTL); err != nil {
			return err
		}

		status := model.SocialDeclined
		if accept {
			status = model.SocialInProgress
		}
		if ss, err = r.Social.Respond(ctx, cur.ID, status, now); err != nil {
			return err
		}

		invitee, err := r.Profiles.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		_, err = r.Notifications.Create(ctx, cur.InviterID,
			model.NewSocialResponse(cur.ID, userID, invitee.Username, accept))
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	log.Info().
		Str("user_id", userID).
		Str("social_session_id", inviteID.String()).
		Bool("accepted", accept).
		Msg("Social invitation answered")
	return ss, nil
}

// checkInvite reports whether an invitation can still be answered at now.
func checkInvite(ss *model.SocialSession, now time.Time, ttl time.Duration) error {
	switch {
	case ss.Status == model.SocialExpired:
		return ErrInviteExpired
	case ss.Status != model.SocialPending:
		return ErrInviteNotPending
	case now.Sub(ss.CreatedAt) > ttl:
		return ErrInviteExpired
	}
	return nil
}

// ListInvites returns invitations sent or received by the caller.
func (s *SocialService) ListInvites(ctx context.Context, userID string, limit int) ([]*model.SocialSession, error) {
	return s.store.Social.ListForUser(ctx, userID, clampLimit(limit))
}

// ExpireInvites marks pending invitations older than the TTL as expired.
func (s *SocialService) ExpireInvites(ctx context.Context) (int64, error) {
	return s.store.Social.ExpirePending(ctx, s.now().Add(-s.inviteTTL))
}
