package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"calixo/internal/apperr"
	"calixo/internal/model"
	"calixo/internal/repository"
)

// ModerationService handles user reports and their resolution.
type ModerationService struct {
	store *repository.Store
	now   func() time.Time
}

// NewModerationService creates a new ModerationService instance.
func NewModerationService(store *repository.Store) *ModerationService {
	return &ModerationService{store: store, now: time.Now}
}

// ReportInput describes what is reported and why.
type ReportInput struct {
	ReportedUserID *string    `json:"reportedUserId"`
	FeedItemID     *uuid.UUID `json:"feedItemId"`
	Reason         string     `json:"reason" binding:"required,max=1000"`
}

// Report files a report about a user or a feed item.
func (s *ModerationService) Report(ctx context.Context, reporterID string, in ReportInput) (*model.Report, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	if in.ReportedUserID == nil && in.FeedItemID == nil {
		return nil, ErrReportTarget
	}

	rp := &model.Report{
		ReporterID:     reporterID,
		ReportedUserID: in.ReportedUserID,
		FeedItemID:     in.FeedItemID,
		Reason:         reason,
	}

	err := s.store.InTx(ctx, func(r *repository.Repositories) error {
		if in.FeedItemID != nil {
			it, err := r.Feed.GetItem(ctx, *in.FeedItemID)
			if err != nil {
				return err
			}
			if rp.ReportedUserID == nil {
				rp.ReportedUserID = &it.UserID
			}
		}
		if rp.ReportedUserID != nil {
			if *rp.ReportedUserID == reporterID {
				return ErrReportSelf
			}
			if err := requireUser(ctx, r, *rp.ReportedUserID); err != nil {
				return err
			}
		}
		var err error
		rp, err = r.Reports.Create(ctx, rp)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	log.Info().Str("reporter_id", reporterID).Str("report_id", rp.ID.String()).Msg("Report filed")
	return rp, nil
}

// List returns reports, oldest first, optionally of one status.
func (s *ModerationService) List(ctx context.Context, status *model.ReportStatus, limit int) ([]*model.Report, error) {
	return s.store.Reports.List(ctx, status, clampLimit(limit))
}

// Resolution is a moderator's decision about a report.
type Resolution struct {
	Status        model.ReportStatus `json:"status" binding:"required,oneof=reviewed resolved"`
	Resolution    string             `json:"resolution"`
	DeleteContent bool               `json:"deleteContent"`
}

// Resolve records a moderation decision, optionally deleting the reported
// feed item, and notifies the reporter.
func (s *ModerationService) Resolve(ctx context.Context, moderatorID string, reportID uuid.UUID, in Resolution) (*model.Report, error) {
	if in.Status != model.ReportReviewed && in.Status != model.ReportResolved {
		return nil, apperr.Validation("status must be reviewed or resolved")
	}

	var (
		rp      *model.Report
		removed bool
	)
	err := s.store.InTx(ctx, func(r *repository.Repositories) error {
		cur, err := r.Reports.GetForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		if cur.Status == model.ReportResolved {
			return ErrReportResolved
		}

		if in.DeleteContent && cur.FeedItemID != nil {
			if removed, err = r.Feed.DeleteItem(ctx, *cur.FeedItemID); err != nil {
				return err
			}
		}

		var resolution *string
		if text := strings.TrimSpace(in.Resolution); text != "" {
			resolution = &text
		}
		if rp, err = r.Reports.Resolve(ctx, cur.ID, in.Status, resolution, moderatorID, s.now()); err != nil {
			return err
		}

		_, err = r.Notifications.Create(ctx, cur.ReporterID, model.ReportResolvedPayload{
			ReportID:       cur.ID,
			Status:         in.Status,
			ContentRemoved: removed,
		})
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	log.Info().
		Str("moderator_id", moderatorID).
		Str("report_id", reportID.String()).
		Str("status", string(in.Status)).
		Bool("content_removed", removed).
		Msg("Report resolved")
	return rp, nil
}
