package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"calixo/internal/model"
)

const reportColumns = `id, reporter_id, reported_user_id, feed_item_id, reason, status, resolution, resolved_by, created_at, resolved_at`

// ReportRepository handles moderation reports.
type ReportRepository struct {
	db DBTX
}

// NewReportRepository creates a new ReportRepository instance.
func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

func scanReport(row rowScanner) (*model.Report, error) {
	var rp model.Report
	err := row.Scan(
		&rp.ID,
		&rp.ReporterID,
		&rp.ReportedUserID,
		&rp.FeedItemID,
		&rp.Reason,
		&rp.Status,
		&rp.Resolution,
		&rp.ResolvedBy,
		&rp.CreatedAt,
		&rp.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

func (r *ReportRepository) getOne(ctx context.Context, query string, args ...any) (*model.Report, error) {
	rp, err := scanReport(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return rp, nil
}

// Create files a pending report.
func (r *ReportRepository) Create(ctx context.Context, rp *model.Report) (*model.Report, error) {
	query := `
		INSERT INTO reports (id, reporter_id, reported_user_id, feed_item_id, reason, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING ` + reportColumns
	return r.getOne(ctx, query, uuid.New(), rp.ReporterID, rp.ReportedUserID, rp.FeedItemID, rp.Reason)
}

// GetForUpdate retrieves and locks a report.
func (r *ReportRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	return r.getOne(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, id)
}

// Resolve stores the moderation outcome.
func (r *ReportRepository) Resolve(ctx context.Context, id uuid.UUID, status model.ReportStatus, resolution *string, by string, at time.Time) (*model.Report, error) {
	query := `
		UPDATE reports
		SET status = $2, resolution = $3, resolved_by = $4, resolved_at = $5
		WHERE id = $1
		RETURNING ` + reportColumns
	return r.getOne(ctx, query, id, status, resolution, by, at)
}

// List returns reports, oldest first, optionally filtered by status.
func (r *ReportRepository) List(ctx context.Context, status *model.ReportStatus, limit int) ([]*model.Report, error) {
	query := `SELECT ` + reportColumns + `
		FROM reports
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at
		LIMIT $2`

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	rows, err := r.db.Query(ctx, query, statusArg, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []*model.Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		out = append(out, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return out, nil
}
