package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/maheshrc27/crosspost/internal/models"
)

type PostTargetRepository interface {
	GetByID(ctx context.Context, id int64) (*models.PostTarget, error)
	Update(ctx context.Context, t *models.PostTarget) error
	// Transition moves a target to status `to` only if it is currently in one of `from`.
	Transition(ctx context.Context, id int64, from []models.Status, to models.Status) (bool, error)
	ListDue(ctx context.Context, before time.Time, limit int) ([]*models.PostTarget, error)
}

type postTargetRepository struct {
	db *sqlx.DB
}

func NewPostTargetRepository(db *sqlx.DB) PostTargetRepository {
	return &postTargetRepository{db: db}
}

const targetColumns = `id, post_id, channel_id, platform, scheduled_time, posted_time, status,
	platform_post_id, error_message, created_at, updated_at`

func insertTargets(ctx context.Context, tx *sqlx.Tx, targets []*models.PostTarget) error {
	query := `
		INSERT INTO post_targets (post_id, channel_id, platform, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	for _, t := range targets {
		err := tx.QueryRowxContext(ctx, query, t.PostID, t.ChannelID, t.Platform, t.ScheduledTime, t.Status).
			Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	return nil
}

func (r *postTargetRepository) GetByID(ctx context.Context, id int64) (*models.PostTarget, error) {
	var t models.PostTarget
	err := r.db.GetContext(ctx, &t, `SELECT `+targetColumns+` FROM post_targets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &t, nil
}

func (r *postTargetRepository) Update(ctx context.Context, t *models.PostTarget) error {
	query := `
		UPDATE post_targets
		SET status = $2,
			platform_post_id = $3,
			error_message = $4,
			posted_time = $5,
			scheduled_time = $6,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.Status, t.PlatformPostID, t.ErrorMessage, t.PostedTime, t.ScheduledTime)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postTargetRepository) Transition(ctx context.Context, id int64, from []models.Status, to models.Status) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE post_targets SET status = $2, updated_at = NOW() WHERE id = $1 AND status = ANY($3)`,
		id, to, pq.Array(states))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *postTargetRepository) ListDue(ctx context.Context, before time.Time, limit int) ([]*models.PostTarget, error) {
	query := `
		SELECT ` + targetColumns + `
		FROM post_targets
		WHERE status = $1 AND scheduled_time IS NOT NULL AND scheduled_time <= $2
		ORDER BY scheduled_time
		LIMIT $3
	`

	var targets []*models.PostTarget
	if err := r.db.SelectContext(ctx, &targets, query, models.StatusScheduled, before, limit); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return targets, nil
}
