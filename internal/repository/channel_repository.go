package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/crosspost/internal/models"
)

type ChannelRepository interface {
	Upsert(ctx context.Context, ch *models.Channel) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Channel, error)
	List(ctx context.Context, ownerUserID int64) ([]*models.Channel, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.Channel, error)
	UpdateTokens(ctx context.Context, id int64, tu *models.TokenUpdate) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type channelRepository struct {
	db *sqlx.DB
}

func NewChannelRepository(db *sqlx.DB) ChannelRepository {
	return &channelRepository{db: db}
}

const channelColumns = `id, platform, external_id, name, username, avatar_url, access_token,
	token_expires_at, is_active, owner_user_id, metadata, created_at, updated_at`

func (r *channelRepository) Upsert(ctx context.Context, ch *models.Channel) (int64, error) {
	query := `
		INSERT INTO channels (
			platform,
			external_id,
			name,
			username,
			avatar_url,
			access_token,
			token_expires_at,
			is_active,
			owner_user_id,
			metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9)
		ON CONFLICT (platform, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			username = EXCLUDED.username,
			avatar_url = EXCLUDED.avatar_url,
			access_token = EXCLUDED.access_token,
			token_expires_at = EXCLUDED.token_expires_at,
			is_active = TRUE,
			owner_user_id = COALESCE(EXCLUDED.owner_user_id, channels.owner_user_id),
			metadata = channels.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		ch.Platform,
		ch.ExternalID,
		ch.Name,
		ch.Username,
		ch.AvatarURL,
		ch.AccessToken,
		ch.TokenExpiresAt,
		ch.OwnerUserID,
		ch.Metadata,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *channelRepository) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	var ch models.Channel
	err := r.db.GetContext(ctx, &ch, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &ch, nil
}

func (r *channelRepository) List(ctx context.Context, ownerUserID int64) ([]*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels`
	args := []interface{}{}

	if ownerUserID != 0 {
		query += ` WHERE owner_user_id = $1`
		args = append(args, ownerUserID)
	}
	query += ` ORDER BY id`

	var channels []*models.Channel
	if err := r.db.SelectContext(ctx, &channels, query, args...); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return channels, nil
}

// ListExpiring returns active channels holding a refresh token whose access token expires before the given time.
func (r *channelRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE is_active
			AND token_expires_at IS NOT NULL
			AND token_expires_at <= $1
			AND COALESCE(metadata->>'refresh_token', '') <> ''
		ORDER BY token_expires_at
	`

	var channels []*models.Channel
	if err := r.db.SelectContext(ctx, &channels, query, before); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return channels, nil
}

func (r *channelRepository) UpdateTokens(ctx context.Context, id int64, tu *models.TokenUpdate) error {
	query := `
		UPDATE channels
		SET access_token = $2,
			token_expires_at = $3,
			metadata = CASE
				WHEN $4::text = '' THEN metadata
				ELSE jsonb_set(COALESCE(metadata, '{}'::jsonb), '{refresh_token}', to_jsonb($4::text))
			END,
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, tu.AccessToken, tu.ExpiresAt, tu.RefreshToken)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *channelRepository) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE channels SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
