package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/crosspost/internal/models"
)

type VideoRepository interface {
	Create(ctx context.Context, v *models.Video) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Video, error)
}

type videoRepository struct {
	db *sqlx.DB
}

func NewVideoRepository(db *sqlx.DB) VideoRepository {
	return &videoRepository{db: db}
}

func (r *videoRepository) Create(ctx context.Context, v *models.Video) (int64, error) {
	query := `
		INSERT INTO videos (title, file_path, content_type, file_size, uploaded_by_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query, v.Title, v.FilePath, v.ContentType, v.FileSize, v.UploadedByID).
		Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return v.ID, nil
}

func (r *videoRepository) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	var v models.Video
	err := r.db.GetContext(ctx, &v, `SELECT id, title, file_path, content_type, file_size, uploaded_by_id, created_at FROM videos WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &v, nil
}
