package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/maheshrc27/crosspost/internal/models"
)

type PostFilter struct {
	Status      models.Status
	CreatedByID int64
	Limit       int
	Offset      int
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post, targets []*models.PostTarget) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, caption, hashtags, video_id, default_scheduled_time, overrides, status,
	created_by_id, created_at, updated_at`

// Create writes the post and its targets in one transaction and fills in the generated ids.
func (r *postRepository) Create(ctx context.Context, post *models.Post, targets []*models.PostTarget) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts (caption, hashtags, video_id, default_scheduled_time, overrides, status, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowxContext(ctx, query,
		post.Caption,
		post.Hashtags,
		post.VideoID,
		post.DefaultScheduledTime,
		post.Overrides,
		post.Status,
		post.CreatedByID,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	for _, t := range targets {
		t.PostID = post.ID
	}
	if err := insertTargets(ctx, tx, targets); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	post.Targets = targets
	return post.ID, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	err := r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	if err := r.attachTargets(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR created_by_id = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var posts []*models.Post
	err := r.db.SelectContext(ctx, &posts, query, string(filter.Status), filter.CreatedByID, limit, filter.Offset)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if err := r.attachTargets(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) attachTargets(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(posts))
	byID := make(map[int64]*models.Post, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	var targets []*models.PostTarget
	query := `SELECT ` + targetColumns + ` FROM post_targets WHERE post_id = ANY($1) ORDER BY id`
	if err := r.db.SelectContext(ctx, &targets, query, pq.Array(ids)); err != nil {
		slog.Info(err.Error())
		return err
	}

	for _, t := range targets {
		if p := byID[t.PostID]; p != nil {
			p.Targets = append(p.Targets, t)
		}
	}
	return nil
}
