// Package memory is an in-process implementation of the record store used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

// DB holds every table behind one lock. Reads return copies so callers
// observe the same isolation they would get from postgres.
type DB struct {
	mu       sync.Mutex
	seq      int64
	now      func() time.Time
	channels map[int64]*models.Channel
	posts    map[int64]*models.Post
	targets  map[int64]*models.PostTarget
	videos   map[int64]*models.Video
}

func New() *DB {
	return &DB{
		now:      time.Now,
		channels: map[int64]*models.Channel{},
		posts:    map[int64]*models.Post{},
		targets:  map[int64]*models.PostTarget{},
		videos:   map[int64]*models.Video{},
	}
}

func (db *DB) Channels() repository.ChannelRepository { return channels{db} }
func (db *DB) Posts() repository.PostRepository { return posts{db} }
func (db *DB) Targets() repository.PostTargetRepository { return targets{db} }
func (db *DB) Videos() repository.VideoRepository { return videos{db} }

func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

func copyChannel(c *models.Channel) *models.Channel {
	cp := *c
	cp.Metadata = c.Metadata.Clone()
	if c.TokenExpiresAt != nil {
		t := *c.TokenExpiresAt
		cp.TokenExpiresAt = &t
	}
	return &cp
}

func copyTarget(t *models.PostTarget) *models.PostTarget {
	cp := *t
	return &cp
}

type channels struct{ db *DB }

func (r channels) Upsert(_ context.Context, ch *models.Channel) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.channels {
		if existing.Platform == ch.Platform && existing.ExternalID == ch.ExternalID {
			meta := existing.Metadata.Clone()
			for k, v := range ch.Metadata {
				meta[k] = v
			}
			owner := existing.OwnerUserID
			if ch.OwnerUserID != nil {
				owner = ch.OwnerUserID
			}
			updated := copyChannel(ch)
			updated.ID = existing.ID
			updated.CreatedAt = existing.CreatedAt
			updated.UpdatedAt = r.db.now()
			updated.IsActive = true
			updated.OwnerUserID = owner
			updated.Metadata = meta
			r.db.channels[existing.ID] = updated
			return existing.ID, nil
		}
	}

	c := copyChannel(ch)
	c.ID = r.db.nextID()
	c.IsActive = true
	c.CreatedAt = r.db.now()
	c.UpdatedAt = c.CreatedAt
	if c.Metadata == nil {
		c.Metadata = models.JSONMap{}
	}
	r.db.channels[c.ID] = c
	ch.ID = c.ID
	return c.ID, nil
}

// Put stores a channel as given, keeping its ID when set. Handy for seeding fixtures.
func (db *DB) Put(ch *models.Channel) *models.Channel {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := copyChannel(ch)
	if c.ID == 0 {
		c.ID = db.nextID()
	} else if c.ID > db.seq {
		db.seq = c.ID
	}
	if c.Metadata == nil {
		c.Metadata = models.JSONMap{}
	}
	db.channels[c.ID] = c
	return copyChannel(c)
}

func (r channels) GetByID(_ context.Context, id int64) (*models.Channel, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.channels[id]
	if !ok {
		return nil, nil
	}
	return copyChannel(c), nil
}

func (r channels) List(_ context.Context, ownerUserID int64) ([]*models.Channel, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Channel
	for _, c := range r.db.channels {
		if ownerUserID != 0 && (c.OwnerUserID == nil || *c.OwnerUserID != ownerUserID) {
			continue
		}
		out = append(out, copyChannel(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r channels) ListExpiring(_ context.Context, before time.Time) ([]*models.Channel, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Channel
	for _, c := range r.db.channels {
		if !c.IsActive || c.TokenExpiresAt == nil || c.TokenExpiresAt.After(before) || c.RefreshToken() == "" {
			continue
		}
		out = append(out, copyChannel(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenExpiresAt.Before(*out[j].TokenExpiresAt) })
	return out, nil
}

func (r channels) UpdateTokens(_ context.Context, id int64, tu *models.TokenUpdate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.channels[id]
	if !ok {
		return nil
	}
	c.AccessToken = tu.AccessToken
	c.TokenExpiresAt = tu.ExpiresAt
	if tu.RefreshToken != "" {
		if c.Metadata == nil {
			c.Metadata = models.JSONMap{}
		}
		c.Metadata[models.MetaRefreshToken] = tu.RefreshToken
	}
	c.UpdatedAt = r.db.now()
	return nil
}

func (r channels) SetActive(_ context.Context, id int64, active bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c, ok := r.db.channels[id]; ok {
		c.IsActive = active
		c.UpdatedAt = r.db.now()
	}
	return nil
}

type posts struct{ db *DB }

func (r posts) Create(_ context.Context, post *models.Post, ts []*models.PostTarget) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	post.ID = r.db.nextID()
	post.CreatedAt = r.db.now()
	post.UpdatedAt = post.CreatedAt
	stored := *post
	stored.Targets = nil
	r.db.posts[post.ID] = &stored

	for _, t := range ts {
		t.ID = r.db.nextID()
		t.PostID = post.ID
		t.CreatedAt = post.CreatedAt
		t.UpdatedAt = post.CreatedAt
		r.db.targets[t.ID] = copyTarget(t)
	}
	post.Targets = ts
	return post.ID, nil
}

func (r posts) GetByID(_ context.Context, id int64) (*models.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.posts[id]
	if !ok {
		return nil, nil
	}
	return r.db.withTargets(p), nil
}

func (r posts) List(_ context.Context, filter repository.PostFilter) ([]*models.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*models.Post
	for _, p := range r.db.posts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.CreatedByID != 0 && (p.CreatedByID == nil || *p.CreatedByID != filter.CreatedByID) {
			continue
		}
		out = append(out, r.db.withTargets(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r posts) Remove(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.posts, id)
	for tid, t := range r.db.targets {
		if t.PostID == id {
			delete(r.db.targets, tid)
		}
	}
	return nil
}

func (db *DB) withTargets(p *models.Post) *models.Post {
	cp := *p
	cp.Targets = nil
	for _, t := range db.targets {
		if t.PostID == p.ID {
			cp.Targets = append(cp.Targets, copyTarget(t))
		}
	}
	sort.Slice(cp.Targets, func(i, j int) bool { return cp.Targets[i].ID < cp.Targets[j].ID })
	return &cp
}

type targets struct{ db *DB }

func (r targets) GetByID(_ context.Context, id int64) (*models.PostTarget, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.targets[id]
	if !ok {
		return nil, nil
	}
	return copyTarget(t), nil
}

func (r targets) Update(_ context.Context, t *models.PostTarget) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.targets[t.ID]
	if !ok {
		return nil
	}
	updated := copyTarget(t)
	updated.PostID = existing.PostID
	updated.ChannelID = existing.ChannelID
	updated.Platform = existing.Platform
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = r.db.now()
	r.db.targets[t.ID] = updated
	return nil
}

func (r targets) Transition(_ context.Context, id int64, from []models.Status, to models.Status) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.targets[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if t.Status == s {
			t.Status = to
			t.UpdatedAt = r.db.now()
			return true, nil
		}
	}
	return false, nil
}

func (r targets) ListDue(_ context.Context, before time.Time, limit int) ([]*models.PostTarget, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.PostTarget
	for _, t := range r.db.targets {
		if t.Status != models.StatusScheduled || t.ScheduledTime == nil || t.ScheduledTime.After(before) {
			continue
		}
		out = append(out, copyTarget(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(*out[j].ScheduledTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type videos struct{ db *DB }

func (r videos) Create(_ context.Context, v *models.Video) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v.ID = r.db.nextID()
	v.CreatedAt = r.db.now()
	cp := *v
	r.db.videos[v.ID] = &cp
	return v.ID, nil
}

func (r videos) GetByID(_ context.Context, id int64) (*models.Video, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v, ok := r.db.videos[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}
