package service

import (
	"context"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/pkg/httpclient"
)

// Adapter publishes one delivery to one platform.
type Adapter interface {
	Platform() models.Platform
	// NativeScheduling reports whether the platform accepts a future publish time itself.
	// Future-dated deliveries to other platforms are held back by the caller.
	NativeScheduling() bool
	Publish(ctx context.Context, d *Delivery) (*Result, error)
}

// Delivery is everything an adapter needs for a single attempt, resolved up front.
type Delivery struct {
	Post       *models.Post
	Target     *models.PostTarget
	Channel    *models.Channel
	Message    string
	Media      Media
	ScheduleAt *time.Time
	Now        time.Time
}

// Future reports whether the effective schedule lies after the attempt time.
func (d *Delivery) Future() bool {
	return d.ScheduleAt != nil && d.ScheduleAt.After(d.Now)
}

type Media struct {
	ImageURLs []string
	VideoURL  string
	// Video is the post's linked upload, nil when the post has none or the record is gone.
	Video *models.Video
}

type Result struct {
	PlatformPostID string
	Raw            map[string]any
}

type Registry map[models.Platform]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Platform()] = a
	}
	return r
}

// resultFrom picks the first non-empty id among keys, each key being a path into the response.
func resultFrom(resp *httpclient.Response, keys ...[]string) *Result {
	res := &Result{Raw: resp.Data}
	for _, k := range keys {
		if id := resp.String(k...); id != "" {
			res.PlatformPostID = id
			break
		}
	}
	return res
}
