package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusReady     Status = "ready"
	StatusScheduled Status = "scheduled"
	StatusPosting   Status = "posting"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// AttemptableStatuses are the target states a delivery attempt may start from.
var AttemptableStatuses = []Status{StatusReady, StatusScheduled, StatusFailed}

func (s Status) Attemptable() bool {
	for _, a := range AttemptableStatuses {
		if s == a {
			return true
		}
	}
	return false
}

type Post struct {
	ID                   int64      `db:"id" json:"id"`
	Caption              string     `db:"caption" json:"caption"`
	Hashtags             string     `db:"hashtags" json:"hashtags"`
	VideoID              *int64     `db:"video_id" json:"video_id"`
	DefaultScheduledTime *time.Time `db:"default_scheduled_time" json:"default_scheduled_time"`
	Overrides            Overrides  `db:"overrides" json:"overrides"`
	Status               Status     `db:"status" json:"status"`
	CreatedByID          *int64     `db:"created_by_id" json:"created_by_id"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`

	Targets []*PostTarget `db:"-" json:"targets"`
}

// Message joins caption and hashtags with a newline, dropping empty parts.
func (p *Post) Message() string {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(p.Caption); c != "" {
		parts = append(parts, c)
	}
	if h := strings.TrimSpace(p.Hashtags); h != "" {
		parts = append(parts, h)
	}
	return strings.Join(parts, "\n")
}

// EffectiveSchedule picks the target's own time, then the post default, then the override schedule.
func (p *Post) EffectiveSchedule(t *PostTarget) *time.Time {
	if t != nil && t.ScheduledTime != nil {
		return t.ScheduledTime
	}
	if p.DefaultScheduledTime != nil {
		return p.DefaultScheduledTime
	}
	return p.Overrides.ExplicitSchedule()
}

func (p *Post) Target(id int64) *PostTarget {
	for _, t := range p.Targets {
		if t.ID == id {
			return t
		}
	}
	return nil
}

type PostTarget struct {
	ID             int64      `db:"id" json:"id"`
	PostID         int64      `db:"post_id" json:"post_id"`
	ChannelID      int64      `db:"channel_id" json:"channel_id"`
	Platform       Platform   `db:"platform" json:"platform"`
	ScheduledTime  *time.Time `db:"scheduled_time" json:"scheduled_time"`
	PostedTime     *time.Time `db:"posted_time" json:"posted_time"`
	Status         Status     `db:"status" json:"status"`
	PlatformPostID string     `db:"platform_post_id" json:"platform_post_id"`
	ErrorMessage   string     `db:"error_message" json:"error_message"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// InitialStatus is scheduled when at lies after now, ready otherwise.
func InitialStatus(at *time.Time, now time.Time) Status {
	if at != nil && at.After(now) {
		return StatusScheduled
	}
	return StatusReady
}

// DerivedStatus summarises target states into a post-level status for display.
func DerivedStatus(targets []*PostTarget) Status {
	if len(targets) == 0 {
		return StatusReady
	}
	counts := map[Status]int{}
	for _, t := range targets {
		counts[t.Status]++
	}
	switch {
	case counts[StatusPosted] == len(targets):
		return StatusPosted
	case counts[StatusCancelled] == len(targets):
		return StatusCancelled
	case counts[StatusPosting] > 0:
		return StatusPosting
	case counts[StatusScheduled] > 0:
		return StatusScheduled
	case counts[StatusReady] > 0:
		return StatusReady
	case counts[StatusFailed] > 0:
		return StatusFailed
	}
	return StatusPosted
}
