package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	ErrConflictingSchedule = errors.New("provide either schedule_unix or schedule_time_iso, not both")
	ErrInvalidOverrides    = errors.New("invalid overrides")
)

const (
	PrivacyPublic   = "public"
	PrivacyPrivate  = "private"
	PrivacyUnlisted = "unlisted"
)

// Overrides are optional per-post publish settings that take precedence over channel defaults.
type Overrides struct {
	ImageURL     string   `json:"image_url,omitempty"`
	ImageURLs    []string `json:"image_urls,omitempty"`
	VideoURL     string   `json:"video_url,omitempty"`
	ScheduleUnix *int64   `json:"schedule_unix,omitempty"`
	ScheduleISO  string   `json:"schedule_time_iso,omitempty"`
	Title        string   `json:"title,omitempty"`
	Privacy      string   `json:"privacy,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

func (o Overrides) Validate() error {
	if o.ScheduleUnix != nil && o.ScheduleISO != "" {
		return ErrConflictingSchedule
	}
	if o.ScheduleISO != "" {
		if _, err := ParseISOTime(o.ScheduleISO); err != nil {
			return fmt.Errorf("%w: schedule_time_iso: %v", ErrInvalidOverrides, err)
		}
	}
	switch o.Privacy {
	case "", PrivacyPublic, PrivacyPrivate, PrivacyUnlisted:
	default:
		return fmt.Errorf("%w: privacy %q", ErrInvalidOverrides, o.Privacy)
	}

	urls := append([]string{o.ImageURL, o.VideoURL}, o.ImageURLs...)
	for _, raw := range urls {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%w: media url %q", ErrInvalidOverrides, raw)
		}
	}
	return nil
}

// ExplicitSchedule returns the schedule carried by the overrides, if any.
func (o Overrides) ExplicitSchedule() *time.Time {
	if o.ScheduleUnix != nil {
		t := time.Unix(*o.ScheduleUnix, 0).UTC()
		return &t
	}
	if o.ScheduleISO != "" {
		if t, err := ParseISOTime(o.ScheduleISO); err == nil {
			return &t
		}
	}
	return nil
}

func (o Overrides) Images() []string {
	if len(o.ImageURLs) > 0 {
		return o.ImageURLs
	}
	if o.ImageURL != "" {
		return []string{o.ImageURL}
	}
	return nil
}

func (o Overrides) Value() (driver.Value, error) {
	return json.Marshal(o)
}

func (o *Overrides) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*o = Overrides{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("overrides: unsupported source %T", src)
	}
	var out Overrides
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*o = out
	return nil
}

// ParseISOTime accepts RFC 3339 timestamps and zone-less timestamps, which are read as UTC.
func ParseISOTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
}
