package models

import (
	"time"
)

const (
	MetaRefreshToken = "refresh_token"
	MetaPageID       = "page_id"
	MetaImageURL     = "image_url"
	MetaFileURL      = "file_url"
)

type Channel struct {
	ID             int64      `db:"id" json:"id"`
	Platform       Platform   `db:"platform" json:"platform"`
	ExternalID     string     `db:"external_id" json:"external_id"`
	Name           string     `db:"name" json:"name"`
	Username       string     `db:"username" json:"username"`
	AvatarURL      string     `db:"avatar_url" json:"avatar_url"`
	AccessToken    string     `db:"access_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	OwnerUserID    *int64     `db:"owner_user_id" json:"owner_user_id"`
	Metadata       JSONMap    `db:"metadata" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

func (c *Channel) RefreshToken() string {
	return c.Metadata.String(MetaRefreshToken)
}

// TokenExpired reports whether the stored token has a known expiry at or before now.
func (c *Channel) TokenExpired(now time.Time) bool {
	return c.TokenExpiresAt != nil && !c.TokenExpiresAt.After(now)
}

// TokenUpdate carries the fields written back after a refresh exchange.
type TokenUpdate struct {
	AccessToken  string
	ExpiresAt    *time.Time
	RefreshToken string
}

// Credential is a point-in-time view of a channel's tokens handed to one publish call.
type Credential struct {
	AccessToken  string
	ExpiresAt    *time.Time
	RefreshToken string
}
