package transfer

import (
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
)

type TargetCreation struct {
	ChannelID     int64      `json:"channel_id"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

type PostCreation struct {
	Caption              string           `json:"caption"`
	Hashtags             string           `json:"hashtags"`
	VideoID              *int64           `json:"video_id"`
	DefaultScheduledTime *time.Time       `json:"default_scheduled_time"`
	Overrides            models.Overrides `json:"overrides"`
	Targets              []TargetCreation `json:"targets"`
}

type PostView struct {
	*models.Post
	DerivedStatus models.Status `json:"derived_status"`
}

func NewPostView(p *models.Post) PostView {
	return PostView{Post: p, DerivedStatus: models.DerivedStatus(p.Targets)}
}
