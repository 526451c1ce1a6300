package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverridesValidate(t *testing.T) {
	unix := int64(1893456000)

	tests := []struct {
		name    string
		o       Overrides
		wantErr error
	}{
		{"empty", Overrides{}, nil},
		{"unix only", Overrides{ScheduleUnix: &unix}, nil},
		{"iso only", Overrides{ScheduleISO: "2030-01-01T00:00:00Z"}, nil},
		{"zone-less iso", Overrides{ScheduleISO: "2030-01-01T00:00:00"}, nil},
		{"both schedules", Overrides{ScheduleUnix: &unix, ScheduleISO: "2030-01-01T00:00:00Z"}, ErrConflictingSchedule},
		{"bad iso", Overrides{ScheduleISO: "tomorrow"}, ErrInvalidOverrides},
		{"bad privacy", Overrides{Privacy: "friends"}, ErrInvalidOverrides},
		{"relative url", Overrides{ImageURL: "/img.png"}, ErrInvalidOverrides},
		{"bad carousel url", Overrides{ImageURLs: []string{"https://cdn.example.com/a.png", "b.png"}}, ErrInvalidOverrides},
		{"media urls", Overrides{ImageURL: "https://cdn.example.com/a.png", VideoURL: "https://cdn.example.com/v.mp4", Privacy: PrivacyUnlisted}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.o.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestOverridesImages(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(Overrides{}.Images())
	assert.Equal([]string{"https://a"}, Overrides{ImageURL: "https://a"}.Images())
	assert.Equal([]string{"https://b", "https://c"}, Overrides{ImageURL: "https://a", ImageURLs: []string{"https://b", "https://c"}}.Images())
}
