package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPostMessage(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("Hello", (&Post{Caption: "Hello"}).Message())
	assert.Equal("Hello\n#go #dev", (&Post{Caption: "Hello ", Hashtags: "#go #dev"}).Message())
	assert.Equal("#only", (&Post{Hashtags: "#only"}).Message())
	assert.Equal("", (&Post{}).Message())
}

func TestEffectiveSchedule(t *testing.T) {
	assert := assert.New(t)

	targetTime := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	defaultTime := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
	unix := int64(1893456000)

	t.Run("target time wins", func(t *testing.T) {
		p := &Post{DefaultScheduledTime: &defaultTime}
		assert.Equal(&targetTime, p.EffectiveSchedule(&PostTarget{ScheduledTime: &targetTime}))
	})

	t.Run("post default next", func(t *testing.T) {
		p := &Post{DefaultScheduledTime: &defaultTime, Overrides: Overrides{ScheduleUnix: &unix}}
		assert.Equal(&defaultTime, p.EffectiveSchedule(&PostTarget{}))
	})

	t.Run("override schedule last", func(t *testing.T) {
		p := &Post{Overrides: Overrides{ScheduleISO: "2030-01-03T10:00:00Z"}}
		got := p.EffectiveSchedule(&PostTarget{})
		if assert.NotNil(got) {
			assert.True(got.Equal(time.Date(2030, 1, 3, 10, 0, 0, 0, time.UTC)))
		}
	})

	t.Run("nothing set", func(t *testing.T) {
		assert.Nil((&Post{}).EffectiveSchedule(&PostTarget{}))
	})
}

func TestInitialStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	assert.Equal(t, StatusReady, InitialStatus(nil, now))
	assert.Equal(t, StatusReady, InitialStatus(&past, now))
	assert.Equal(t, StatusReady, InitialStatus(&now, now))
	assert.Equal(t, StatusScheduled, InitialStatus(&future, now))
}

func TestDerivedStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all posted", []Status{StatusPosted, StatusPosted}, StatusPosted},
		{"one posting", []Status{StatusPosted, StatusPosting}, StatusPosting},
		{"one scheduled", []Status{StatusFailed, StatusScheduled}, StatusScheduled},
		{"failed with posted", []Status{StatusPosted, StatusFailed}, StatusFailed},
		{"all cancelled", []Status{StatusCancelled}, StatusCancelled},
		{"none", nil, StatusReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var targets []*PostTarget
			for _, s := range tt.statuses {
				targets = append(targets, &PostTarget{Status: s})
			}
			assert.Equal(t, tt.want, DerivedStatus(targets))
		})
	}
}

func TestAttemptable(t *testing.T) {
	assert := assert.New(t)

	assert.True(StatusReady.Attemptable())
	assert.True(StatusScheduled.Attemptable())
	assert.True(StatusFailed.Attemptable())
	assert.False(StatusPosting.Attemptable())
	assert.False(StatusPosted.Attemptable())
	assert.False(StatusCancelled.Attemptable())
}
