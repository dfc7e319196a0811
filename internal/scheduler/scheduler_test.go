package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/config"
)

func newTestScheduler(hour, minute int) *Scheduler {
	return New(nil, config.SchedulerConfig{
		Enabled:        true,
		EmailHourUTC:   hour,
		EmailMinuteUTC: minute,
	}, nil, zap.NewNop())
}

func TestNextRunAfterBeforeTriggerTime(t *testing.T) {
	s := newTestScheduler(8, 30)
	now := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

	next := s.NextRunAfter(now)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC), next)
}

func TestNextRunAfterPastTriggerTime(t *testing.T) {
	s := newTestScheduler(8, 30)
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	next := s.NextRunAfter(now)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 30, 0, 0, time.UTC), next)
}

func TestNextRunAfterExactlyAtTriggerTime(t *testing.T) {
	s := newTestScheduler(8, 30)
	now := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	next := s.NextRunAfter(now)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 30, 0, 0, time.UTC), next)
}

func TestNextRunAfterNormalizesToUTC(t *testing.T) {
	s := newTestScheduler(8, 30)
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 10:00 local is 07:00 UTC, still before the trigger.
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)

	next := s.NextRunAfter(now)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC), next)
}

func TestNextRunAfterMidnightTrigger(t *testing.T) {
	s := newTestScheduler(0, 0)
	now := time.Date(2026, 3, 10, 0, 0, 1, 0, time.UTC)

	next := s.NextRunAfter(now)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), next)
}
