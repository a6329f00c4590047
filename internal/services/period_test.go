package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClosedPeriod(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want Period
	}{
		{"mid year", time.Date(2025, 5, 15, 10, 0, 0, 0, time.UTC), Period{2025, 4}},
		{"january wraps", time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC), Period{2024, 12}},
		{"last instant of month", time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC), Period{2025, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClosedPeriod(tt.now, time.UTC))
		})
	}
}

func TestClosedPeriodUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	// 23:30 UTC on April 30 is already May 1 at UTC+2.
	now := time.Date(2025, 4, 30, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, Period{2025, 3}, ClosedPeriod(now, time.UTC))
	assert.Equal(t, Period{2025, 4}, ClosedPeriod(now, loc))
}

func TestRolloverDue(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 5, 0, 0, time.UTC)

	assert.True(t, RolloverDue(Period{}, now, time.UTC))
	assert.True(t, RolloverDue(Period{2025, 3}, now, time.UTC))
	assert.False(t, RolloverDue(Period{2025, 4}, now, time.UTC))
	assert.False(t, RolloverDue(Period{2025, 5}, now, time.UTC))
}

func TestPeriodHelpers(t *testing.T) {
	assert.Equal(t, "2025-04", Period{2025, 4}.String())
	assert.True(t, Period{2024, 12}.Before(Period{2025, 1}))
	assert.False(t, Period{2025, 2}.Before(Period{2025, 2}))
	assert.Equal(t, Period{2024, 12}, Period{2025, 1}.Prev())
	assert.True(t, Period{}.IsZero())
}
