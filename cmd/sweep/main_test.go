package main

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestSweepTime(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

	got, err := sweepTime("", now)
	assert.NoError(t, err)
	check.True(t, got.Equal(now))

	got, err = sweepTime("2026-05-02T08:30:00Z", now)
	assert.NoError(t, err)
	check.True(t, got.Equal(now.Add(-30*time.Minute)))

	got, err = sweepTime("2026-05-02T11:00:00+02:00", now)
	assert.NoError(t, err)
	check.True(t, got.Equal(now))
	check.True(t, got.Location() == time.UTC)

	_, err = sweepTime("2026-05-02T09:00:01Z", now)
	check.Error(t, err)

	_, err = sweepTime("yesterday", now)
	check.Error(t, err)
}
