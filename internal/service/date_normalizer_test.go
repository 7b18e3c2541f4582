package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Wednesday 15 January 2025, 10:30 local.
var normalizerNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func newTestNormalizer(logger *zap.Logger) *DateNormalizer {
	n := NewDateNormalizer(time.UTC, logger)
	n.now = func() time.Time { return normalizerNow }
	return n
}

func TestDateNormalizerRelativeExpressions(t *testing.T) {
	n := newTestNormalizer(nil)

	cases := map[string]string{
		"tomorrow":            "2025-01-16T23:59:59",
		"Tomorrow":            "2025-01-16T23:59:59",
		"today":               "2025-01-15T23:59:59",
		"next week":           "2025-01-22T23:59:59",
		"in 3 days":           "2025-01-18T23:59:59",
		"in 1 day":            "2025-01-16T23:59:59",
		"in 2 weeks":          "2025-01-29T23:59:59",
		"5 days from now":     "2025-01-20T23:59:59",
		"next friday":         "2025-01-17T23:59:59",
		"friday":              "2025-01-17T23:59:59",
		"next wednesday":      "2025-01-22T23:59:59",
		"next monday":         "2025-01-20T23:59:59",
		"tomorrow at 5pm":     "2025-01-16T17:00:00",
		"next friday at 9:15": "2025-01-17T09:15:00",
		"tomorrow at 12am":    "2025-01-16T23:59:59",
	}
	for input, want := range cases {
		assert.Equal(t, want, n.Normalize(input), input)
	}
}

func TestDateNormalizerAbsoluteDates(t *testing.T) {
	n := newTestNormalizer(nil)

	assert.Equal(t, "2025-03-10T23:59:59", n.Normalize("2025-03-10"))
	assert.Equal(t, "2025-03-10T14:00:00", n.Normalize("2025-03-10 14:00"))
	assert.Equal(t, "2025-03-10T17:00:00", n.Normalize("2025-03-10 at 5pm"))
}

func TestDateNormalizerFallsBackToTomorrow(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := newTestNormalizer(zap.New(core))

	assert.Equal(t, "2025-01-16T23:59:59", n.Normalize("whenever you like"))
	assert.Equal(t, "2025-01-16T23:59:59", n.Normalize(""))
	assert.Equal(t, 2, logs.Len())
}

func TestDateNormalizerRelativeResultsAreInTheFuture(t *testing.T) {
	n := NewDateNormalizer(time.UTC, nil)
	inputs := []string{"tomorrow", "in 2 days", "in 1 week", "next week"}
	for name := range weekdays {
		inputs = append(inputs, "next "+name, name)
	}

	now := time.Now().UTC()
	for _, input := range inputs {
		got, err := n.Parse(input)
		require.NoError(t, err, input)
		assert.True(t, got.After(now), input)
		assert.Equal(t, 59, got.Second(), input)
		assert.True(t, strings.HasSuffix(got.Format(DueDateLayout), "23:59:59"), input)
	}
}

func TestDateNormalizerRollsPastClockTimeToNextDay(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := newTestNormalizer(zap.New(core))

	assert.Equal(t, "2025-01-16T09:00:00", n.Normalize("today at 9am"))
	assert.Equal(t, "2025-01-16T10:30:00", n.Normalize("today at 10:30"))
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "today at 9am", logs.All()[0].ContextMap()["expression"])

	assert.Equal(t, "2025-01-15T17:00:00", n.Normalize("today at 5pm"))
	assert.Equal(t, "2025-01-14T09:00:00", n.Normalize("2025-01-14 at 9am"))
	assert.Equal(t, 2, logs.Len())
}

func TestDateNormalizerRejectsBadClockTime(t *testing.T) {
	n := newTestNormalizer(nil)
	_, err := n.Parse("tomorrow at 27pm")
	assert.Error(t, err)
}
