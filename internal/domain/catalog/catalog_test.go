package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"01:30", 5400},
		{"00:45", 2700},
		{"00:00", 0},
		{"10:00", 36000},
		{"01:30:30", 5430},
		{" 02:15 ", 8100},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParseDurationRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "90", "1:2:3:4", "aa:bb", "-1:30", "01:-5"} {
		_, err := ParseDuration(raw)
		assert.ErrorIs(t, err, ErrBadDuration, raw)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "01:30", FormatDuration(5400))
	assert.Equal(t, "00:00", FormatDuration(0))
	assert.Equal(t, "00:00", FormatDuration(-60))
	assert.Equal(t, "10:05", FormatDuration(36300))
}

func TestUnknownSentinel(t *testing.T) {
	snap := Unknown("svc-1")

	assert.Equal(t, "svc-1", snap.ServiceID)
	assert.False(t, snap.Available)
	assert.Zero(t, snap.UnitPrice)
	assert.Zero(t, snap.DurationSeconds)
	assert.True(t, snap.IsUnknown())
	assert.False(t, snap.ResolvedAt.IsZero())
}

func TestIsUnknownOnResolvedSnapshot(t *testing.T) {
	snap := Snapshot{
		ServiceID:   "svc-1",
		DisplayName: "Haircut",
		UnitPrice:   2500,
		Available:   true,
	}
	assert.False(t, snap.IsUnknown())
}

func TestIsStale(t *testing.T) {
	now := time.Now().UTC()

	fresh := Snapshot{ResolvedAt: now.Add(-time.Minute)}
	assert.False(t, fresh.IsStale(now, 10*time.Minute))

	old := Snapshot{ResolvedAt: now.Add(-time.Hour)}
	assert.True(t, old.IsStale(now, 10*time.Minute))

	// A snapshot that never resolved is always stale.
	assert.True(t, Snapshot{}.IsStale(now, 10*time.Minute))
}
