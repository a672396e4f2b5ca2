package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw   string
		every time.Duration
	}{
		{"10m", 10 * time.Minute},
		{" 90s ", 90 * time.Second},
		{"00:10", 10 * time.Minute},
		{"01:30", 90 * time.Minute},
		{"every:5m", 5 * time.Minute},
		{"@every 10m", 10 * time.Minute},
		{"*/10 * * * *", 0},
		{"cron:0 9 * * 1-5", 0},
		{"@hourly", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			s, err := ParseSchedule(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.every, s.Every)
			require.NotNil(t, s.Schedule)
		})
	}
}

func TestParseScheduleRejects(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "   ", "soon", "-5m", "0s", "00:00", "00:61", "cron:", "* * *", "@fortnightly"} {
		_, err := ParseSchedule(raw)
		require.Error(t, err, "%q", raw)
	}
}

func TestParseScheduleEnforcesMinimum(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"1ms", "999ms", "every:1ns", "every:500ms"} {
		_, err := ParseSchedule(raw)
		require.Error(t, err, "%q", raw)
		require.ErrorIs(t, err, ErrIntervalTooShort, "%q", raw)
	}

	s, err := ParseSchedule("1s")
	require.NoError(t, err)
	require.Equal(t, MinInterval, s.Every)

	// robfig clamps @every to one second
	s, err = ParseSchedule("@every 1ms")
	require.NoError(t, err)
	require.Equal(t, time.Second, s.Every)
}

func TestScheduleWait(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 1, 12, 3, 0, 0, time.Local)

	s, err := ParseSchedule("10m")
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, s.Wait(now))

	s, err = ParseSchedule("*/10 * * * *")
	require.NoError(t, err)
	require.Equal(t, 7*time.Minute, s.Wait(now))

	require.Equal(t, DefaultInterval, Schedule{}.Wait(now))
	require.Equal(t, 600*time.Second, Fixed(0).Every)
}
