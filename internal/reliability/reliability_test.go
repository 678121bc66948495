package reliability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x402index/internal/storage"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ping(ago time.Duration, success bool, latency int64) storage.Ping {
	p := storage.Ping{PingedAt: now.Add(-ago), Success: success}
	if latency >= 0 {
		p.LatencyMs = &latency
	}
	return p
}

func TestCalculateEmpty(t *testing.T) {
	m := Calculate(nil, now)

	assert.Nil(t, m.Uptime24h)
	assert.Nil(t, m.Uptime7d)
	assert.Nil(t, m.Uptime30d)
	assert.Nil(t, m.AvgLatencyMs)
	assert.Nil(t, m.P95LatencyMs)
	assert.Nil(t, m.ErrorRate)
}

func TestCalculateUptimeWindows(t *testing.T) {
	pings := make([]storage.Ping, 0, 15)
	for i := 0; i < 10; i++ {
		pings = append(pings, ping(time.Duration(i+1)*time.Hour, i < 7, 100))
	}
	for i := 0; i < 5; i++ {
		pings = append(pings, ping(time.Duration(2+i)*24*time.Hour, true, 100))
	}

	m := Calculate(pings, now)

	require.NotNil(t, m.Uptime24h)
	require.NotNil(t, m.Uptime7d)
	require.NotNil(t, m.Uptime30d)
	assert.Equal(t, 70.0, *m.Uptime24h)
	assert.Equal(t, 80.0, *m.Uptime7d)
	assert.Equal(t, 80.0, *m.Uptime30d)

	require.NotNil(t, m.ErrorRate)
	assert.Equal(t, 20.0, *m.ErrorRate)
}

func TestCalculateWindowWithoutPingsIsNull(t *testing.T) {
	m := Calculate([]storage.Ping{ping(3*24*time.Hour, true, 50)}, now)

	assert.Nil(t, m.Uptime24h)
	require.NotNil(t, m.Uptime7d)
	assert.Equal(t, 100.0, *m.Uptime7d)
}

func TestCalculateBoundaryInclusive(t *testing.T) {
	m := Calculate([]storage.Ping{ping(Window24h, false, -1)}, now)

	require.NotNil(t, m.Uptime24h)
	assert.Equal(t, 0.0, *m.Uptime24h)
}

func TestCalculateRounding(t *testing.T) {
	pings := []storage.Ping{
		ping(time.Hour, true, 100),
		ping(2*time.Hour, true, 101),
		ping(3*time.Hour, false, -1),
	}

	m := Calculate(pings, now)

	require.NotNil(t, m.Uptime24h)
	assert.Equal(t, 66.67, *m.Uptime24h)
	require.NotNil(t, m.ErrorRate)
	assert.Equal(t, 33.3333, *m.ErrorRate)
	require.NotNil(t, m.AvgLatencyMs)
	assert.Equal(t, int64(101), *m.AvgLatencyMs)
}

func TestCalculateLatencyIgnoresFailuresAndMissing(t *testing.T) {
	pings := []storage.Ping{
		ping(time.Hour, false, 5000),
		ping(time.Hour, true, -1),
	}

	m := Calculate(pings, now)

	assert.Nil(t, m.AvgLatencyMs)
	assert.Nil(t, m.P95LatencyMs)
	require.NotNil(t, m.Uptime24h)
	assert.Equal(t, 50.0, *m.Uptime24h)
}

func TestCalculateP95NearestRank(t *testing.T) {
	pings := make([]storage.Ping, 0, 10)
	for i := 10; i >= 1; i-- {
		pings = append(pings, ping(time.Minute, true, int64(i*100)))
	}

	m := Calculate(pings, now)

	require.NotNil(t, m.P95LatencyMs)
	// ceil(0.95*10)-1 = 9
	assert.Equal(t, int64(1000), *m.P95LatencyMs)
	require.NotNil(t, m.AvgLatencyMs)
	assert.Equal(t, int64(550), *m.AvgLatencyMs)
}

func TestPercentile(t *testing.T) {
	twenty := make([]int64, 20)
	for i := range twenty {
		twenty[i] = int64(20 - i)
	}

	assert.Equal(t, int64(19), Percentile(twenty, 95))
	assert.Equal(t, int64(10), Percentile(twenty, 50))
	assert.Equal(t, int64(1), Percentile(twenty, 0))
	assert.Equal(t, int64(7), Percentile([]int64{7}, 95))
	assert.Equal(t, int64(20), twenty[0], "input must not be reordered")
}

func TestDetermineStatus(t *testing.T) {
	ok := storage.Ping{Success: true}
	bad := storage.Ping{Success: false}
	high := 95.0
	low := 40.0

	repeat := func(n int, p storage.Ping) []storage.Ping {
		out := make([]storage.Ping, n)
		for i := range out {
			out[i] = p
		}
		return out
	}

	cases := []struct {
		name     string
		active   bool
		failures int
		uptime   *float64
		recent   []storage.Ping
		want     Status
	}{
		{"inactive", false, 0, &high, repeat(10, ok), StatusDown},
		{"no pings", true, 0, nil, nil, StatusUnknown},
		{"all good", true, 0, &high, repeat(10, ok), StatusOperational},
		{"good rate with streak", true, 1, &high, append(repeat(9, ok), bad), StatusDegraded},
		{"half", true, 3, &low, append(repeat(5, ok), repeat(5, bad)...), StatusDegraded},
		{"poor recent but good day", true, 4, &high, append(repeat(2, ok), repeat(8, bad)...), StatusDegraded},
		{"poor", true, 8, &low, append(repeat(2, ok), repeat(8, bad)...), StatusDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetermineStatus(tc.active, tc.failures, tc.uptime, tc.recent))
		})
	}
}
