package quality

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestPoller_TicksAtInterval(t *testing.T) {
	clk := clock.NewMock()
	p := NewPoller(clk, time.Second)

	var ticks atomic.Int32
	require.True(t, p.Start(func(time.Time) { ticks.Inc() }))
	require.False(t, p.Start(func(time.Time) {}), "second start is a no-op")
	require.True(t, p.Active())

	for i := int32(1); i <= 3; i++ {
		clk.Add(time.Second)
		require.Eventually(t, func() bool { return ticks.Load() == i }, time.Second, 5*time.Millisecond)
	}

	p.Stop()
	p.Stop()
	require.False(t, p.Active())

	clk.Add(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 3, ticks.Load())
}

func TestPoller_ZeroIntervalDisabled(t *testing.T) {
	p := NewPoller(clock.NewMock(), 0)
	require.False(t, p.Start(func(time.Time) {}))
	require.False(t, p.Active())
}

func TestMetrics_NilSafe(t *testing.T) {
	m, err := NewMetrics(nil, "42")
	require.NoError(t, err)
	require.Nil(t, m)

	m.Observe(Snapshot{Bitrate: 1}, time.Second)
	m.IncReconnect()
	m.IncQualityChange(ActionIncrease, "local")
}

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "42")
	require.NoError(t, err)

	m.Observe(Snapshot{Bitrate: 64000, Counters: Counters{PacketsLost: 7, Jitter: 0.02}}, 40*time.Millisecond)
	m.IncReconnect()
	m.IncQualityChange(ActionDecrease, "local")

	require.Equal(t, 64000.0, testutil.ToFloat64(m.bitrate))
	require.Equal(t, 7.0, testutil.ToFloat64(m.packetsLost))
	require.InDelta(t, 0.04, testutil.ToFloat64(m.latency), 1e-9)
	require.Equal(t, 1.0, testutil.ToFloat64(m.reconnects))
	require.Equal(t, 1.0, testutil.ToFloat64(m.qualityChanges.WithLabelValues("decrease", "local")))

	_, err = NewMetrics(reg, "42")
	require.Error(t, err, "duplicate registration")
}
