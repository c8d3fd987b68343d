package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homewatt/internal/simulation"
)

type fakeNotifier struct {
	metrics []string
	err     error
}

func (f *fakeNotifier) NotifyThreshold(_ context.Context, metric string, value, limit float64) error {
	f.metrics = append(f.metrics, metric)
	return f.err
}

func snapWith(power, cost float64) simulation.Snapshot {
	return simulation.Snapshot{Power: power, Cost: cost}
}

func TestWatcher_FiresOncePerExcursion(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(Thresholds{DailyCost: 200, PowerWatts: 3000}, n, zerolog.Nop())

	w.OnSnapshot(snapWith(1000, 50))
	assert.Empty(t, n.metrics)

	w.OnSnapshot(snapWith(3500, 50))
	require.Equal(t, []string{"power_watts"}, n.metrics)

	// Still over the limit: no repeat alert.
	w.OnSnapshot(snapWith(3600, 50))
	assert.Len(t, n.metrics, 1)

	// Drops under, then crosses again: re-armed.
	w.OnSnapshot(snapWith(500, 50))
	w.OnSnapshot(snapWith(3100, 50))
	assert.Equal(t, []string{"power_watts", "power_watts"}, n.metrics)
}

func TestWatcher_IndependentMetrics(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(Thresholds{DailyCost: 200, PowerWatts: 3000}, n, zerolog.Nop())

	w.OnSnapshot(snapWith(3500, 250))
	assert.ElementsMatch(t, []string{"power_watts", "daily_cost"}, n.metrics)
}

func TestWatcher_ZeroLimitDisabled(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(Thresholds{}, n, zerolog.Nop())

	w.OnSnapshot(snapWith(99999, 99999))
	assert.Empty(t, n.metrics)
}

func TestWatcher_NotifierErrorLogged(t *testing.T) {
	n := &fakeNotifier{err: errors.New("sns down")}
	w := NewWatcher(Thresholds{PowerWatts: 100}, n, zerolog.Nop())

	w.OnSnapshot(snapWith(200, 0)) // must not panic
	assert.Len(t, n.metrics, 1)
}
