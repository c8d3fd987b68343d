package alert

import (
	"context"

	"github.com/rs/zerolog"

	"homewatt/internal/simulation"
)

// Thresholds are the household alert limits. A zero limit disables
// that check.
type Thresholds struct {
	DailyCost  float64
	PowerWatts float64
}

// Notifier delivers a triggered alert somewhere a human will see it.
type Notifier interface {
	NotifyThreshold(ctx context.Context, metric string, value, limit float64) error
}

// LogNotifier writes alerts to the structured log. It is the default
// when no cloud notifier is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n *LogNotifier) NotifyThreshold(_ context.Context, metric string, value, limit float64) error {
	n.Log.Warn().
		Str("metric", metric).
		Float64("value", value).
		Float64("limit", limit).
		Msg("threshold exceeded")
	return nil
}

// Watcher checks snapshots against the thresholds. Each metric alerts
// once per excursion: it re-arms only after the value drops back under
// the limit, so a sustained breach does not spam the notifier every
// tick.
type Watcher struct {
	thresholds Thresholds
	notifier   Notifier
	log        zerolog.Logger

	costLatched  bool
	powerLatched bool
}

func NewWatcher(thresholds Thresholds, notifier Notifier, log zerolog.Logger) *Watcher {
	return &Watcher{thresholds: thresholds, notifier: notifier, log: log}
}

// OnSnapshot is wired as a metrics-update observer on the engine.
func (w *Watcher) OnSnapshot(snap simulation.Snapshot) {
	w.check("daily_cost", snap.Cost, w.thresholds.DailyCost, &w.costLatched)
	w.check("power_watts", snap.Power, w.thresholds.PowerWatts, &w.powerLatched)
}

func (w *Watcher) check(metric string, value, limit float64, latched *bool) {
	if limit <= 0 {
		return
	}
	if value <= limit {
		*latched = false
		return
	}
	if *latched {
		return
	}
	*latched = true
	if err := w.notifier.NotifyThreshold(context.Background(), metric, value, limit); err != nil {
		w.log.Error().Err(err).Str("metric", metric).Msg("alert delivery failed")
	}
}
