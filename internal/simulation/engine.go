package simulation

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"homewatt/internal/domain"
)

// Clock abstracts wall time so ticks are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Snapshot is the full metrics view published to observers and flushed
// to the backend. Numeric fields are rounded for transport.
type Snapshot struct {
	Power     float64           `json:"power"`
	EnergyWh  float64           `json:"energy"`
	Cost      float64           `json:"cost"`
	PeakW     float64           `json:"peak"`
	Devices   domain.DeviceList `json:"devices"`
	Timestamp time.Time         `json:"timestamp"`
	Date      string            `json:"date"`
}

// Config carries the engine's tunables.
type Config struct {
	Catalog         Catalog
	TariffRate      float64 // currency per kWh; zero models a free tariff
	DutyCyclePeriod time.Duration
	FlushInterval   time.Duration
	FixtureCount    int
	Store           BlobStore
	Clock           Clock
	Logger          zerolog.Logger
}

// Engine owns the device registry and the accumulation state machine.
// All mutation goes through its methods; observers receive snapshots
// after every tick and device mutation.
type Engine struct {
	mu sync.Mutex

	catalog     Catalog
	fixtureKind DeviceKind
	tariff      float64
	dutySeconds float64
	flushPeriod time.Duration
	store       BlobStore
	clock       Clock
	log         zerolog.Logger

	devices  []*Device
	fixtures []*Fixture
	nextID   int

	instantWatts  float64
	dailyEnergyWh float64
	dailyCost     float64
	peakWatts     float64
	dateKey       string
	dutyOn        bool
	dutyTimer     float64 // seconds into the current duty phase
	lastUpdate    time.Time
	lastFlush     time.Time

	updateFns []func(Snapshot)
	flushFns  []func(Snapshot)
}

func New(cfg Config) *Engine {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.DutyCyclePeriod == 0 {
		cfg.DutyCyclePeriod = 30 * time.Minute
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}

	fixtureKind, _ := cfg.Catalog.Lookup("light")
	e := &Engine{
		catalog:     cfg.Catalog,
		fixtureKind: fixtureKind,
		tariff:      cfg.TariffRate,
		dutySeconds: cfg.DutyCyclePeriod.Seconds(),
		flushPeriod: cfg.FlushInterval,
		store:       cfg.Store,
		clock:       cfg.Clock,
		log:         cfg.Logger,
		nextID:      1,
	}
	for i := 0; i < cfg.FixtureCount; i++ {
		e.fixtures = append(e.fixtures, &Fixture{})
	}
	return e
}

// OnMetricsUpdate registers a listener called with a snapshot on every
// tick and device mutation.
func (e *Engine) OnMetricsUpdate(fn func(Snapshot)) {
	e.mu.Lock()
	e.updateFns = append(e.updateFns, fn)
	e.mu.Unlock()
}

// OnFlushDue registers a listener called when the flush cadence elapses.
// The flush anchor advances when the listener fires, not when the
// listener's work completes.
func (e *Engine) OnFlushDue(fn func(Snapshot)) {
	e.mu.Lock()
	e.flushFns = append(e.flushFns, fn)
	e.mu.Unlock()
}

// Tick advances the accumulators to the current time. It is the only
// place energy, cost and peak move forward.
func (e *Engine) Tick() {
	now := e.clock.Now()

	e.mu.Lock()
	e.advanceLocked(now)
	snap := e.snapshotLocked(now)
	flushDue := e.flushPeriod > 0 && now.Sub(e.lastFlush) > e.flushPeriod
	if flushDue {
		e.lastFlush = now
	}
	updateFns, flushFns := e.updateFns, e.flushFns
	e.persistLocked()
	e.mu.Unlock()

	for _, fn := range updateFns {
		fn(snap)
	}
	if flushDue {
		for _, fn := range flushFns {
			fn(snap)
		}
	}
}

// AddDevice places a device and returns its id. The persisted on-state
// is honored so restores re-establish running devices.
func (e *Engine) AddDevice(kindID string, x, y float64, on bool) (int, error) {
	kind, ok := e.catalog.Lookup(kindID)
	if !ok {
		return 0, fmt.Errorf("unknown device kind %q", kindID)
	}

	now := e.clock.Now()
	e.mu.Lock()
	e.advanceLocked(now)
	d := &Device{ID: e.nextID, Kind: kind, X: x, Y: y, On: on}
	e.nextID++
	e.devices = append(e.devices, d)
	e.resampleLocked()
	snap := e.snapshotLocked(now)
	updateFns := e.updateFns
	e.persistLocked()
	e.mu.Unlock()

	for _, fn := range updateFns {
		fn(snap)
	}
	return d.ID, nil
}

// RemoveDevice deletes a placed device.
func (e *Engine) RemoveDevice(id int) error {
	return e.mutateDevice(id, func(d *Device) {
		for i, cur := range e.devices {
			if cur == d {
				e.devices = append(e.devices[:i], e.devices[i+1:]...)
				return
			}
		}
	})
}

// ToggleDevice flips a device's switch. The elapsed interval is
// integrated at the pre-toggle power level; the new level applies from
// this instant forward.
func (e *Engine) ToggleDevice(id int) error {
	return e.mutateDevice(id, func(d *Device) { d.On = !d.On })
}

// MoveDevice repositions a placed device.
func (e *Engine) MoveDevice(id int, x, y float64) error {
	return e.mutateDevice(id, func(d *Device) { d.X, d.Y = x, y })
}

// ToggleFixture flips one of the built-in lamps.
func (e *Engine) ToggleFixture(index int) error {
	now := e.clock.Now()
	e.mu.Lock()
	if index < 0 || index >= len(e.fixtures) {
		e.mu.Unlock()
		return fmt.Errorf("no fixture %d", index)
	}
	e.advanceLocked(now)
	e.fixtures[index].On = !e.fixtures[index].On
	e.resampleLocked()
	snap := e.snapshotLocked(now)
	updateFns := e.updateFns
	e.persistLocked()
	e.mu.Unlock()

	for _, fn := range updateFns {
		fn(snap)
	}
	return nil
}

func (e *Engine) mutateDevice(id int, mutate func(*Device)) error {
	now := e.clock.Now()
	e.mu.Lock()
	var target *Device
	for _, d := range e.devices {
		if d.ID == id {
			target = d
			break
		}
	}
	if target == nil {
		e.mu.Unlock()
		return fmt.Errorf("no device %d", id)
	}
	e.advanceLocked(now)
	mutate(target)
	e.resampleLocked()
	snap := e.snapshotLocked(now)
	updateFns := e.updateFns
	e.persistLocked()
	e.mu.Unlock()

	for _, fn := range updateFns {
		fn(snap)
	}
	return nil
}

// advanceLocked runs one accumulation step up to now: date rollover,
// duty-cycle advance, sampling, energy/cost integration, peak tracking.
func (e *Engine) advanceLocked(now time.Time) {
	day := dayKey(now)
	if day != e.dateKey {
		// New calendar day: daily counters restart, everything else
		// (instant power, device states, duty phase) carries over.
		e.dailyEnergyWh = 0
		e.dailyCost = 0
		e.peakWatts = 0
		e.dateKey = day
	}

	elapsed := 0.0
	if !e.lastUpdate.IsZero() {
		elapsed = now.Sub(e.lastUpdate).Seconds()
		if elapsed < 0 {
			// Clock stepped backwards; never integrate a negative interval.
			elapsed = 0
		}
	}
	e.lastUpdate = now

	if e.dutySeconds > 0 && elapsed > 0 {
		e.dutyTimer += elapsed
		if e.dutyTimer >= e.dutySeconds {
			// A long gap may span several duty periods; only the parity
			// of the flip count matters for the final state.
			flips := int(e.dutyTimer / e.dutySeconds)
			if flips%2 == 1 {
				e.dutyOn = !e.dutyOn
			}
			e.dutyTimer -= float64(flips) * e.dutySeconds
		}
	}

	watts, _ := samplePower(e.devices, e.fixtures, e.fixtureKind, e.dutyOn)
	e.instantWatts = watts
	e.dailyEnergyWh += watts * elapsed / 3600
	e.dailyCost = e.dailyEnergyWh / 1000 * e.tariff
	if watts > e.peakWatts {
		e.peakWatts = watts
	}
}

// resampleLocked recomputes instant power after a registry mutation
// without integrating time. Peak tracks the new level immediately so
// it never reads below the instant draw.
func (e *Engine) resampleLocked() {
	watts, _ := samplePower(e.devices, e.fixtures, e.fixtureKind, e.dutyOn)
	e.instantWatts = watts
	if watts > e.peakWatts {
		e.peakWatts = watts
	}
}

func (e *Engine) snapshotLocked(now time.Time) Snapshot {
	_, details := samplePower(e.devices, e.fixtures, e.fixtureKind, e.dutyOn)
	return Snapshot{
		Power:     math.Round(e.instantWatts),
		EnergyWh:  round(e.dailyEnergyWh, 4),
		Cost:      round(e.dailyCost, 2),
		PeakW:     math.Round(e.peakWatts),
		Devices:   details,
		Timestamp: now,
		Date:      e.dateKey,
	}
}

// Snapshot returns the current metrics without advancing time.
func (e *Engine) Snapshot() Snapshot {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(now)
}

// Metrics exposes the raw accumulators (unrounded).
func (e *Engine) Metrics() (instantWatts, dailyEnergyWh, dailyCost, peakWatts float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instantWatts, e.dailyEnergyWh, e.dailyCost, e.peakWatts
}

// Devices returns a copy of the placed-device registry.
func (e *Engine) Devices() []Device {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Device, 0, len(e.devices))
	for _, d := range e.devices {
		out = append(out, *d)
	}
	return out
}

// FixtureCount reports how many built-in lamps the engine hosts.
func (e *Engine) FixtureCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fixtures)
}

// DutyRunning reports the shared duty-cycle toggle.
func (e *Engine) DutyRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dutyOn
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func round(v float64, places int) float64 {
	f := math.Pow10(places)
	return math.Round(v*f) / f
}
