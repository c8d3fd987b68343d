package simulation

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	blob []byte
}

func (s *memStore) Save(blob []byte) error {
	s.blob = append([]byte(nil), blob...)
	return nil
}

func (s *memStore) Load() ([]byte, error) { return s.blob, nil }

func TestFileStore_AbsentFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	blob, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, store.Save([]byte(`{"version":4}`)))
	blob, err := store.Load()
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":4}`, string(blob))
}

func TestSaveRestore_SameDay(t *testing.T) {
	store := &memStore{}
	a, clock := newTestEngine(t, Config{Store: store, FixtureCount: 2})
	_, err := a.AddDevice("oven", 3, 4, true)
	require.NoError(t, err)
	_, err = a.AddDevice("fan", 1, 1, false)
	require.NoError(t, err)
	require.NoError(t, a.ToggleFixture(1))

	clock.advance(30 * time.Minute)
	a.Tick()
	require.NotNil(t, store.blob)

	b := New(Config{Store: store, FixtureCount: 2, Clock: clock})
	b.Load()

	aInstant, aEnergy, aCost, aPeak := a.Metrics()
	bInstant, bEnergy, bCost, bPeak := b.Metrics()
	assert.InDelta(t, aInstant, bInstant, 1e-9)
	assert.InDelta(t, aEnergy, bEnergy, 1e-9)
	assert.InDelta(t, aCost, bCost, 1e-9)
	assert.InDelta(t, aPeak, bPeak, 1e-9)
	assert.Equal(t, a.DutyRunning(), b.DutyRunning())

	devices := b.Devices()
	require.Len(t, devices, 2)
	assert.Equal(t, "oven", devices[0].Kind.ID)
	assert.True(t, devices[0].On)
	assert.Equal(t, "fan", devices[1].Kind.ID)
	assert.False(t, devices[1].On)

	// The restored engine keeps ticking from the saved anchor.
	// Oven (1000 W) plus the lit fixture (40 W) over one hour.
	clock.advance(time.Hour)
	b.Tick()
	_, bEnergy2, _, _ := b.Metrics()
	assert.InDelta(t, bEnergy+1040.0, bEnergy2, 0.001)
}

func TestSaveRestore_LaterDayZeroesDailyCounters(t *testing.T) {
	store := &memStore{}
	a, clock := newTestEngine(t, Config{Store: store})
	_, err := a.AddDevice("washingmachine", 0, 0, true)
	require.NoError(t, err)
	clock.advance(time.Hour)
	a.Tick()
	_, aEnergy, _, _ := a.Metrics()
	require.Greater(t, aEnergy, 0.0)

	clock.advance(24 * time.Hour)
	b := New(Config{Store: store, Clock: clock})
	b.Load()

	bInstant, bEnergy, bCost, bPeak := b.Metrics()
	assert.Zero(t, bEnergy)
	assert.Zero(t, bCost)
	assert.Zero(t, bPeak)
	// Instant power is state, not an accumulator, so it survives.
	assert.InDelta(t, 500.0, bInstant, 0.001)

	devices := b.Devices()
	require.Len(t, devices, 1)
	assert.True(t, devices[0].On)
}

func TestLoad_CorruptBlobStartsFresh(t *testing.T) {
	store := &memStore{blob: []byte("not json at all")}
	e := New(Config{Store: store, Clock: &fakeClock{t: testStart}})
	e.Load()
	assert.Empty(t, e.Devices())
	_, energy, _, _ := e.Metrics()
	assert.Zero(t, energy)
}

func TestLoad_VersionMismatchStartsFresh(t *testing.T) {
	blob, err := json.Marshal(persistedState{Version: 3, DailyEnergyWh: 99})
	require.NoError(t, err)
	e := New(Config{Store: &memStore{blob: blob}, Clock: &fakeClock{t: testStart}})
	e.Load()
	_, energy, _, _ := e.Metrics()
	assert.Zero(t, energy)
}

func TestLoad_UnknownKindSkipped(t *testing.T) {
	clock := &fakeClock{t: testStart}
	blob, err := json.Marshal(persistedState{
		Version: stateVersion,
		DateKey: dayKey(testStart),
		Devices: []persistedDevice{
			{Kind: "hovercraft", On: true},
			{Kind: "tv", On: true},
		},
		LastUpdateMs: testStart.UnixMilli(),
		LastFlushMs:  testStart.UnixMilli(),
	})
	require.NoError(t, err)

	e := New(Config{Store: &memStore{blob: blob}, Clock: clock})
	e.Load()

	devices := e.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, "tv", devices[0].Kind.ID)
}
