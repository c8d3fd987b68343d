package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homewatt/internal/domain"
	"homewatt/internal/service"
)

type fakeStore struct {
	samples []domain.Sample
	nextID  int64
}

func (f *fakeStore) InsertSample(s *domain.Sample) error {
	f.nextID++
	s.ID = f.nextID
	f.samples = append(f.samples, *s)
	return nil
}

func (f *fakeStore) LatestSample() (*domain.Sample, error) {
	if len(f.samples) == 0 {
		return nil, nil
	}
	last := f.samples[len(f.samples)-1]
	return &last, nil
}

func (f *fakeStore) SamplesSince(cutoff time.Time) ([]domain.Sample, error) {
	var out []domain.Sample
	for _, s := range f.samples {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) RecentSamples(cutoff time.Time, limit int) ([]domain.Sample, error) {
	asc, _ := f.SamplesSince(cutoff)
	var out []domain.Sample
	for i := len(asc) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, asc[i])
	}
	return out, nil
}

func newTestApp(store *fakeStore, strict bool) *fiber.App {
	app := fiber.New()
	svcs := &service.Services{Telemetry: service.NewTelemetry(store, strict)}
	Register(app, svcs)
	return app
}

func TestPostPower_IngestAndChain(t *testing.T) {
	store := &fakeStore{}
	app := newTestApp(store, false)

	post := func(body string) map[string]any {
		req := httptest.NewRequest("POST", "/power/", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	out := post(`{"power":100,"energy":10,"cost":60,"peak":500}`)
	assert.Equal(t, true, out["success"])

	out = post(`{"power":90,"energy":2,"cost":12,"peak":550}`)
	data := out["data"].(map[string]any)
	assert.InDelta(t, 12.0, data["energy"].(float64), 1e-9)
	assert.InDelta(t, 72.0, data["cost"].(float64), 1e-9)
	assert.InDelta(t, 550.0, data["peak"].(float64), 1e-9)
}

func TestPostPower_StrictValidation(t *testing.T) {
	app := newTestApp(&fakeStore{}, true)

	req := httptest.NewRequest("POST", "/power/", bytes.NewBufferString(`{"power":100}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out["error"], "invalid")
}

func TestPostPower_MalformedBody(t *testing.T) {
	app := newTestApp(&fakeStore{}, false)

	req := httptest.NewRequest("POST", "/power/", bytes.NewBufferString(`{"power":`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
}

func TestGetPower_EmptyAndLatest(t *testing.T) {
	store := &fakeStore{}
	app := newTestApp(store, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/power/", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	var sample map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sample))
	assert.InDelta(t, 0.0, sample["power"].(float64), 1e-9)

	require.NoError(t, store.InsertSample(&domain.Sample{Power: 250, Timestamp: time.Now()}))
	resp, err = app.Test(httptest.NewRequest("GET", "/power/", nil))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sample))
	assert.InDelta(t, 250.0, sample["power"].(float64), 1e-9)
}

func TestGetHistory(t *testing.T) {
	store := &fakeStore{}
	now := time.Now().UTC()
	require.NoError(t, store.InsertSample(&domain.Sample{Power: 10, Timestamp: now.Add(-2 * time.Hour)}))
	require.NoError(t, store.InsertSample(&domain.Sample{Power: 20, Timestamp: now.Add(-time.Hour)}))
	app := newTestApp(store, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/power/history?hours=24", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var out struct {
		Success bool                  `json:"success"`
		Count   int                   `json:"count"`
		Data    []domain.HistoryEntry `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Data, 2)
	assert.NotEmpty(t, out.Data[0].Time)
	assert.NotEmpty(t, out.Data[0].Date)
}

func TestGetAggregated(t *testing.T) {
	store := &fakeStore{}
	now := time.Now().UTC().Truncate(time.Hour)
	require.NoError(t, store.InsertSample(&domain.Sample{Power: 100, EnergyWh: 1, Timestamp: now.Add(-time.Hour)}))
	require.NoError(t, store.InsertSample(&domain.Sample{Power: 200, EnergyWh: 2, Timestamp: now.Add(-time.Hour)}))
	app := newTestApp(store, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/power/aggregated?days=1&interval=hour", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var out struct {
		Success bool            `json:"success"`
		Data    []domain.Bucket `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	require.Len(t, out.Data, 1)
	assert.InDelta(t, 150.0, out.Data[0].Power, 1e-9)
	assert.InDelta(t, 3.0, out.Data[0].EnergyWh, 1e-9)
}
