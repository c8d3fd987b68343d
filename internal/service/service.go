package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"homewatt/internal/domain"
	"homewatt/internal/repository"
)

type Services struct {
	Repos     *repository.Repos
	Telemetry *TelemetryService
}

func New(db *sqlx.DB, strict bool) *Services {
	repos := repository.New(db)
	return &Services{
		Repos:     repos,
		Telemetry: &TelemetryService{store: repos, strict: strict, now: time.Now},
	}
}

// SampleStore is the slice of the repository the telemetry service needs.
type SampleStore interface {
	InsertSample(*domain.Sample) error
	LatestSample() (*domain.Sample, error)
	SamplesSince(cutoff time.Time) ([]domain.Sample, error)
	RecentSamples(cutoff time.Time, limit int) ([]domain.Sample, error)
}

// TelemetryService ingests flushed metrics and answers history and
// aggregation queries. Stored energy and cost are running totals: each
// ingest chains the received delta onto the previous row.
type TelemetryService struct {
	store  SampleStore
	strict bool
	now    func() time.Time
}

func NewTelemetry(store SampleStore, strict bool) *TelemetryService {
	return &TelemetryService{store: store, strict: strict, now: time.Now}
}

// ValidationError marks an ingest payload the caller got wrong, as
// opposed to a storage failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IngestRequest is the flush payload. Pointer fields distinguish an
// absent value from an explicit zero. The client's own timestamp is
// ignored; stored samples carry server-assigned time.
type IngestRequest struct {
	Power    *float64          `json:"power"`
	EnergyWh *float64          `json:"energy"`
	Cost     *float64          `json:"cost"`
	PeakW    *float64          `json:"peak"`
	Devices  domain.DeviceList `json:"devices"`
}

func (r *IngestRequest) validate(strict bool) error {
	if !strict {
		return nil
	}
	fields := map[string]*float64{
		"power":  r.Power,
		"energy": r.EnergyWh,
		"cost":   r.Cost,
		"peak":   r.PeakW,
	}
	for name, v := range fields {
		if v == nil {
			return &ValidationError{Field: name, Reason: "missing"}
		}
		if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return &ValidationError{Field: name, Reason: "not a non-negative number"}
		}
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Ingest chains the received metrics onto the latest stored row and
// persists the result: energy and cost accumulate, peak keeps the
// maximum, power is the latest instant reading.
func (s *TelemetryService) Ingest(req *IngestRequest) (*domain.Sample, error) {
	if err := req.validate(s.strict); err != nil {
		return nil, err
	}

	prev, err := s.store.LatestSample()
	if err != nil {
		return nil, err
	}

	sample := &domain.Sample{
		Power:    deref(req.Power),
		EnergyWh: deref(req.EnergyWh),
		Cost:     deref(req.Cost),
		PeakW:    deref(req.PeakW),
		Devices:  req.Devices,
	}
	if prev != nil {
		sample.EnergyWh += prev.EnergyWh
		sample.Cost += prev.Cost
		if prev.PeakW > sample.PeakW {
			sample.PeakW = prev.PeakW
		}
	}
	sample.Timestamp = s.now()
	if sample.Devices == nil {
		sample.Devices = domain.DeviceList{}
	}

	if err := s.store.InsertSample(sample); err != nil {
		return nil, err
	}
	return sample, nil
}

// Current returns the latest stored sample, or a zeroed one when
// nothing has been ingested yet.
func (s *TelemetryService) Current() (*domain.Sample, error) {
	latest, err := s.store.LatestSample()
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return &domain.Sample{Devices: domain.DeviceList{}, Timestamp: s.now()}, nil
	}
	return latest, nil
}

// History lists samples from the past window, newest first, with
// display time and date strings rendered in UTC.
func (s *TelemetryService) History(hours, limit int) ([]domain.HistoryEntry, error) {
	if hours <= 0 {
		hours = 24
	}
	if limit <= 0 {
		limit = 100
	}
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	samples, err := s.store.RecentSamples(cutoff, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.HistoryEntry, 0, len(samples))
	for _, sm := range samples {
		ts := sm.Timestamp.UTC()
		out = append(out, domain.HistoryEntry{
			Power:    sm.Power,
			EnergyWh: sm.EnergyWh,
			Cost:     sm.Cost,
			PeakW:    sm.PeakW,
			Devices:  sm.Devices,
			Time:     ts.Format("15:04"),
			Date:     ts.Format("2006-01-02"),
		})
	}
	return out, nil
}

// Aggregated buckets the past window by hour of day or by calendar day.
// Hourly buckets share a label across days, so a multi-day window
// collapses same-hour samples into one bucket. Buckets come back sorted
// by label with power averaged and energy and cost summed.
func (s *TelemetryService) Aggregated(days int, interval string) ([]domain.Bucket, error) {
	if days <= 0 {
		days = 7
	}
	if interval != "day" {
		interval = "hour"
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	samples, err := s.store.SamplesSince(cutoff)
	if err != nil {
		return nil, err
	}

	type agg struct {
		bucket domain.Bucket
		count  int
	}
	byLabel := make(map[string]*agg)
	var order []string

	for _, sm := range samples {
		ts := sm.Timestamp.UTC()
		var label string
		if interval == "day" {
			label = ts.Format("2006-01-02")
		} else {
			label = ts.Format("15") + ":00"
		}

		a, ok := byLabel[label]
		if !ok {
			a = &agg{bucket: domain.Bucket{Time: label}}
			byLabel[label] = a
			order = append(order, label)
		}
		a.bucket.Power += sm.Power
		a.bucket.EnergyWh += sm.EnergyWh
		a.bucket.Cost += sm.Cost
		if sm.PeakW > a.bucket.PeakW {
			a.bucket.PeakW = sm.PeakW
		}
		a.count++
	}

	// Both label formats sort chronologically as strings.
	sort.Strings(order)

	out := make([]domain.Bucket, 0, len(order))
	for _, label := range order {
		a := byLabel[label]
		b := a.bucket
		b.Power = round2(b.Power / float64(a.count))
		b.EnergyWh = round2(b.EnergyWh)
		b.Cost = round2(b.Cost)
		b.PeakW = round2(b.PeakW)
		out = append(out, b)
	}
	return out, nil
}

// FromMQTT handles a flush payload delivered over the broker instead
// of HTTP.
func (s *TelemetryService) FromMQTT(topic string, payload []byte) error {
	var req IngestRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	_, err := s.Ingest(&req)
	return err
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
