package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"homewatt/internal/domain"
)

type Repos struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repos { return &Repos{db: db} }

func (r *Repos) InsertSample(s *domain.Sample) error {
	return r.db.QueryRowx(
		`INSERT INTO samples(power, energy_wh, cost, peak_w, devices, timestamp)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		s.Power, s.EnergyWh, s.Cost, s.PeakW, s.Devices, s.Timestamp,
	).Scan(&s.ID)
}

// LatestSample returns the newest stored sample, or nil when the store
// is empty.
func (r *Repos) LatestSample() (*domain.Sample, error) {
	var out domain.Sample
	err := r.db.Get(&out,
		`SELECT id, power, energy_wh, cost, peak_w, devices, timestamp
		 FROM samples ORDER BY timestamp DESC, id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SamplesSince returns samples at or after the cutoff in ascending
// timestamp order.
func (r *Repos) SamplesSince(cutoff time.Time) ([]domain.Sample, error) {
	var out []domain.Sample
	err := r.db.Select(&out,
		`SELECT id, power, energy_wh, cost, peak_w, devices, timestamp
		 FROM samples WHERE timestamp >= $1 ORDER BY timestamp ASC, id ASC`, cutoff)
	return out, err
}

// RecentSamples returns up to limit samples at or after the cutoff,
// newest first.
func (r *Repos) RecentSamples(cutoff time.Time, limit int) ([]domain.Sample, error) {
	var out []domain.Sample
	err := r.db.Select(&out,
		`SELECT id, power, energy_wh, cost, peak_w, devices, timestamp
		 FROM samples WHERE timestamp >= $1 ORDER BY timestamp DESC, id DESC LIMIT $2`,
		cutoff, limit)
	return out, err
}

// DeleteSamplesBefore prunes history older than the cutoff and reports
// how many rows went away.
func (r *Repos) DeleteSamplesBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM samples WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
