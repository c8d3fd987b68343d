package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DeviceDetail is the per-device line item carried on every telemetry
// snapshot and stored alongside each sample.
type DeviceDetail struct {
	Name  string  `json:"name"`
	Power float64 `json:"power"`
	State string  `json:"state"`
	Type  string  `json:"type"`
}

// DeviceList is stored as a single JSONB column.
type DeviceList []DeviceDetail

func (d DeviceList) Value() (driver.Value, error) {
	if d == nil {
		d = DeviceList{}
	}
	return json.Marshal(d)
}

func (d *DeviceList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = DeviceList{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("devices: cannot scan %T", src)
	}
}

// Sample is one persisted telemetry record. Energy and cost are
// server-side running totals chained across client sessions; power is
// the instantaneous draw reported by the client.
type Sample struct {
	ID        int64      `db:"id" json:"-"`
	Power     float64    `db:"power" json:"power"`
	EnergyWh  float64    `db:"energy_wh" json:"energy"`
	Cost      float64    `db:"cost" json:"cost"`
	PeakW     float64    `db:"peak_w" json:"peak"`
	Devices   DeviceList `db:"devices" json:"devices"`
	Timestamp time.Time  `db:"timestamp" json:"timestamp"`
}

// HistoryEntry is a sample projected for chart consumption, with the
// timestamp pre-rendered as display strings in UTC.
type HistoryEntry struct {
	Power    float64    `json:"power"`
	EnergyWh float64    `json:"energy"`
	Cost     float64    `json:"cost"`
	PeakW    float64    `json:"peak"`
	Devices  DeviceList `json:"devices"`
	Time     string     `json:"time"`
	Date     string     `json:"date"`
}

// Bucket is one aggregated time bucket: average power, summed
// energy/cost and max peak over every sample that fell into it.
type Bucket struct {
	Time     string  `json:"time"`
	Power    float64 `json:"power"`
	EnergyWh float64 `json:"energy"`
	Cost     float64 `json:"cost"`
	PeakW    float64 `json:"peak"`
}
