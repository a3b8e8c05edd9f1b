package models

import "time"

// Fan status values.
const (
	StatusOn  = "ON"
	StatusOff = "OFF"
)

// Fan is the authoritative record for one physical ventilation unit.
// Status and LastOnAt are only ever changed by the accrual engine;
// LastOnAt is non-nil iff Status == ON.
type Fan struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"-"`
	Name         string     `json:"name"`
	Location     string     `json:"location"`
	DeviceID     string     `json:"device_id"`
	ThingID      string     `json:"thing_id,omitempty"`
	Status       string     `json:"status"` // ON | OFF
	LastOnAt     *time.Time `json:"last_on_at,omitempty"`
	RuntimeTotal float64    `json:"runtime_total"` // fractional hours
	RuntimeToday float64    `json:"runtime_today"` // fractional hours, current day
	LastGasLevel *float64   `json:"last_gas_level,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUpdated  time.Time  `json:"last_updated"`
}

// IsOn reports whether the fan's committed status is ON.
func (f Fan) IsOn() bool { return f.Status == StatusOn }
