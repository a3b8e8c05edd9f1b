package models

import "time"

// Reading is one accepted telemetry sample. Rows are append-only; the
// runtime counters on Fan can be recomputed from this history.
type Reading struct {
	ID         int64     `json:"id"`
	FanID      int64     `json:"fan_id"`
	GasLevel   float64   `json:"gas_level"`
	MotorState bool      `json:"motor_state"`
	CreatedAt  time.Time `json:"created_at"`
}

// RuntimeLogEntry records one accrual decision. CreditedMinutes is zero
// unless the event caused an ON→OFF transition.
type RuntimeLogEntry struct {
	EntryID         string    `json:"entry_id"`
	FanID           int64     `json:"fan_id"`
	GasLevel        float64   `json:"gas_level"`
	MotorState      bool      `json:"motor_state"`
	CreditedMinutes int64     `json:"credited_minutes"`
	OccurredAt      time.Time `json:"occurred_at"`
}
