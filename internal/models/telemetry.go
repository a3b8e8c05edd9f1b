package models

import "time"

// TelemetryEvent is the single normalized event type every producer
// (webhook relay, direct report, cloud poller, manual control) reduces to.
// ObservedAt is always the server clock at ingestion; device timestamps
// are not trusted. FanID is non-zero only when the producer has already
// resolved the target fan (manual control): device ids are unique per
// owner, not globally, so a device-id lookup alone cannot stand in for
// an owner-scoped one.
type TelemetryEvent struct {
	FanID      int64
	DeviceID   string
	GasLevel   float64
	MotorState bool
	ObservedAt time.Time
}

// FanUpdate is the change notification published after a committed
// transition. Delivery is fire-and-forget; observers reconcile via the
// fan read model on reconnect.
type FanUpdate struct {
	FanID      int64     `json:"fan_id"`
	DeviceID   string    `json:"device_id"`
	GasLevel   float64   `json:"gas_level"`
	Status     string    `json:"status"`
	ObservedAt time.Time `json:"observed_at"`
}
