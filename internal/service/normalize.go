package service

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"smart_ventilation/internal/models"
)

// Normalization errors. Producers receive transport-level acknowledgement
// only; the handler layer maps these to "ignored" responses.
var (
	ErrMalformedEvent = errors.New("malformed telemetry event")
	ErrUnknownDevice  = errors.New("unknown device")
)

// Property names devices report. The cloud relay has sent both spellings
// of the motor flag in the wild.
const (
	propGasLevel    = "gasLevel"
	propMotorState  = "motorState"
	propMotorState2 = "motor_state"
)

// NamedValue is one property in a cloud relay payload.
type NamedValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// RelayPayload is the third-party cloud webhook shape: a device identifier
// plus a list of named property values.
type RelayPayload struct {
	DeviceID string       `json:"device_id"`
	Values   []NamedValue `json:"values"`
}

// DirectReport is the first-party device shape. MotorState is optional;
// when absent the producer's gas threshold decides it.
type DirectReport struct {
	DeviceID   string   `json:"device_id"`
	GasLevel   *float64 `json:"gas_level"`
	MotorState any      `json:"motor_state,omitempty"`
}

// normalizeRelay validates a relay payload and reduces it to one
// TelemetryEvent stamped with the server clock.
func normalizeRelay(p RelayPayload, now time.Time) (models.TelemetryEvent, error) {
	if strings.TrimSpace(p.DeviceID) == "" {
		return models.TelemetryEvent{}, ErrMalformedEvent
	}

	var (
		gas      float64
		gasFound bool
		motor    bool
	)
	for _, v := range p.Values {
		switch v.Name {
		case propGasLevel:
			if g, ok := coerceFloat(v.Value); ok {
				gas = g
				gasFound = true
			}
		case propMotorState, propMotorState2:
			motor = coerceBool(v.Value)
		}
	}
	if !gasFound {
		return models.TelemetryEvent{}, ErrMalformedEvent
	}

	return models.TelemetryEvent{
		DeviceID:   p.DeviceID,
		GasLevel:   gas,
		MotorState: motor,
		ObservedAt: now.UTC(),
	}, nil
}

// normalizeDirect validates a direct device report. A report without a
// motor flag is auto-controlled: the fan should run iff the gas level
// exceeds the threshold.
func normalizeDirect(p DirectReport, gasThreshold float64, now time.Time) (models.TelemetryEvent, error) {
	if strings.TrimSpace(p.DeviceID) == "" || p.GasLevel == nil {
		return models.TelemetryEvent{}, ErrMalformedEvent
	}
	gas := *p.GasLevel
	if math.IsNaN(gas) || math.IsInf(gas, 0) {
		return models.TelemetryEvent{}, ErrMalformedEvent
	}

	motor := gas > gasThreshold
	if p.MotorState != nil {
		motor = coerceBool(p.MotorState)
	}

	return models.TelemetryEvent{
		DeviceID:   p.DeviceID,
		GasLevel:   gas,
		MotorState: motor,
		ObservedAt: now.UTC(),
	}, nil
}

// coerceBool accepts the boolean spellings devices actually send:
// true/false, "true"/"false", 1/0, "1"/"0". Anything ambiguous is false —
// an unclear signal must never be read as "the fan is running".
func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1"
	case float64:
		return b == 1
	case int:
		return b == 1
	default:
		return false
	}
}

// coerceFloat accepts a finite number or a numeric string.
func coerceFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
