package service

import (
	"math"
	"time"

	"smart_ventilation/internal/models"
)

// Accrual is the outcome of running one telemetry event through the state
// machine. CreditedMinutes is non-zero only for an ON→OFF transition.
type Accrual struct {
	CreditedMinutes int64
	CreditedHours   float64
	Transitioned    bool // status actually changed
	ClockSkew       bool // observedAt predated lastOnAt; credit clamped to 0
}

// applyTransition is the runtime accrual state machine. It is pure: given
// the current fan snapshot and one event it returns the next snapshot and
// the accrual decision, performing no I/O.
//
// Transitions are driven solely by the event's motor state against the
// fan's committed status:
//
//	OFF + false  → no-op, telemetry refresh only
//	OFF + true   → ON, lastOnAt = observedAt
//	ON  + true   → no-op, lastOnAt untouched
//	ON  + false  → OFF, credit whole minutes since lastOnAt
//
// Elapsed time is whole minutes divided by 60, rounded to hundredths of an
// hour. runtimeToday is credited only when lastOnAt falls on the same UTC
// calendar day as observedAt; an interval spanning midnight credits the
// full duration to runtimeTotal and nothing to today's counter. A negative
// elapsed (clock skew, out-of-order delivery) clamps to 0 and still
// completes the OFF transition, so runtime counters never decrease.
func applyTransition(fan models.Fan, ev models.TelemetryEvent) (models.Fan, Accrual) {
	now := ev.ObservedAt.UTC()
	gas := ev.GasLevel

	next := fan
	next.LastGasLevel = &gas
	next.LastUpdated = now

	var acc Accrual

	switch {
	case ev.MotorState && !fan.IsOn():
		next.Status = models.StatusOn
		onAt := now
		next.LastOnAt = &onAt
		acc.Transitioned = true

	case ev.MotorState && fan.IsOn():
		// still ON; duplicate or heartbeat report

	case !ev.MotorState && fan.IsOn():
		if fan.LastOnAt != nil {
			minutes := int64(now.Sub(fan.LastOnAt.UTC()) / time.Minute)
			if minutes < 0 {
				minutes = 0
				acc.ClockSkew = true
			}
			hours := roundHundredths(float64(minutes) / 60)
			next.RuntimeTotal = roundHundredths(fan.RuntimeTotal + hours)
			if sameUTCDay(fan.LastOnAt.UTC(), now) {
				next.RuntimeToday = roundHundredths(fan.RuntimeToday + hours)
			}
			acc.CreditedMinutes = minutes
			acc.CreditedHours = hours
		}
		next.Status = models.StatusOff
		next.LastOnAt = nil
		acc.Transitioned = true

	default:
		// already OFF; keep the invariant lastOnAt == nil
		next.Status = models.StatusOff
		next.LastOnAt = nil
	}

	return next, acc
}

func roundHundredths(v float64) float64 {
	return math.Round(v*100) / 100
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
