package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smart_ventilation/internal/logger"
	"smart_ventilation/internal/metrics"
	"smart_ventilation/internal/models"
	"smart_ventilation/internal/repository"
)

// Notifier receives committed state changes. Delivery is fire-and-forget.
type Notifier interface {
	Publish(u models.FanUpdate)
}

// IngestService is the ingestion transaction coordinator: one event's
// reading insert, fan transition and runtime-log append either all commit
// or none do.
type IngestService struct {
	fans       repository.FanRepo
	readings   repository.ReadingRepo
	runtimeLog repository.RuntimeLogRepo
	tx         repository.TxRunner
	notifier   Notifier
	threshold  float64 // gas level above which an auto-controlled fan runs
	log        *logger.Logger
}

func NewIngestService(repos *repository.Repository, notifier Notifier, gasThreshold float64, log *logger.Logger) *IngestService {
	return &IngestService{
		fans:       repos.Fans,
		readings:   repos.Readings,
		runtimeLog: repos.RuntimeLog,
		tx:         repos.Tx,
		notifier:   notifier,
		threshold:  gasThreshold,
		log:        log,
	}
}

// IngestRelay normalizes a cloud relay payload and processes it.
func (s *IngestService) IngestRelay(ctx context.Context, p RelayPayload) (*models.FanUpdate, error) {
	ev, err := normalizeRelay(p, time.Now())
	if err != nil {
		metrics.EventsMalformed.Inc()
		return nil, err
	}
	return s.IngestEvent(ctx, ev)
}

// IngestDirect normalizes a first-party device report and processes it.
func (s *IngestService) IngestDirect(ctx context.Context, p DirectReport) (*models.FanUpdate, error) {
	ev, err := normalizeDirect(p, s.threshold, time.Now())
	if err != nil {
		metrics.EventsMalformed.Inc()
		return nil, err
	}
	return s.IngestEvent(ctx, ev)
}

// IngestEvent runs one normalized event through lookup, the accrual engine
// and the atomic persist. On success the committed projection is published
// to the notifier and returned. ErrUnknownDevice means the event was
// dropped without writes; any other error means the transaction rolled
// back completely.
func (s *IngestService) IngestEvent(ctx context.Context, ev models.TelemetryEvent) (*models.FanUpdate, error) {
	var (
		update  models.FanUpdate
		accrual Accrual
	)

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		var (
			fan *models.Fan
			err error
		)
		// Device ids are unique per owner, not globally. A producer that
		// already resolved the fan (manual control) passes its id so the
		// event cannot land on another owner's fan.
		if ev.FanID != 0 {
			fan, err = s.fans.LookupByID(ctx, tx, ev.FanID)
		} else {
			fan, err = s.fans.LookupByDevice(ctx, tx, ev.DeviceID)
		}
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUnknownDevice
			}
			return err
		}

		if err := s.readings.Append(ctx, tx, models.Reading{
			FanID:      fan.ID,
			GasLevel:   ev.GasLevel,
			MotorState: ev.MotorState,
			CreatedAt:  ev.ObservedAt,
		}); err != nil {
			return err
		}

		next, acc := applyTransition(*fan, ev)
		accrual = acc

		if err := s.fans.ApplyTransition(ctx, tx, next); err != nil {
			return err
		}

		if err := s.runtimeLog.Append(ctx, tx, models.RuntimeLogEntry{
			FanID:           fan.ID,
			GasLevel:        ev.GasLevel,
			MotorState:      ev.MotorState,
			CreditedMinutes: acc.CreditedMinutes,
			OccurredAt:      ev.ObservedAt,
		}); err != nil {
			return err
		}

		update = models.FanUpdate{
			FanID:      fan.ID,
			DeviceID:   fan.DeviceID,
			GasLevel:   ev.GasLevel,
			Status:     next.Status,
			ObservedAt: ev.ObservedAt.UTC(),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownDevice) {
			metrics.EventsUnknownDevice.Inc()
			return nil, err
		}
		metrics.EventsFailed.Inc()
		return nil, fmt.Errorf("ingest event for device %q: %w", ev.DeviceID, err)
	}

	metrics.EventsAccepted.Inc()
	if accrual.CreditedMinutes > 0 {
		metrics.MinutesCredited.Add(float64(accrual.CreditedMinutes))
	}
	if accrual.ClockSkew {
		metrics.ClockSkewEvents.Inc()
		if s.log != nil {
			s.log.Warnw("runtime_clock_skew_clamped",
				"device_id", ev.DeviceID, "fan_id", update.FanID, "observed_at", ev.ObservedAt)
		}
	}

	// after commit only; a notification failure can never roll back
	if s.notifier != nil {
		s.notifier.Publish(update)
	}
	return &update, nil
}
