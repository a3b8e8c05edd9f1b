package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smart_ventilation/internal/logger"
	"smart_ventilation/internal/models"
	"smart_ventilation/internal/repository"
)

// ErrFanNotFound is returned when a caller names a fan they don't own.
var ErrFanNotFound = errors.New("fan not found")

// CloudActuator is the slice of the cloud client manual control needs.
type CloudActuator interface {
	SetMotorState(ctx context.Context, thingID string, on bool) error
}

// ControlService handles operator ON/OFF requests. It builds a synthetic
// telemetry event carrying the fan's last known gas level and runs it
// through the same coordinator as device reports, so manual and automatic
// control share one transition function and one lock scope.
type ControlService struct {
	fans   repository.FanRepo
	ingest Ingest
	cloud  CloudActuator
	log    *logger.Logger
}

func NewControlService(fans repository.FanRepo, ingest Ingest, cloud CloudActuator, log *logger.Logger) *ControlService {
	return &ControlService{fans: fans, ingest: ingest, cloud: cloud, log: log}
}

// SetState applies the desired ON/OFF state to a fan the user owns and
// returns the committed snapshot. Unlike telemetry producers, the caller
// gets a definitive success or failure.
func (s *ControlService) SetState(ctx context.Context, userID, fanID int64, desired bool) (*models.Fan, error) {
	fan, err := s.fans.GetByID(ctx, userID, fanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFanNotFound
		}
		return nil, err
	}

	var gas float64
	if fan.LastGasLevel != nil {
		gas = *fan.LastGasLevel
	}

	ev := models.TelemetryEvent{
		FanID:      fan.ID,
		DeviceID:   fan.DeviceID,
		GasLevel:   gas,
		MotorState: desired,
		ObservedAt: time.Now().UTC(),
	}
	if _, err := s.ingest.IngestEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("apply manual control to fan %d: %w", fanID, err)
	}

	// best-effort push to the physical actuator; the committed state is
	// already authoritative
	if s.cloud != nil && fan.ThingID != "" {
		if err := s.cloud.SetMotorState(ctx, fan.ThingID, desired); err != nil && s.log != nil {
			s.log.Warnw("cloud_actuator_push_failed", "fan_id", fanID, "thing_id", fan.ThingID, "err", err)
		}
	}

	committed, err := s.fans.GetByID(ctx, userID, fanID)
	if err != nil {
		return nil, err
	}
	return committed, nil
}
