package service

import (
	"context"
	"time"

	"smart_ventilation/internal/logger"
	"smart_ventilation/internal/models"
)

// CloudReader is the slice of the cloud client the poller needs.
type CloudReader interface {
	FetchGasAndMotor(ctx context.Context, thingID string) (float64, bool, error)
}

// PollerService periodically reads the cloud thing's gas/motor properties
// and feeds them to the coordinator as normal telemetry. It is one more
// producer: the accrual engine never knows the event came from polling
// rather than a webhook.
type PollerService struct {
	cloud    CloudReader
	ingest   Ingest
	deviceID string
	thingID  string
	log      *logger.Logger
}

func NewPollerService(cloud CloudReader, ingest Ingest, deviceID, thingID string, log *logger.Logger) *PollerService {
	return &PollerService{
		cloud:    cloud,
		ingest:   ingest,
		deviceID: deviceID,
		thingID:  thingID,
		log:      log,
	}
}

// Run polls at the given interval until ctx is canceled. Poll failures are
// logged and skipped; the next tick retries from scratch.
func (s *PollerService) Run(ctx context.Context, tick time.Duration) {
	if s.deviceID == "" || s.thingID == "" {
		if s.log != nil {
			s.log.Infow("cloud_poller_disabled", "reason", "device or thing id not configured")
		}
		return
	}

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *PollerService) pollOnce(ctx context.Context) {
	gas, motor, err := s.cloud.FetchGasAndMotor(ctx, s.thingID)
	if err != nil {
		if s.log != nil {
			s.log.Warnw("cloud_poll_failed", "thing_id", s.thingID, "err", err)
		}
		return
	}

	ev := models.TelemetryEvent{
		DeviceID:   s.deviceID,
		GasLevel:   gas,
		MotorState: motor,
		ObservedAt: time.Now().UTC(),
	}
	if _, err := s.ingest.IngestEvent(ctx, ev); err != nil && s.log != nil {
		s.log.Warnw("cloud_poll_ingest_failed", "device_id", s.deviceID, "err", err)
	}
}
