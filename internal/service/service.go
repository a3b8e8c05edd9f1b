package service

import (
	"context"
	"time"

	"smart_ventilation/internal/logger"
	"smart_ventilation/internal/models"
	"smart_ventilation/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, name, email, password string) (int64, error)
	GenerateToken(ctx context.Context, email, password string) (string, error)
	ParseToken(accessToken string) (int64, error)
}

// Ingest is the ingestion transaction coordinator: every producer shape
// reduces to one normalized event and one atomic commit.
type Ingest interface {
	IngestRelay(ctx context.Context, p RelayPayload) (*models.FanUpdate, error)
	IngestDirect(ctx context.Context, p DirectReport) (*models.FanUpdate, error)
	IngestEvent(ctx context.Context, ev models.TelemetryEvent) (*models.FanUpdate, error)
}

// Control exposes manual ON/OFF for authenticated callers.
type Control interface {
	SetState(ctx context.Context, userID, fanID int64, desired bool) (*models.Fan, error)
}

// Registry exposes fan registration and the read-only projections.
type Registry interface {
	Create(ctx context.Context, userID int64, p CreateFanParams) (*models.Fan, error)
	List(ctx context.Context, userID int64) ([]models.Fan, error)
	Get(ctx context.Context, userID, fanID int64) (*models.Fan, error)
	Readings(ctx context.Context, userID, fanID int64, limit int) ([]models.Reading, error)
}

// Poller runs the cloud polling producer loop. Stop via context
// cancellation in main() for graceful shutdown.
type Poller interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services behind one handle for the HTTP layer.
type Service struct {
	Ingest
	Control
	Registry
	Poller
	Authorization
	Hub *Hub
}

// Options carries the knobs NewService needs beyond the repositories.
type Options struct {
	SigningKey   string
	GasThreshold float64
	Cloud        CloudConfig
	PollDeviceID string
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, opts Options, log *logger.Logger) *Service {
	hub := NewHub()
	cloud := NewCloudClient(opts.Cloud)
	ingest := NewIngestService(repos, hub, opts.GasThreshold, log)

	return &Service{
		Ingest:        ingest,
		Control:       NewControlService(repos.Fans, ingest, cloud, log),
		Registry:      NewRegistryService(repos.Fans, repos.Readings),
		Poller:        NewPollerService(cloud, ingest, opts.PollDeviceID, opts.Cloud.ThingID, log),
		Authorization: NewAuthService(repos.Auth, opts.SigningKey),
		Hub:           hub,
	}
}
