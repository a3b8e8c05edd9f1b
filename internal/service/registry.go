package service

import (
	"context"
	"errors"
	"strings"

	"smart_ventilation/internal/models"
	"smart_ventilation/internal/repository"
)

// Registry validation errors.
var (
	ErrInvalidFanParams  = errors.New("name, location and device_id are required")
	ErrDuplicateDeviceID = errors.New("a fan with this device_id already exists for this account")
)

// CreateFanParams is the registration input.
type CreateFanParams struct {
	Name     string
	Location string
	DeviceID string
	ThingID  string
}

// RegistryService owns fan registration and the read model consumed by
// presentation code. It never touches status or the runtime counters.
type RegistryService struct {
	fans     repository.FanRepo
	readings repository.ReadingRepo
}

func NewRegistryService(fans repository.FanRepo, readings repository.ReadingRepo) *RegistryService {
	return &RegistryService{fans: fans, readings: readings}
}

// Create registers a new fan for the user. Device ids are unique per owner.
func (s *RegistryService) Create(ctx context.Context, userID int64, p CreateFanParams) (*models.Fan, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Location = strings.TrimSpace(p.Location)
	p.DeviceID = strings.TrimSpace(p.DeviceID)
	if len(p.Name) < 2 || len(p.Location) < 2 || p.DeviceID == "" {
		return nil, ErrInvalidFanParams
	}

	id, err := s.fans.Create(ctx, models.Fan{
		UserID:   userID,
		Name:     p.Name,
		Location: p.Location,
		DeviceID: p.DeviceID,
		ThingID:  p.ThingID,
	})
	if err != nil {
		// the UNIQUE (user_id, device_id) constraint is the arbiter, so
		// concurrent registrations cannot both pass a pre-check
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateDeviceID
		}
		return nil, err
	}
	return s.fans.GetByID(ctx, userID, id)
}

// List returns the user's fans with their current projections.
func (s *RegistryService) List(ctx context.Context, userID int64) ([]models.Fan, error) {
	return s.fans.ListByUser(ctx, userID)
}

// Get returns one fan owned by the user, or ErrFanNotFound.
func (s *RegistryService) Get(ctx context.Context, userID, fanID int64) (*models.Fan, error) {
	fan, err := s.fans.GetByID(ctx, userID, fanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFanNotFound
		}
		return nil, err
	}
	return fan, nil
}

// Readings returns the newest telemetry samples for one of the user's
// fans, newest first.
func (s *RegistryService) Readings(ctx context.Context, userID, fanID int64, limit int) ([]models.Reading, error) {
	if _, err := s.Get(ctx, userID, fanID); err != nil {
		return nil, err
	}
	return s.readings.ListRecent(ctx, fanID, limit)
}
