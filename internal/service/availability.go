package service

import (
	"context"
	"errors"
	"log/slog"

	"roadside-portal/internal/storage"
)

// AvailabilityService manages whether a technician is taking requests
type AvailabilityService struct {
	storage storage.TechnicianStorage
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(storage storage.TechnicianStorage) *AvailabilityService {
	return &AvailabilityService{storage: storage}
}

// Get returns the technician's availability. A technician who never went online is reported offline.
func (a *AvailabilityService) Get(ctx context.Context, technicianID string) (*storage.Availability, error) {
	availability, err := a.storage.GetAvailability(ctx, technicianID)
	if errors.Is(err, storage.ErrNotFound) {
		return &storage.Availability{TechnicianID: technicianID}, nil
	}
	return availability, err
}

// Toggle flips the technician between online and offline and returns the confirmation message
func (a *AvailabilityService) Toggle(ctx context.Context, technicianID string) (*storage.Availability, string, error) {
	current, err := a.Get(ctx, technicianID)
	if err != nil {
		return nil, "", err
	}

	updated, err := a.storage.SetActive(ctx, technicianID, !current.IsActive)
	if err != nil {
		return nil, "", err
	}

	slog.Info("Technician availability changed", "technician_id", technicianID, "is_active", updated.IsActive)

	if updated.IsActive {
		return updated, "You're now online!", nil
	}
	return updated, "You're now offline", nil
}

// UpdateLocation records the technician's current position
func (a *AvailabilityService) UpdateLocation(ctx context.Context, technicianID string, lat, lng float64) (*storage.Availability, error) {
	return a.storage.UpdateLocation(ctx, technicianID, lat, lng)
}
