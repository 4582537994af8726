package service

import (
	"context"
	"testing"

	"roadside-portal/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityService_Toggle(t *testing.T) {
	availability := NewAvailabilityService(storage.NewMemoryTechnicianStorage())
	ctx := context.Background()

	current, err := availability.Get(ctx, "tech-1")
	require.NoError(t, err)
	assert.False(t, current.IsActive, "unknown technicians start offline")

	updated, message, err := availability.Toggle(ctx, "tech-1")
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.Equal(t, "You're now online!", message)

	updated, message, err = availability.Toggle(ctx, "tech-1")
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "You're now offline", message)
}

func TestAvailabilityService_UpdateLocation(t *testing.T) {
	availability := NewAvailabilityService(storage.NewMemoryTechnicianStorage())
	ctx := context.Background()

	updated, err := availability.UpdateLocation(ctx, "tech-1", 12.97, 77.59)
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentLat)
	assert.Equal(t, 12.97, *updated.CurrentLat)
	assert.NotNil(t, updated.LastLocationUpdate)

	current, err := availability.Get(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, 77.59, *current.CurrentLng)
}
