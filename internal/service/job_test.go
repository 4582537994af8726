package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"roadside-portal/internal/feed"
	"roadside-portal/internal/lifecycle"
	"roadside-portal/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher captures published events for assertions
type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, event feed.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Events() []feed.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]feed.Event(nil), r.events...)
}

func newTestJobService() (*JobService, *storage.MemoryJobStorage, *recordingPublisher) {
	jobStorage := storage.NewMemoryJobStorage()
	publisher := &recordingPublisher{}
	return NewJobService(jobStorage, publisher), jobStorage, publisher
}

// cancellingStorage cancels the caller's context as soon as a write commits
type cancellingStorage struct {
	*storage.MemoryJobStorage
	cancel context.CancelFunc
}

func (c *cancellingStorage) AcceptJob(ctx context.Context, jobID, technicianID string) error {
	err := c.MemoryJobStorage.AcceptJob(ctx, jobID, technicianID)
	c.cancel()
	return err
}

func (c *cancellingStorage) UpdateJobStatus(ctx context.Context, jobID, technicianID string, from, to lifecycle.Status) error {
	err := c.MemoryJobStorage.UpdateJobStatus(ctx, jobID, technicianID, from, to)
	c.cancel()
	return err
}

func towingRequest() CreateJobRequest {
	return CreateJobRequest{
		CustomerID:        "cust-1",
		CustomerName:      "Priya Nair",
		ServiceType:       "towing",
		CustomerLat:       12.9352,
		CustomerLng:       77.6245,
		EstimatedDistance: floatPtr(4),
	}
}

func TestJobService_CreateJob(t *testing.T) {
	jobService, jobStorage, publisher := newTestJobService()
	ctx := context.Background()

	job, err := jobService.CreateJob(ctx, towingRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, lifecycle.StatusPending, job.Status)
	assert.Nil(t, job.AssignedTechnicianID)
	require.NotNil(t, job.EstimatedPrice)
	assert.Equal(t, 799.0+4*35, *job.EstimatedPrice)

	stored, err := jobStorage.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, stored.ID)

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, feed.EventInsert, events[0].Type)
	assert.Equal(t, job.ID, events[0].Job.ID)
}

func TestJobService_CreateJob_KeepsProvidedPrice(t *testing.T) {
	jobService, _, _ := newTestJobService()

	req := towingRequest()
	req.EstimatedPrice = floatPtr(1200)

	job, err := jobService.CreateJob(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, *job.EstimatedPrice)
}

func TestJobService_CreateJob_InvalidRequest(t *testing.T) {
	jobService, _, publisher := newTestJobService()
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(*CreateJobRequest)
	}{
		{"missing customer id", func(r *CreateJobRequest) { r.CustomerID = "" }},
		{"missing customer name", func(r *CreateJobRequest) { r.CustomerName = "" }},
		{"missing service type", func(r *CreateJobRequest) { r.ServiceType = "" }},
		{"unknown service type", func(r *CreateJobRequest) { r.ServiceType = "teleport" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := towingRequest()
			tt.modify(&req)

			_, err := jobService.CreateJob(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	assert.Empty(t, publisher.Events())
}

func TestJobService_AcceptJob(t *testing.T) {
	jobService, _, publisher := newTestJobService()
	ctx := context.Background()

	job, err := jobService.CreateJob(ctx, towingRequest())
	require.NoError(t, err)

	require.NoError(t, jobService.AcceptJob(ctx, job.ID, "tech-1"))

	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, feed.EventUpdate, events[1].Type)
	assert.Equal(t, lifecycle.StatusAccepted, events[1].Job.Status)
	assert.True(t, events[1].Job.AssignedTo("tech-1"))

	err = jobService.AcceptJob(ctx, job.ID, "tech-2")
	assert.ErrorIs(t, err, storage.ErrAlreadyTaken)
	assert.Len(t, publisher.Events(), 2, "a failed write must not be announced")
}

func TestJobService_UpdateJobStatus(t *testing.T) {
	jobService, _, publisher := newTestJobService()
	ctx := context.Background()

	job, err := jobService.CreateJob(ctx, towingRequest())
	require.NoError(t, err)
	require.NoError(t, jobService.AcceptJob(ctx, job.ID, "tech-1"))

	require.NoError(t, jobService.UpdateJobStatus(ctx, job.ID, "tech-1", lifecycle.StatusAccepted, lifecycle.StatusOnTheWay))

	events := publisher.Events()
	require.Len(t, events, 3)
	assert.Equal(t, lifecycle.StatusOnTheWay, events[2].Job.Status)

	// Replaying the same step finds the job already moved on
	err = jobService.UpdateJobStatus(ctx, job.ID, "tech-1", lifecycle.StatusAccepted, lifecycle.StatusOnTheWay)
	assert.ErrorIs(t, err, storage.ErrNotAssigned)

	err = jobService.UpdateJobStatus(ctx, job.ID, "tech-2", lifecycle.StatusOnTheWay, lifecycle.StatusArrived)
	assert.ErrorIs(t, err, storage.ErrNotAssigned)
	assert.Len(t, publisher.Events(), 3)
}

func TestJobService_AnnouncesAfterCallerCancels(t *testing.T) {
	memStorage := storage.NewMemoryJobStorage()
	publisher := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobService := NewJobService(&cancellingStorage{MemoryJobStorage: memStorage, cancel: cancel}, publisher)

	job, err := jobService.CreateJob(context.Background(), towingRequest())
	require.NoError(t, err)

	require.NoError(t, jobService.AcceptJob(ctx, job.ID, "tech-1"))
	require.Error(t, ctx.Err())

	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, feed.EventUpdate, events[1].Type)
	assert.Equal(t, lifecycle.StatusAccepted, events[1].Job.Status)

	statusCtx, statusCancel := context.WithCancel(context.Background())
	defer statusCancel()
	jobService = NewJobService(&cancellingStorage{MemoryJobStorage: memStorage, cancel: statusCancel}, publisher)

	require.NoError(t, jobService.UpdateJobStatus(statusCtx, job.ID, "tech-1", lifecycle.StatusAccepted, lifecycle.StatusOnTheWay))
	events = publisher.Events()
	require.Len(t, events, 3)
	assert.Equal(t, lifecycle.StatusOnTheWay, events[2].Job.Status)
}

func TestJobService_PublishFailureDoesNotFailWrite(t *testing.T) {
	jobService, jobStorage, publisher := newTestJobService()
	publisher.err = errors.New("stream unavailable")
	ctx := context.Background()

	job, err := jobService.CreateJob(ctx, towingRequest())
	require.NoError(t, err)
	require.NoError(t, jobService.AcceptJob(ctx, job.ID, "tech-1"))

	stored, err := jobStorage.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusAccepted, stored.Status)
}

func TestJobService_AppendJobUpdate(t *testing.T) {
	jobService, jobStorage, _ := newTestJobService()
	ctx := context.Background()

	update := &storage.JobUpdate{JobID: "job-1", TechnicianID: "tech-1", UpdateType: string(lifecycle.StatusArrived)}
	require.NoError(t, jobService.AppendJobUpdate(ctx, update))

	assert.NotEmpty(t, update.ID)
	assert.False(t, update.CreatedAt.IsZero())

	updates := jobStorage.JobUpdates("job-1")
	require.Len(t, updates, 1)
	assert.Equal(t, "arrived", updates[0].UpdateType)
}

func TestJobService_PendingJobCount(t *testing.T) {
	jobService, _, _ := newTestJobService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := jobService.CreateJob(ctx, towingRequest())
		require.NoError(t, err)
	}

	count, err := jobService.PendingJobCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
