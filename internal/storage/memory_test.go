package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roadside-portal/internal/lifecycle"
)

func newTestJob(id string, created time.Time) *Job {
	price := 499.0
	return &Job{
		ID:             id,
		CustomerID:     "customer-" + id,
		CustomerName:   "Customer " + id,
		ServiceType:    "battery",
		CustomerLat:    12.9716,
		CustomerLng:    77.5946,
		EstimatedPrice: &price,
		CreatedAt:      created,
	}
}

func TestMemoryJobStorage_CreateJob(t *testing.T) {
	storage := NewMemoryJobStorage()
	ctx := context.Background()

	job := newTestJob("job-1", time.Time{})

	err := storage.CreateJob(ctx, job)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	created, _ := storage.GetJob(ctx, "job-1")
	if created.Status != lifecycle.StatusPending {
		t.Errorf("Expected status 'pending', got '%s'", created.Status)
	}
	if created.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	// Try to create the same job again - should fail
	err = storage.CreateJob(ctx, job)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("Expected ErrAlreadyExists, got %v", err)
	}
}

func TestMemoryJobStorage_GetJob(t *testing.T) {
	storage := NewMemoryJobStorage()
	ctx := context.Background()

	storage.CreateJob(ctx, newTestJob("job-1", time.Now()))

	retrieved, err := storage.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if retrieved.ServiceType != "battery" {
		t.Errorf("Expected service type 'battery', got %s", retrieved.ServiceType)
	}

	// Mutating the returned copy must not reach the store
	retrieved.ServiceType = "towing"
	again, _ := storage.GetJob(ctx, "job-1")
	if again.ServiceType != "battery" {
		t.Errorf("Expected stored job to be unchanged, got %s", again.ServiceType)
	}

	_, err = storage.GetJob(ctx, "non-existent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryJobStorage_ListPendingJobs(t *testing.T) {
	storage := NewMemoryJobStorage()
	ctx := context.Background()
	base := time.Now()

	storage.CreateJob(ctx, newTestJob("old", base.Add(-2*time.Minute)))
	storage.CreateJob(ctx, newTestJob("new", base))
	storage.CreateJob(ctx, newTestJob("mid", base.Add(-time.Minute)))
	storage.CreateJob(ctx, newTestJob("taken", base.Add(time.Minute)))
	storage.AcceptJob(ctx, "taken", "tech-1")

	pending, err := storage.ListPendingJobs(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := []string{"new", "mid", "old"}
	if len(pending) != len(want) {
		t.Fatalf("Expected %d pending jobs, got %d", len(want), len(pending))
	}
	for i, id := range want {
		if pending[i].ID != id {
			t.Errorf("Expected pending[%d] to be %s, got %s", i, id, pending[i].ID)
		}
	}
}

func TestMemoryJobStorage_ListPendingJobs_Empty(t *testing.T) {
	storage := NewMemoryJobStorage()

	pending, err := storage.ListPendingJobs(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pending == nil || len(pending) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", pending)
	}
}

func TestMemoryJobStorage_AcceptJob(t *testing.T) {
	storage := NewMemoryJobStorage()
	ctx := context.Background()

	storage.CreateJob(ctx, newTestJob("job-1", time.Now()))

	if err := storage.AcceptJob(ctx, "job-1", "tech-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	job, _ := storage.GetJob(ctx, "job-1")
	if job.Status != lifecycle.StatusAccepted {
		t.Errorf("Expected status 'accepted', got '%s'", job.Status)
	}
	if !job.AssignedTo("tech-1") {
		t.Errorf("Expected job assigned to tech-1, got %v", job.AssignedTechnicianID)
	}
	if job.AcceptedAt == nil {
		t.Error("Expected AcceptedAt to be set")
	}

	err := storage.AcceptJob(ctx, "job-1", "tech-2")
	if !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("Expected ErrAlreadyTaken, got %v", err)
	}

	job, _ = storage.GetJob(ctx, "job-1")
	if !job.AssignedTo("tech-1") {
		t.Error("Expected losing accept to leave the assignment untouched")
	}
}

func TestMemoryJobStorage_AcceptJob_Race(t *testing.T) {
	storage := NewMemoryJobStorage()
	ctx := context.Background()
	storage.CreateJob(ctx, newTestJob("job-1", time.Now()))

	technicians := []string{"tech-1", "tech-2", "tech-3", "tech-4", "tech-5", "tech-6", "tech-7", "tech-8"}
	results := make([]error, len(technicians))

	var wg sync.WaitGroup
	for i, tech := range technicians {
		wg.Add(1)
		go func(i int, tech string) {
			defer wg.Done()
			results[i] = storage.AcceptJob(ctx, "job-1", tech)
		}(i, tech)
	}
	wg.Wait()

	winners := 0
	var winner string
	for i, err := range results {
		switch {
		case err == nil:
			winners++
			winner = technicians[i]
		case !errors.Is(err, ErrAlreadyTaken):
			t.Errorf("Expected ErrAlreadyTaken for loser, got %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("Expected exactly one winner, got %d", winners)
	}

	job, _ := storage.GetJob(ctx, "job-1")
	if !job.AssignedTo(winner) {
		t.Errorf("Expected job assigned to %s, got %v", winner, job.AssignedTechnicianID)
	}
}

func TestMemoryJobStorage_UpdateJobStatus(t *testing.T) {
	storage := NewMemoryJobStorage()
	ctx := context.Background()

	storage.CreateJob(ctx, newTestJob("job-1", time.Now()))
	storage.AcceptJob(ctx, "job-1", "tech-1")

	// Wrong technician
	err := storage.UpdateJobStatus(ctx, "job-1", "tech-2", lifecycle.StatusAccepted, lifecycle.StatusOnTheWay)
	if !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("Expected ErrNotAssigned, got %v", err)
	}

	steps := []lifecycle.Status{lifecycle.StatusOnTheWay, lifecycle.StatusArrived, lifecycle.StatusInProgress, lifecycle.StatusCompleted}
	from := lifecycle.StatusAccepted
	for _, to := range steps {
		if err := storage.UpdateJobStatus(ctx, "job-1", "tech-1", from, to); err != nil {
			t.Fatalf("Expected no error moving to %s, got %v", to, err)
		}
		from = to
	}

	completed, _ := storage.GetJob(ctx, "job-1")
	if completed.Status != lifecycle.StatusCompleted {
		t.Errorf("Expected status 'completed', got '%s'", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}

	// Replaying the last step no longer matches
	err = storage.UpdateJobStatus(ctx, "job-1", "tech-1", lifecycle.StatusInProgress, lifecycle.StatusCompleted)
	if !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("Expected ErrNotAssigned on replay, got %v", err)
	}
}

func TestMemoryJobStorage_ListActiveAndCompleted(t *testing.T) {
	storage := NewMemoryJobStorage()
	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	storage.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for _, id := range []string{"a", "b", "c", "d"} {
		storage.CreateJob(ctx, newTestJob(id, time.Time{}))
	}

	storage.AcceptJob(ctx, "a", "tech-1")
	storage.UpdateJobStatus(ctx, "a", "tech-1", lifecycle.StatusAccepted, lifecycle.StatusOnTheWay)
	storage.AcceptJob(ctx, "b", "tech-1")
	storage.UpdateJobStatus(ctx, "b", "tech-1", lifecycle.StatusAccepted, lifecycle.StatusOnTheWay)
	storage.UpdateJobStatus(ctx, "b", "tech-1", lifecycle.StatusOnTheWay, lifecycle.StatusArrived)
	storage.UpdateJobStatus(ctx, "b", "tech-1", lifecycle.StatusArrived, lifecycle.StatusInProgress)
	storage.UpdateJobStatus(ctx, "b", "tech-1", lifecycle.StatusInProgress, lifecycle.StatusCompleted)
	storage.AcceptJob(ctx, "c", "tech-2")

	active, err := storage.ListActiveJob(ctx, "tech-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if active == nil || active.ID != "a" {
		t.Fatalf("Expected active job a, got %v", active)
	}

	none, err := storage.ListActiveJob(ctx, "tech-3")
	if err != nil || none != nil {
		t.Fatalf("Expected no active job, got %v, %v", none, err)
	}

	completed, err := storage.ListCompletedJobs(ctx, "tech-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "b" {
		t.Fatalf("Expected completed [b], got %v", completed)
	}

	other, _ := storage.ListCompletedJobs(ctx, "tech-2")
	if len(other) != 0 {
		t.Errorf("Expected no completed jobs for tech-2, got %d", len(other))
	}
}

func TestMemoryJobStorage_AppendJobUpdate(t *testing.T) {
	storage := NewMemoryJobStorage()
	ctx := context.Background()

	lat, lng := 12.97, 77.59
	storage.AppendJobUpdate(ctx, &JobUpdate{ID: "u1", JobID: "job-1", TechnicianID: "tech-1", UpdateType: "accepted"})
	storage.AppendJobUpdate(ctx, &JobUpdate{ID: "u2", JobID: "job-1", TechnicianID: "tech-1", UpdateType: lifecycle.UpdateTypeLocation, LocationLat: &lat, LocationLng: &lng})
	storage.AppendJobUpdate(ctx, &JobUpdate{ID: "u3", JobID: "job-2", TechnicianID: "tech-1", UpdateType: "accepted"})

	updates := storage.JobUpdates("job-1")
	if len(updates) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(updates))
	}
	if updates[1].UpdateType != lifecycle.UpdateTypeLocation || *updates[1].LocationLat != lat {
		t.Errorf("Expected location update, got %+v", updates[1])
	}
	if updates[0].CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestMemoryTechnicianStorage(t *testing.T) {
	storage := NewMemoryTechnicianStorage()
	ctx := context.Background()

	_, err := storage.GetAvailability(ctx, "tech-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	a, err := storage.SetActive(ctx, "tech-1", true)
	if err != nil || !a.IsActive {
		t.Fatalf("Expected active availability, got %+v, %v", a, err)
	}

	a, err = storage.UpdateLocation(ctx, "tech-1", 12.9, 77.6)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if a.CurrentLat == nil || *a.CurrentLat != 12.9 || a.LastLocationUpdate == nil {
		t.Errorf("Expected location to be recorded, got %+v", a)
	}
	if !a.IsActive {
		t.Error("Expected location update to keep the active flag")
	}

	got, _ := storage.GetAvailability(ctx, "tech-1")
	if !got.IsActive || *got.CurrentLng != 77.6 {
		t.Errorf("Unexpected availability %+v", got)
	}
}
