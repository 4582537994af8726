package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roadside-portal/internal/lifecycle"
)

// MemoryJobStorage implements JobStorage using in-memory maps
type MemoryJobStorage struct {
	jobs    map[string]*Job
	updates []*JobUpdate
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryJobStorage creates a new in-memory storage instance
func NewMemoryJobStorage() *MemoryJobStorage {
	return &MemoryJobStorage{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

func (m *MemoryJobStorage) CreateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
	}

	now := m.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.Status = lifecycle.Normalize(job.Status)
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MemoryJobStorage) GetJob(ctx context.Context, jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}

	return job.Clone(), nil
}

func (m *MemoryJobStorage) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Job{}
	for _, job := range m.jobs {
		if job.IsPending() {
			result = append(result, job.Clone())
		}
	}

	sortByCreatedDesc(result)
	return result, nil
}

func (m *MemoryJobStorage) ListActiveJob(ctx context.Context, technicianID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*Job
	for _, job := range m.jobs {
		if job.AssignedTo(technicianID) && lifecycle.IsActive(job.Status) {
			active = append(active, job)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	sortByUpdatedDesc(active)
	return active[0].Clone(), nil
}

func (m *MemoryJobStorage) ListCompletedJobs(ctx context.Context, technicianID string) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Job{}
	for _, job := range m.jobs {
		if job.AssignedTo(technicianID) && job.Status == lifecycle.StatusCompleted {
			result = append(result, job.Clone())
		}
	}

	sortByCompletedDesc(result)
	return result, nil
}

func (m *MemoryJobStorage) AcceptJob(ctx context.Context, jobID, technicianID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || !job.IsPending() {
		return fmt.Errorf("job %s: %w", jobID, ErrAlreadyTaken)
	}

	now := m.now()
	tech := technicianID
	job.AssignedTechnicianID = &tech
	job.Status = lifecycle.StatusAccepted
	job.AcceptedAt = &now
	job.UpdatedAt = now
	return nil
}

func (m *MemoryJobStorage) UpdateJobStatus(ctx context.Context, jobID, technicianID string, from, to lifecycle.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || !job.AssignedTo(technicianID) || job.Status != from {
		return fmt.Errorf("job %s: %w", jobID, ErrNotAssigned)
	}

	now := m.now()
	job.Status = to
	job.UpdatedAt = now
	if to == lifecycle.StatusCompleted {
		job.CompletedAt = &now
	}

	return nil
}

func (m *MemoryJobStorage) AppendJobUpdate(ctx context.Context, update *JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if update.CreatedAt.IsZero() {
		update.CreatedAt = m.now()
	}
	u := *update
	m.updates = append(m.updates, &u)
	return nil
}

// JobUpdates returns the recorded updates for a job in append order
func (m *MemoryJobStorage) JobUpdates(jobID string) []*JobUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*JobUpdate
	for _, u := range m.updates {
		if u.JobID == jobID {
			c := *u
			result = append(result, &c)
		}
	}
	return result
}

// MemoryTechnicianStorage implements TechnicianStorage using an in-memory map
type MemoryTechnicianStorage struct {
	availability map[string]*Availability
	mu           sync.RWMutex
	now          func() time.Time
}

// NewMemoryTechnicianStorage creates a new in-memory technician storage
func NewMemoryTechnicianStorage() *MemoryTechnicianStorage {
	return &MemoryTechnicianStorage{
		availability: make(map[string]*Availability),
		now:          time.Now,
	}
}

func (m *MemoryTechnicianStorage) GetAvailability(ctx context.Context, technicianID string) (*Availability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, exists := m.availability[technicianID]
	if !exists {
		return nil, fmt.Errorf("availability for %s: %w", technicianID, ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (m *MemoryTechnicianStorage) SetActive(ctx context.Context, technicianID string, active bool) (*Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.getOrCreate(technicianID)
	a.IsActive = active
	a.LastStatusChange = m.now()
	c := *a
	return &c, nil
}

func (m *MemoryTechnicianStorage) UpdateLocation(ctx context.Context, technicianID string, lat, lng float64) (*Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.getOrCreate(technicianID)
	now := m.now()
	a.CurrentLat = &lat
	a.CurrentLng = &lng
	a.LastLocationUpdate = &now
	c := *a
	return &c, nil
}

func (m *MemoryTechnicianStorage) getOrCreate(technicianID string) *Availability {
	a, exists := m.availability[technicianID]
	if !exists {
		a = &Availability{TechnicianID: technicianID, LastStatusChange: m.now()}
		m.availability[technicianID] = a
	}
	return a
}
