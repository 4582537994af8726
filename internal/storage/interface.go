package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"roadside-portal/internal/lifecycle"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyTaken means the conditional accept matched no pending job
	ErrAlreadyTaken = errors.New("job already taken")

	// ErrNotAssigned means the conditional status write matched no job held by the technician
	ErrNotAssigned = errors.New("job not assigned to technician")
)

// Job represents a roadside assistance request
type Job struct {
	ID                   string           `json:"id" dynamodbav:"id"`
	CustomerID           string           `json:"customer_id" dynamodbav:"customer_id"`
	CustomerName         string           `json:"customer_name" dynamodbav:"customer_name"`
	CustomerPhone        *string          `json:"customer_phone,omitempty" dynamodbav:"customer_phone,omitempty"`
	ServiceType          string           `json:"service_type" dynamodbav:"service_type"`
	VehicleType          *string          `json:"vehicle_type,omitempty" dynamodbav:"vehicle_type,omitempty"`
	CustomerLat          float64          `json:"customer_lat" dynamodbav:"customer_lat"`
	CustomerLng          float64          `json:"customer_lng" dynamodbav:"customer_lng"`
	CustomerAddress      *string          `json:"customer_address,omitempty" dynamodbav:"customer_address,omitempty"`
	AssignedTechnicianID *string          `json:"assigned_technician_id,omitempty" dynamodbav:"assigned_technician_id,omitempty"`
	Status               lifecycle.Status `json:"status" dynamodbav:"status"`
	EstimatedDistance    *float64         `json:"estimated_distance,omitempty" dynamodbav:"estimated_distance,omitempty"`
	EstimatedPrice       *float64         `json:"estimated_price,omitempty" dynamodbav:"estimated_price,omitempty"`
	FinalPrice           *float64         `json:"final_price,omitempty" dynamodbav:"final_price,omitempty"`
	Notes                *string          `json:"notes,omitempty" dynamodbav:"notes,omitempty"`
	CreatedAt            time.Time        `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" dynamodbav:"updated_at"`
	AcceptedAt           *time.Time       `json:"accepted_at,omitempty" dynamodbav:"accepted_at,omitempty"`
	CompletedAt          *time.Time       `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
}

// IsPending reports whether the job is open for acceptance
func (j *Job) IsPending() bool {
	return j.AssignedTechnicianID == nil && lifecycle.IsPending(j.Status)
}

// AssignedTo reports whether the job is held by technicianID
func (j *Job) AssignedTo(technicianID string) bool {
	return j.AssignedTechnicianID != nil && *j.AssignedTechnicianID == technicianID
}

// EarnedAmount is the final price, falling back to the estimate, falling back to zero
func (j *Job) EarnedAmount() float64 {
	if j.FinalPrice != nil {
		return *j.FinalPrice
	}
	if j.EstimatedPrice != nil {
		return *j.EstimatedPrice
	}
	return 0
}

// Clone returns a deep copy so callers can hold a job without sharing pointers with the store
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.CustomerPhone = cloneString(j.CustomerPhone)
	c.VehicleType = cloneString(j.VehicleType)
	c.CustomerAddress = cloneString(j.CustomerAddress)
	c.AssignedTechnicianID = cloneString(j.AssignedTechnicianID)
	c.Notes = cloneString(j.Notes)
	c.EstimatedDistance = cloneFloat(j.EstimatedDistance)
	c.EstimatedPrice = cloneFloat(j.EstimatedPrice)
	c.FinalPrice = cloneFloat(j.FinalPrice)
	c.AcceptedAt = cloneTime(j.AcceptedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	return &c
}

// JobUpdate is an append-only audit record of a transition or location ping
type JobUpdate struct {
	ID           string    `json:"id" dynamodbav:"id"`
	JobID        string    `json:"job_id" dynamodbav:"job_id"`
	TechnicianID string    `json:"technician_id" dynamodbav:"technician_id"`
	UpdateType   string    `json:"update_type" dynamodbav:"update_type"`
	LocationLat  *float64  `json:"location_lat,omitempty" dynamodbav:"location_lat,omitempty"`
	LocationLng  *float64  `json:"location_lng,omitempty" dynamodbav:"location_lng,omitempty"`
	Note         *string   `json:"note,omitempty" dynamodbav:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
}

// JobStorage defines the authoritative job store operations
type JobStorage interface {
	// CreateJob adds a new job
	CreateJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListPendingJobs returns open jobs, newest created first
	ListPendingJobs(ctx context.Context) ([]*Job, error)

	// ListActiveJob returns the technician's most recently updated in-flight job, or nil
	ListActiveJob(ctx context.Context, technicianID string) (*Job, error)

	// ListCompletedJobs returns the technician's completed jobs, newest completion first
	ListCompletedJobs(ctx context.Context, technicianID string) ([]*Job, error)

	// AcceptJob assigns a pending job. Returns ErrAlreadyTaken when the job is no longer pending.
	AcceptJob(ctx context.Context, jobID, technicianID string) error

	// UpdateJobStatus moves a job held by technicianID from one status to the next.
	// Returns ErrNotAssigned when the job is not held by the technician in status from.
	UpdateJobStatus(ctx context.Context, jobID, technicianID string, from, to lifecycle.Status) error

	// AppendJobUpdate records a job update
	AppendJobUpdate(ctx context.Context, update *JobUpdate) error
}

// Availability is a technician's online state and last known position
type Availability struct {
	TechnicianID       string     `json:"technician_id" dynamodbav:"technician_id"`
	IsActive           bool       `json:"is_active" dynamodbav:"is_active"`
	CurrentLat         *float64   `json:"current_lat,omitempty" dynamodbav:"current_lat,omitempty"`
	CurrentLng         *float64   `json:"current_lng,omitempty" dynamodbav:"current_lng,omitempty"`
	LastLocationUpdate *time.Time `json:"last_location_update,omitempty" dynamodbav:"last_location_update,omitempty"`
	LastStatusChange   time.Time  `json:"last_status_change" dynamodbav:"last_status_change"`
}

// TechnicianStorage defines operations on technician availability
type TechnicianStorage interface {
	// GetAvailability returns the technician's availability, ErrNotFound if never set
	GetAvailability(ctx context.Context, technicianID string) (*Availability, error)

	// SetActive records an online/offline change
	SetActive(ctx context.Context, technicianID string, active bool) (*Availability, error)

	// UpdateLocation records the technician's current position
	UpdateLocation(ctx context.Context, technicianID string, lat, lng float64) (*Availability, error)
}

func sortByCreatedDesc(jobs []*Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
}

func sortByUpdatedDesc(jobs []*Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		return jobs[a].UpdatedAt.After(jobs[b].UpdatedAt)
	})
}

func sortByCompletedDesc(jobs []*Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		return completedAt(jobs[a]).After(completedAt(jobs[b]))
	})
}

func completedAt(j *Job) time.Time {
	if j.CompletedAt == nil {
		return time.Time{}
	}
	return *j.CompletedAt
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
