package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"roadside-portal/internal/feed"
	"roadside-portal/internal/lifecycle"
	"roadside-portal/internal/storage"

	"github.com/google/uuid"
)

// ErrInvalidRequest is returned when a new request is missing required fields
var ErrInvalidRequest = errors.New("invalid job request")

// JobService is the authoritative job store as seen by portal sessions.
// Every confirmed write is announced on the change feed with the full new record.
type JobService struct {
	storage   storage.JobStorage
	publisher feed.Publisher
	pricing   *PricingConfig
	now       func() time.Time
}

// NewJobService creates a new job service instance
func NewJobService(storage storage.JobStorage, publisher feed.Publisher) *JobService {
	return &JobService{
		storage:   storage,
		publisher: publisher,
		pricing:   DefaultPricingConfig(),
		now:       time.Now,
	}
}

// CreateJobRequest is a customer's roadside assistance request
type CreateJobRequest struct {
	CustomerID        string   `json:"customer_id"`
	CustomerName      string   `json:"customer_name"`
	CustomerPhone     *string  `json:"customer_phone,omitempty"`
	ServiceType       string   `json:"service_type"`
	VehicleType       *string  `json:"vehicle_type,omitempty"`
	CustomerLat       float64  `json:"customer_lat"`
	CustomerLng       float64  `json:"customer_lng"`
	CustomerAddress   *string  `json:"customer_address,omitempty"`
	EstimatedDistance *float64 `json:"estimated_distance,omitempty"`
	EstimatedPrice    *float64 `json:"estimated_price,omitempty"`
	Notes             *string  `json:"notes,omitempty"`
}

// CreateJob stores a new pending request and announces the insert
func (j *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (*storage.Job, error) {
	if req.CustomerID == "" || req.CustomerName == "" || req.ServiceType == "" {
		return nil, fmt.Errorf("%w: customer_id, customer_name and service_type are required", ErrInvalidRequest)
	}
	if _, ok := j.pricing.ServiceRates[req.ServiceType]; !ok {
		return nil, fmt.Errorf("%w: unknown service type %q", ErrInvalidRequest, req.ServiceType)
	}

	job := &storage.Job{
		ID:                uuid.NewString(),
		CustomerID:        req.CustomerID,
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		ServiceType:       req.ServiceType,
		VehicleType:       req.VehicleType,
		CustomerLat:       req.CustomerLat,
		CustomerLng:       req.CustomerLng,
		CustomerAddress:   req.CustomerAddress,
		Status:            lifecycle.StatusPending,
		EstimatedDistance: req.EstimatedDistance,
		EstimatedPrice:    req.EstimatedPrice,
		Notes:             req.Notes,
		CreatedAt:         j.now(),
	}

	if job.EstimatedPrice == nil {
		j.pricing.EstimatePrice(job)
	}

	if err := j.storage.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	j.announce(ctx, feed.EventInsert, job.ID)

	slog.Info("Job request created", "job_id", job.ID, "service_type", job.ServiceType, "customer_id", job.CustomerID)
	return job, nil
}

// GetJob retrieves a job by ID
func (j *JobService) GetJob(ctx context.Context, jobID string) (*storage.Job, error) {
	return j.storage.GetJob(ctx, jobID)
}

// ListPendingJobs returns open requests, newest first
func (j *JobService) ListPendingJobs(ctx context.Context) ([]*storage.Job, error) {
	return j.storage.ListPendingJobs(ctx)
}

// ListActiveJob returns the technician's in-flight job, or nil
func (j *JobService) ListActiveJob(ctx context.Context, technicianID string) (*storage.Job, error) {
	return j.storage.ListActiveJob(ctx, technicianID)
}

// ListCompletedJobs returns the technician's finished jobs, newest completion first
func (j *JobService) ListCompletedJobs(ctx context.Context, technicianID string) ([]*storage.Job, error) {
	return j.storage.ListCompletedJobs(ctx, technicianID)
}

// AcceptJob assigns a pending job to the technician. The first writer wins; later callers get storage.ErrAlreadyTaken.
func (j *JobService) AcceptJob(ctx context.Context, jobID, technicianID string) error {
	if err := j.storage.AcceptJob(ctx, jobID, technicianID); err != nil {
		return err
	}

	j.announce(ctx, feed.EventUpdate, jobID)
	return nil
}

// UpdateJobStatus moves the technician's job one step along its lifecycle
func (j *JobService) UpdateJobStatus(ctx context.Context, jobID, technicianID string, from, to lifecycle.Status) error {
	if err := j.storage.UpdateJobStatus(ctx, jobID, technicianID, from, to); err != nil {
		return err
	}

	j.announce(ctx, feed.EventUpdate, jobID)
	return nil
}

// AppendJobUpdate records an audit entry for a job
func (j *JobService) AppendJobUpdate(ctx context.Context, update *storage.JobUpdate) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = j.now()
	}
	return j.storage.AppendJobUpdate(ctx, update)
}

// PendingJobCount returns the number of open requests
func (j *JobService) PendingJobCount(ctx context.Context) (int, error) {
	jobs, err := j.storage.ListPendingJobs(ctx)
	if err != nil {
		return 0, err
	}
	return len(jobs), nil
}

// announce re-reads the stored record and publishes it. The write is already confirmed, so failures are only logged.
// The caller's cancellation is dropped: a client that goes away after the write must not cost other sessions the event.
func (j *JobService) announce(ctx context.Context, eventType feed.EventType, jobID string) {
	if j.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	job, err := j.storage.GetJob(ctx, jobID)
	if err != nil {
		slog.Error("Failed to load job for change event", "job_id", jobID, "event_type", eventType, "error", err)
		return
	}

	event := feed.Event{Type: eventType, Job: job, Timestamp: j.now().UTC()}
	if err := j.publisher.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish change event", "job_id", jobID, "event_type", eventType, "error", err)
	}
}

// calculateDistance calculates the distance between two points using Haversine formula
func calculateDistance(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371 // Earth's radius in kilometers

	lat1Rad := lat1 * math.Pi / 180
	lng1Rad := lng1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lng2Rad := lng2 * math.Pi / 180

	dlat := lat2Rad - lat1Rad
	dlng := lng2Rad - lng1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dlng/2)*math.Sin(dlng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
