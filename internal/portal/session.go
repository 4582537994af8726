package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"roadside-portal/internal/feed"
	"roadside-portal/internal/lifecycle"
	"roadside-portal/internal/storage"
)

const (
	maxNotifications = 50

	// maxLoadAttempts bounds how often a load restarts because events landed while it ran
	maxLoadAttempts = 3
)

// ErrNoJob is returned when an operation is given no job to act on
var ErrNoJob = errors.New("no job given")

// Backend is the authoritative job store as seen by a session
type Backend interface {
	ListPendingJobs(ctx context.Context) ([]*storage.Job, error)
	ListActiveJob(ctx context.Context, technicianID string) (*storage.Job, error)
	ListCompletedJobs(ctx context.Context, technicianID string) ([]*storage.Job, error)
	AcceptJob(ctx context.Context, jobID, technicianID string) error
	UpdateJobStatus(ctx context.Context, jobID, technicianID string, from, to lifecycle.Status) error
	AppendJobUpdate(ctx context.Context, update *storage.JobUpdate) error
}

// Coordinates is an optional position attached to a job update
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsConflict reports whether err is a lost conditional write
func IsConflict(err error) bool {
	return errors.Is(err, storage.ErrAlreadyTaken) || errors.Is(err, storage.ErrNotAssigned)
}

// Session holds one technician's views and keeps them in step with the change feed.
// Views change only through the initial load or confirmed change events.
type Session struct {
	technicianID string
	backend      Backend
	subscriber   feed.Subscriber

	mu            sync.Mutex
	views         Views
	loading       bool
	subscription  feed.Subscription
	notifications []Notification
	closed        bool
	// applied counts change events folded into views
	applied uint64
}

// NewSession creates a session for technicianID. Call Start to load and subscribe.
func NewSession(technicianID string, backend Backend, subscriber feed.Subscriber) *Session {
	return &Session{
		technicianID: technicianID,
		backend:      backend,
		subscriber:   subscriber,
		views:        EmptyViews(),
		loading:      true,
	}
}

// TechnicianID returns the identity the session was built for
func (s *Session) TechnicianID() string {
	return s.technicianID
}

// Start runs the initial load and subscribes to the change feed.
// The subscription lives until Close or until ctx is done.
func (s *Session) Start(ctx context.Context) error {
	s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("session %s: closed", s.technicianID)
	}
	if s.subscription != nil {
		return nil
	}

	sub, err := s.subscriber.Subscribe(ctx, s.apply)
	if err != nil {
		return fmt.Errorf("failed to subscribe to job changes: %w", err)
	}
	s.subscription = sub

	slog.Info("Portal session started", "technician_id", s.technicianID)
	return nil
}

// Refresh re-runs the initial load
func (s *Session) Refresh(ctx context.Context) {
	s.load(ctx)
}

// load issues the three view queries. Any failure leaves that view empty.
// If a change event is applied while the queries run, the snapshot may predate it and the load is repeated.
func (s *Session) load(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		seen := s.applied
		s.mu.Unlock()

		views := s.query(ctx)

		s.mu.Lock()
		if s.applied != seen && attempt < maxLoadAttempts {
			s.mu.Unlock()
			slog.Debug("Change event arrived during load, reloading", "technician_id", s.technicianID, "attempt", attempt)
			continue
		}
		if s.applied != seen {
			slog.Warn("Views loaded while change events kept arriving", "technician_id", s.technicianID, "attempts", attempt)
		}
		s.views = views
		s.loading = false
		s.mu.Unlock()
		return
	}
}

func (s *Session) query(ctx context.Context) Views {
	views := EmptyViews()

	if pending, err := s.backend.ListPendingJobs(ctx); err != nil {
		slog.Error("Failed to load pending jobs", "technician_id", s.technicianID, "error", err)
	} else {
		views.PendingJobs = pending
	}

	if active, err := s.backend.ListActiveJob(ctx, s.technicianID); err != nil {
		slog.Error("Failed to load active job", "technician_id", s.technicianID, "error", err)
	} else {
		views.ActiveJob = active
	}

	if history, err := s.backend.ListCompletedJobs(ctx, s.technicianID); err != nil {
		slog.Error("Failed to load job history", "technician_id", s.technicianID, "error", err)
	} else {
		views.JobHistory = history
	}

	if views.PendingJobs == nil {
		views.PendingJobs = []*storage.Job{}
	}
	if views.JobHistory == nil {
		views.JobHistory = []*storage.Job{}
	}
	return views.Clone()
}

// apply runs on the subscription's delivery goroutine
func (s *Session) apply(event feed.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	var notes []Notification
	s.views, notes = Reduce(s.views, s.technicianID, event)
	s.applied++
	s.pushLocked(notes...)
}

// Views returns a copy of the current views
func (s *Session) Views() Views {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views.Clone()
}

// Loading reports whether the initial load has not finished yet
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Reject hides a pending job from this technician only. The store is not touched.
func (s *Session) Reject(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, at := removeJob(s.views.PendingJobs, jobID)
	if at < 0 {
		return
	}
	s.views.PendingJobs = pending
	s.pushLocked(Notification{Kind: KindInfo, Title: "Job skipped"})
}

// Accept claims a pending job. Losing the race returns storage.ErrAlreadyTaken.
func (s *Session) Accept(ctx context.Context, jobID string) error {
	if err := s.backend.AcceptJob(ctx, jobID, s.technicianID); err != nil {
		slog.Warn("Failed to accept job", "job_id", jobID, "technician_id", s.technicianID, "error", err)
		description := "Please try again"
		if IsConflict(err) {
			description = "This job was already taken by another technician"
		}
		s.notify(Notification{Kind: KindError, Title: "Failed to accept job", Description: description})
		return err
	}

	s.appendUpdate(ctx, &storage.JobUpdate{
		JobID:        jobID,
		TechnicianID: s.technicianID,
		UpdateType:   string(lifecycle.StatusAccepted),
	})

	slog.Info("Job accepted", "job_id", jobID, "technician_id", s.technicianID)
	s.notify(Notification{Kind: KindSuccess, Title: lifecycle.Message(lifecycle.StatusAccepted)})
	return nil
}

// Advance moves the job to target, which must be the next step after the job's current status.
// The active view follows once the change event arrives.
func (s *Session) Advance(ctx context.Context, job *storage.Job, target lifecycle.Status, coords *Coordinates) error {
	if job == nil {
		return ErrNoJob
	}
	if err := lifecycle.ValidateTransition(job.Status, target); err != nil {
		return err
	}

	if err := s.backend.UpdateJobStatus(ctx, job.ID, s.technicianID, job.Status, target); err != nil {
		slog.Warn("Failed to update job status", "job_id", job.ID, "technician_id", s.technicianID, "status", target, "error", err)
		s.notify(Notification{Kind: KindError, Title: "Failed to update status", Description: "Please try again"})
		return err
	}

	update := &storage.JobUpdate{
		JobID:        job.ID,
		TechnicianID: s.technicianID,
		UpdateType:   string(target),
	}
	if coords != nil {
		update.LocationLat = &coords.Lat
		update.LocationLng = &coords.Lng
	}
	s.appendUpdate(ctx, update)

	slog.Info("Job status updated", "job_id", job.ID, "technician_id", s.technicianID, "from", job.Status, "to", target)
	s.notify(Notification{Kind: KindSuccess, Title: lifecycle.Message(target)})
	return nil
}

// UpdateLocation records a location ping against the job. Failures are logged only.
func (s *Session) UpdateLocation(ctx context.Context, jobID string, lat, lng float64) {
	s.appendUpdate(ctx, &storage.JobUpdate{
		JobID:        jobID,
		TechnicianID: s.technicianID,
		UpdateType:   lifecycle.UpdateTypeLocation,
		LocationLat:  &lat,
		LocationLng:  &lng,
	})
}

// appendUpdate is best effort and never fails the calling operation
func (s *Session) appendUpdate(ctx context.Context, update *storage.JobUpdate) {
	if err := s.backend.AppendJobUpdate(ctx, update); err != nil {
		slog.Error("Failed to append job update",
			"job_id", update.JobID,
			"technician_id", s.technicianID,
			"update_type", update.UpdateType,
			"error", err)
	}
}

// Notifications drains the pending notifications, oldest first
func (s *Session) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.notifications
	s.notifications = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

func (s *Session) notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLocked(n)
}

func (s *Session) pushLocked(notes ...Notification) {
	s.notifications = append(s.notifications, notes...)
	if over := len(s.notifications) - maxNotifications; over > 0 {
		s.notifications = append([]Notification(nil), s.notifications[over:]...)
	}
}

// Close tears down the change feed subscription. No event is applied after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.subscription
	s.subscription = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	slog.Info("Portal session closed", "technician_id", s.technicianID)
}
