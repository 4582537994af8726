package portal

import (
	"strconv"

	"roadside-portal/internal/feed"
	"roadside-portal/internal/lifecycle"
	"roadside-portal/internal/storage"
)

// Views are the three disjoint views a technician's dashboard renders
type Views struct {
	PendingJobs []*storage.Job `json:"pending_jobs"`
	ActiveJob   *storage.Job   `json:"active_job"`
	JobHistory  []*storage.Job `json:"job_history"`
}

// EmptyViews returns views with non-nil empty lists
func EmptyViews() Views {
	return Views{PendingJobs: []*storage.Job{}, JobHistory: []*storage.Job{}}
}

// Clone returns a deep copy of the views
func (v Views) Clone() Views {
	return Views{
		PendingJobs: cloneJobs(v.PendingJobs),
		ActiveJob:   v.ActiveJob.Clone(),
		JobHistory:  cloneJobs(v.JobHistory),
	}
}

// Kind classifies a notification for presentation
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a transient user-visible message
type Notification struct {
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Reduce applies one change event to the views of technicianID.
// The input views are not modified. Elements the event does not touch keep their relative order.
func Reduce(views Views, technicianID string, event feed.Event) (Views, []Notification) {
	next := Views{
		PendingJobs: append([]*storage.Job{}, views.PendingJobs...),
		ActiveJob:   views.ActiveJob,
		JobHistory:  append([]*storage.Job{}, views.JobHistory...),
	}
	if event.Job == nil {
		return next, nil
	}
	job := event.Job.Clone()

	switch event.Type {
	case feed.EventInsert:
		return reduceInsert(next, job)
	case feed.EventUpdate:
		return reduceUpdate(next, technicianID, job)
	}
	return next, nil
}

func reduceInsert(views Views, job *storage.Job) (Views, []Notification) {
	if !lifecycle.IsPending(job.Status) {
		return views, nil
	}

	pending, _ := removeJob(views.PendingJobs, job.ID)
	views.PendingJobs = prepend(pending, job)

	return views, []Notification{{
		Kind:        KindInfo,
		Title:       "New job request!",
		Description: job.ServiceType + " - " + job.CustomerName,
	}}
}

func reduceUpdate(views Views, technicianID string, job *storage.Job) (Views, []Notification) {
	pending, at := removeJob(views.PendingJobs, job.ID)
	if lifecycle.IsPending(job.Status) {
		if at >= 0 {
			pending = insertAt(pending, at, job)
		} else {
			pending = prepend(pending, job)
		}
	}
	views.PendingJobs = pending

	if !job.AssignedTo(technicianID) {
		return views, nil
	}

	switch {
	case lifecycle.IsActive(job.Status):
		views.ActiveJob = job
	case lifecycle.IsTerminal(job.Status):
		views.ActiveJob = nil
		history, _ := removeJob(views.JobHistory, job.ID)
		views.JobHistory = prepend(history, job)
		return views, []Notification{{
			Kind:        KindSuccess,
			Title:       "Job completed!",
			Description: "Earned ₹" + formatAmount(job.EarnedAmount()),
		}}
	}
	return views, nil
}

// removeJob drops the job with the given id and reports where it was, or -1
func removeJob(jobs []*storage.Job, id string) ([]*storage.Job, int) {
	for i, j := range jobs {
		if j.ID == id {
			return append(jobs[:i:i], jobs[i+1:]...), i
		}
	}
	return jobs, -1
}

func prepend(jobs []*storage.Job, job *storage.Job) []*storage.Job {
	return append([]*storage.Job{job}, jobs...)
}

func insertAt(jobs []*storage.Job, i int, job *storage.Job) []*storage.Job {
	out := make([]*storage.Job, 0, len(jobs)+1)
	out = append(out, jobs[:i]...)
	out = append(out, job)
	return append(out, jobs[i:]...)
}

func cloneJobs(jobs []*storage.Job) []*storage.Job {
	out := make([]*storage.Job, len(jobs))
	for i, j := range jobs {
		out[i] = j.Clone()
	}
	return out
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
