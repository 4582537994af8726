package lifecycle

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a roadside job
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusOnTheWay   Status = "on_the_way"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// UpdateTypeLocation tags a location ping in the job update log
const UpdateTypeLocation = "location_update"

var (
	// ErrInvalidTransition is returned when the requested target is not the next step
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTerminal is returned when a transition is requested from completed
	ErrTerminal = errors.New("job is already completed")
)

type step struct {
	status  Status
	label   string
	next    Status
	action  string
	message string
}

// steps is the accepted job's fixed progression. Index order is the display order.
var steps = []step{
	{status: StatusAccepted, label: "Accepted", next: StatusOnTheWay},
	{status: StatusOnTheWay, label: "On the Way", next: StatusArrived, action: "Start Navigation", message: "On the way to customer"},
	{status: StatusArrived, label: "Arrived", next: StatusInProgress, action: "Mark Arrived", message: "Arrived at location"},
	{status: StatusInProgress, label: "In Progress", next: StatusCompleted, action: "Start Service", message: "Service started"},
	{status: StatusCompleted, label: "Completed", action: "Complete Job", message: "Job completed!"},
}

func lookup(s Status) (step, int, bool) {
	for i, st := range steps {
		if st.status == s {
			return st, i, true
		}
	}
	return step{}, -1, false
}

// Normalize maps the empty status to pending
func Normalize(s Status) Status {
	if s == "" {
		return StatusPending
	}
	return s
}

// Next returns the single legal successor of s. Pending and completed have none.
func Next(s Status) (Status, bool) {
	st, _, ok := lookup(s)
	if !ok || st.next == "" {
		return "", false
	}
	return st.next, true
}

// Label returns the display label of s
func Label(s Status) string {
	if Normalize(s) == StatusPending {
		return "Pending"
	}
	if st, _, ok := lookup(s); ok {
		return st.label
	}
	return string(s)
}

// ActionLabel returns the button text that moves a job into next
func ActionLabel(next Status) string {
	if st, _, ok := lookup(next); ok && st.action != "" {
		return st.action
	}
	return "Next"
}

// Message returns the confirmation shown once a job has moved into s
func Message(s Status) string {
	if s == StatusAccepted {
		return "Job accepted!"
	}
	if st, _, ok := lookup(s); ok && st.message != "" {
		return st.message
	}
	return "Status updated"
}

// IsPending reports whether s is unset or pending
func IsPending(s Status) bool {
	return Normalize(s) == StatusPending
}

// IsActive reports whether s is one of the in-flight statuses held by a technician
func IsActive(s Status) bool {
	switch s {
	case StatusAccepted, StatusOnTheWay, StatusArrived, StatusInProgress:
		return true
	}
	return false
}

// IsTerminal reports whether s has no successor
func IsTerminal(s Status) bool {
	return s == StatusCompleted
}

// Valid reports whether s is a known status
func Valid(s Status) bool {
	if IsPending(s) {
		return true
	}
	_, _, ok := lookup(s)
	return ok
}

// ValidateTransition checks that to is exactly the next step after from
func ValidateTransition(from, to Status) error {
	if IsTerminal(from) {
		return fmt.Errorf("%w: %s", ErrTerminal, from)
	}
	next, ok := Next(from)
	if !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, Normalize(from), to)
	}
	return nil
}

// Progress returns the 1-based position of s in the accepted progression and the number of steps.
// Statuses outside the progression report position 0.
func Progress(s Status) (int, int) {
	_, i, ok := lookup(s)
	if !ok {
		return 0, len(steps)
	}
	return i + 1, len(steps)
}
