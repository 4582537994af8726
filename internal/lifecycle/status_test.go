package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from Status
		want Status
		ok   bool
	}{
		{StatusAccepted, StatusOnTheWay, true},
		{StatusOnTheWay, StatusArrived, true},
		{StatusArrived, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusCompleted, "", false},
		{StatusPending, "", false},
		{"", "", false},
		{"bogus", "", false},
	}

	for _, tt := range tests {
		got, ok := Next(tt.from)
		assert.Equal(t, tt.ok, ok, "from %q", tt.from)
		assert.Equal(t, tt.want, got, "from %q", tt.from)
	}
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusAccepted, StatusOnTheWay))
	assert.NoError(t, ValidateTransition(StatusInProgress, StatusCompleted))

	err := ValidateTransition(StatusAccepted, StatusArrived)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	err = ValidateTransition(StatusOnTheWay, StatusAccepted)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	err = ValidateTransition("", StatusOnTheWay)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	err = ValidateTransition(StatusCompleted, StatusCompleted)
	assert.True(t, errors.Is(err, ErrTerminal))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Pending", Label(""))
	assert.Equal(t, "On the Way", Label(StatusOnTheWay))
	assert.Equal(t, "In Progress", Label(StatusInProgress))
	assert.Equal(t, "Completed", Label(StatusCompleted))

	assert.Equal(t, "Start Navigation", ActionLabel(StatusOnTheWay))
	assert.Equal(t, "Complete Job", ActionLabel(StatusCompleted))
	assert.Equal(t, "Next", ActionLabel(StatusAccepted))

	assert.Equal(t, "Arrived at location", Message(StatusArrived))
	assert.Equal(t, "Job accepted!", Message(StatusAccepted))
	assert.Equal(t, "Status updated", Message("unknown"))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, IsPending(""))
	assert.True(t, IsPending(StatusPending))
	assert.False(t, IsPending(StatusAccepted))

	for _, s := range []Status{StatusAccepted, StatusOnTheWay, StatusArrived, StatusInProgress} {
		assert.True(t, IsActive(s), s)
		assert.False(t, IsTerminal(s), s)
	}
	assert.False(t, IsActive(StatusCompleted))
	assert.False(t, IsActive(StatusPending))
	assert.True(t, IsTerminal(StatusCompleted))

	assert.True(t, Valid(""))
	assert.True(t, Valid(StatusArrived))
	assert.False(t, Valid("cancelled"))
}

func TestProgress(t *testing.T) {
	pos, total := Progress(StatusAccepted)
	assert.Equal(t, 1, pos)
	assert.Equal(t, 5, total)

	pos, _ = Progress(StatusCompleted)
	assert.Equal(t, 5, pos)

	pos, _ = Progress(StatusPending)
	assert.Equal(t, 0, pos)
}
