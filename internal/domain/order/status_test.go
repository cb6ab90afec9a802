package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{
		StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCompleted, StatusOnHold, StatusCancelled,
		StatusRefunded,
	} {
		assert.True(t, s.Valid(), "status %s", s)
	}

	assert.False(t, Status("archived").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusCancelled, StatusRefunded}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "status %s", s)
	}

	active := []Status{
		StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusOnHold,
	}
	for _, s := range active {
		assert.False(t, s.IsTerminal(), "status %s", s)
	}

	assert.False(t, Status("archived").IsTerminal())
}

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    Status
		allowed []Status
	}{
		{StatusPending, []Status{StatusConfirmed, StatusOnHold, StatusCancelled}},
		{StatusConfirmed, []Status{StatusProcessing, StatusOnHold, StatusCancelled}},
		{StatusProcessing, []Status{StatusShipped, StatusOnHold, StatusCancelled}},
		{StatusShipped, []Status{StatusDelivered}},
		{StatusDelivered, []Status{StatusCompleted, StatusRefunded}},
		{StatusOnHold, []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusCancelled}},
		{StatusCompleted, nil},
		{StatusCancelled, nil},
		{StatusRefunded, nil},
	}

	all := []Status{
		StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCompleted, StatusOnHold, StatusCancelled,
		StatusRefunded,
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			allowed := make(map[Status]bool, len(tt.allowed))
			for _, s := range tt.allowed {
				allowed[s] = true
			}
			for _, target := range all {
				assert.Equal(t, allowed[target], tt.from.CanTransitionTo(target),
					"%s -> %s", tt.from, target)
			}
		})
	}
}

func TestStatusNoSkippingForward(t *testing.T) {
	// The forward chain admits no shortcuts: each stage only reaches the
	// next one.
	assert.False(t, StatusPending.CanTransitionTo(StatusProcessing))
	assert.False(t, StatusPending.CanTransitionTo(StatusShipped))
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusDelivered))
	assert.False(t, StatusShipped.CanTransitionTo(StatusCompleted))
}

func TestStatusNoBackwardMoves(t *testing.T) {
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusPending))
	assert.False(t, StatusShipped.CanTransitionTo(StatusProcessing))
	assert.False(t, StatusDelivered.CanTransitionTo(StatusShipped))
	assert.False(t, StatusShipped.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusDelivered.CanTransitionTo(StatusCancelled))
}
