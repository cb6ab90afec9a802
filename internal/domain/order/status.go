package order

import "fmt"

// Status is an order's lifecycle state. Writes to an order's status must go
// through Order.Transition, which consults the transition table below.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// transitions encodes every legal status change. The forward chain is
// pending → confirmed → processing → shipped → delivered → completed, with
// side exits to on_hold and cancelled before shipment and refunded after
// delivery. Terminal states map to an empty set.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusOnHold, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusOnHold, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusOnHold, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusCompleted, StatusRefunded},
	StatusOnHold:     {StatusPending, StatusConfirmed, StatusProcessing, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leads out of s.
func (s Status) IsTerminal() bool {
	targets, ok := transitions[s]
	return ok && len(targets) == 0
}

// CanTransitionTo reports whether the transition s → target is legal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an attempted illegal status change. The
// order it was raised for is left untouched.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// UnknownStatusError reports a status value outside the enumeration.
type UnknownStatusError struct {
	Status Status
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown order status %q", e.Status)
}
