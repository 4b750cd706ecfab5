package ride

import "github.com/google/uuid"

type edge struct {
	from   Status
	action Action
}

// transitions is the complete lifecycle graph. Anything absent is illegal.
var transitions = map[edge]Status{
	{StatusRequested, ActionAccept}:      StatusAccepted,
	{StatusRequested, ActionCancelRider}: StatusCancelledByRider,
	{StatusAccepted, ActionCancelRider}:  StatusCancelledByRider,
	{StatusAccepted, ActionCancelDriver}: StatusCancelledByDriver,
	{StatusAccepted, ActionAdvance}:      StatusPickedUp,
	{StatusPickedUp, ActionAdvance}:      StatusInTransit,
	{StatusInTransit, ActionAdvance}:     StatusCompleted,
}

// Next returns the status reached by applying action in from.
func Next(from Status, action Action) (Status, bool) {
	to, ok := transitions[edge{from, action}]
	return to, ok
}

// ActionsFrom lists the actions that have an outgoing edge from status.
func ActionsFrom(status Status) []Action {
	var out []Action
	for _, a := range []Action{ActionAccept, ActionAdvance, ActionCancelRider, ActionCancelDriver} {
		if _, ok := transitions[edge{status, a}]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Actor is an authenticated caller
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
