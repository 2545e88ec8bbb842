// Package status implements the order status state machine. It performs no
// I/O; the repository persists whatever this package approves.
package status

import "bloomkart/internal/model"

// transitions is the full directed graph of allowed status changes. A status
// missing a requested edge here is a rejection, including same-state requests
// and skipped intermediate states.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:    {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed:  {model.StatusProcessing, model.StatusCancelled},
	model.StatusProcessing: {model.StatusShipped, model.StatusCancelled},
	model.StatusShipped:    {model.StatusDelivered},
	model.StatusDelivered:  {},
	model.StatusCancelled:  {},
}

// Record describes an approved transition, ready to be written as a status
// history row.
type Record struct {
	From model.Status
	To   model.Status
}

// Transition decides whether an order may move from current to requested.
// On denial it returns an InvalidTransitionError carrying the statuses that
// would have been accepted.
func Transition(current, requested model.Status) (Record, error) {
	for _, next := range transitions[current] {
		if next == requested {
			return Record{From: current, To: requested}, nil
		}
	}
	return Record{}, &model.InvalidTransitionError{
		Current:   current,
		Requested: requested,
		ValidNext: ValidNext(current),
	}
}

// ValidNext returns the statuses reachable from current. The slice is a copy;
// callers may keep it.
func ValidNext(current model.Status) []model.Status {
	next := transitions[current]
	out := make([]model.Status, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no transition leaves the given status.
func IsTerminal(s model.Status) bool {
	return s.Valid() && len(transitions[s]) == 0
}
