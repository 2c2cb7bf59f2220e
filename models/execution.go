package models

import (
	"github.com/gleamops/fieldops_backend/problem"
)

// Field actions accepted by the execution state machine.
const (
	ActionArrive   = "arrive"
	ActionComplete = "complete"
	ActionSkip     = "skip"
	ActionStart    = "start"
)

// NextStopStatus validates a route-stop transition and returns the target
// status. PENDING -> ARRIVED -> COMPLETED; PENDING/ARRIVED -> SKIPPED.
// COMPLETED and SKIPPED are terminal.
func NextStopStatus(current string, action string) (string, error) {
	switch action {
	case ActionArrive:
		if current == StopStatusPending {
			return StopStatusArrived, nil
		}
	case ActionComplete:
		if current == StopStatusArrived {
			return StopStatusCompleted, nil
		}
	case ActionSkip:
		if current == StopStatusPending || current == StopStatusArrived {
			return StopStatusSkipped, nil
		}
	}
	return "", problem.Conflict("stop in status " + current + " cannot " + action)
}

// ApplyTicketAction maps a field action onto a work ticket's own status.
// Returns the resulting status and whether the ticket actually changed.
// Acting on an already-COMPLETED/VERIFIED ticket is an idempotent no-op;
// any action on a CANCELED ticket is a conflict.
func ApplyTicketAction(current string, action string) (string, bool, error) {
	if current == TicketStatusCanceled {
		return current, false, problem.Conflict("ticket is canceled")
	}
	if current == TicketStatusCompleted || current == TicketStatusVerified {
		return current, false, nil
	}

	switch action {
	case ActionStart, ActionArrive:
		if current == TicketStatusScheduled {
			return TicketStatusInProgress, true, nil
		}
		if current == TicketStatusInProgress {
			return current, false, nil
		}
	case ActionComplete:
		if current == TicketStatusScheduled || current == TicketStatusInProgress {
			return TicketStatusCompleted, true, nil
		}
	}
	return current, false, problem.Conflict("ticket in status " + current + " cannot " + action)
}

// MapTicketStatusToStopStatus projects a ticket's status onto the board's
// stop-status vocabulary for virtual stops.
func MapTicketStatusToStopStatus(ticketStatus string) string {
	switch ticketStatus {
	case TicketStatusCompleted, TicketStatusVerified:
		return StopStatusCompleted
	case TicketStatusInProgress:
		return StopStatusArrived
	case TicketStatusCanceled:
		return StopStatusSkipped
	default:
		return StopStatusPending
	}
}
