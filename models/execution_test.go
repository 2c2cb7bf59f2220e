package models

import (
	"testing"

	"github.com/gleamops/fieldops_backend/problem"
)

func TestNextStopStatusTransitions(t *testing.T) {
	cases := []struct {
		current string
		action  string
		want    string
		wantErr bool
	}{
		{StopStatusPending, ActionArrive, StopStatusArrived, false},
		{StopStatusArrived, ActionComplete, StopStatusCompleted, false},
		{StopStatusPending, ActionSkip, StopStatusSkipped, false},
		{StopStatusArrived, ActionSkip, StopStatusSkipped, false},
		{StopStatusPending, ActionComplete, "", true},
		{StopStatusArrived, ActionArrive, "", true},
		{StopStatusCompleted, ActionArrive, "", true},
		{StopStatusCompleted, ActionSkip, "", true},
		{StopStatusSkipped, ActionArrive, "", true},
		{StopStatusSkipped, ActionComplete, "", true},
	}
	for _, tc := range cases {
		got, err := NextStopStatus(tc.current, tc.action)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s + %s: expected conflict, got %q", tc.current, tc.action, got)
			}
			p := problem.FromError(err)
			if p.Code != "SHIFT_004" {
				t.Fatalf("%s + %s: expected SHIFT_004, got %s", tc.current, tc.action, p.Code)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s + %s: unexpected error %v", tc.current, tc.action, err)
		}
		if got != tc.want {
			t.Fatalf("%s + %s: got %q, want %q", tc.current, tc.action, got, tc.want)
		}
	}
}

func TestApplyTicketActionIdempotency(t *testing.T) {
	for _, current := range []string{TicketStatusCompleted, TicketStatusVerified} {
		next, changed, err := ApplyTicketAction(current, ActionComplete)
		if err != nil {
			t.Fatalf("complete on %s: unexpected error %v", current, err)
		}
		if changed {
			t.Fatalf("complete on %s: expected no-op", current)
		}
		if next != current {
			t.Fatalf("complete on %s: status changed to %s", current, next)
		}
	}

	// starting an already started ticket is also a no-op
	next, changed, err := ApplyTicketAction(TicketStatusInProgress, ActionStart)
	if err != nil || changed || next != TicketStatusInProgress {
		t.Fatalf("start on IN_PROGRESS: got (%s, %v, %v)", next, changed, err)
	}
}

func TestApplyTicketActionTransitions(t *testing.T) {
	next, changed, err := ApplyTicketAction(TicketStatusScheduled, ActionStart)
	if err != nil || !changed || next != TicketStatusInProgress {
		t.Fatalf("start on SCHEDULED: got (%s, %v, %v)", next, changed, err)
	}

	next, changed, err = ApplyTicketAction(TicketStatusScheduled, ActionComplete)
	if err != nil || !changed || next != TicketStatusCompleted {
		t.Fatalf("complete on SCHEDULED: got (%s, %v, %v)", next, changed, err)
	}

	next, changed, err = ApplyTicketAction(TicketStatusInProgress, ActionComplete)
	if err != nil || !changed || next != TicketStatusCompleted {
		t.Fatalf("complete on IN_PROGRESS: got (%s, %v, %v)", next, changed, err)
	}
}

func TestApplyTicketActionCanceledConflicts(t *testing.T) {
	for _, action := range []string{ActionStart, ActionArrive, ActionComplete} {
		_, _, err := ApplyTicketAction(TicketStatusCanceled, action)
		if err == nil {
			t.Fatalf("%s on CANCELED: expected conflict", action)
		}
		if p := problem.FromError(err); p.Code != "SHIFT_004" {
			t.Fatalf("%s on CANCELED: expected SHIFT_004, got %s", action, p.Code)
		}
	}
}

func TestMapTicketStatusToStopStatus(t *testing.T) {
	cases := map[string]string{
		TicketStatusCompleted:  StopStatusCompleted,
		TicketStatusVerified:   StopStatusCompleted,
		TicketStatusInProgress: StopStatusArrived,
		TicketStatusCanceled:   StopStatusSkipped,
		TicketStatusScheduled:  StopStatusPending,
		"SOMETHING_NEW":        StopStatusPending,
	}
	for ticketStatus, want := range cases {
		if got := MapTicketStatusToStopStatus(ticketStatus); got != want {
			t.Fatalf("%s: got %s, want %s", ticketStatus, got, want)
		}
	}
}
