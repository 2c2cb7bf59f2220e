package workflow

import (
	"testing"
	"time"

	"github.com/gleamops/fieldops_backend/models"
)

func TestEscalationOutcome(t *testing.T) {
	cases := []struct {
		name       string
		level      int
		maxLevel   int
		wantStatus string
		wantLevel  int
	}{
		{"fresh callout bumps to level 1", 0, 2, models.CalloutStatusReported, 1},
		{"below cap keeps climbing", 1, 2, models.CalloutStatusReported, 2},
		{"at cap goes terminal", 2, 2, models.CalloutStatusEscalated, 2},
		{"past cap stays terminal", 3, 2, models.CalloutStatusEscalated, 3},
		{"zero cap escalates immediately", 0, 0, models.CalloutStatusEscalated, 0},
	}
	for _, tc := range cases {
		status, level := escalationOutcome(tc.level, tc.maxLevel)
		if status != tc.wantStatus || level != tc.wantLevel {
			t.Fatalf("%s: got (%s, %d), want (%s, %d)", tc.name, status, level, tc.wantStatus, tc.wantLevel)
		}
	}
}

func TestEscalationOutcomeNeverSkipsLevels(t *testing.T) {
	// walking a callout through repeated sweeps must visit every level once
	level := 0
	for want := 1; want <= 2; want++ {
		status, next := escalationOutcome(level, 2)
		if status != models.CalloutStatusReported || next != want {
			t.Fatalf("sweep from level %d: got (%s, %d), want (REPORTED, %d)", level, status, next, want)
		}
		level = next
	}
	status, next := escalationOutcome(level, 2)
	if status != models.CalloutStatusEscalated || next != 2 {
		t.Fatalf("final sweep: got (%s, %d), want (ESCALATED, 2)", status, next)
	}
}

func TestNewCoverageSweeperDefaults(t *testing.T) {
	s := NewCoverageSweeper(nil, nil)
	if s.BatchSize != 100 {
		t.Fatalf("batch size: got %d", s.BatchSize)
	}
	if s.PollInterval != 30*time.Second {
		t.Fatalf("poll interval: got %s", s.PollInterval)
	}
	if s.MaxEscalationLevel != 2 {
		t.Fatalf("escalation cap: got %d", s.MaxEscalationLevel)
	}
	if s.SweeperID == "" {
		t.Fatalf("sweeper id must be assigned")
	}
}
