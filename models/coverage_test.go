package models

import (
	"testing"
	"time"
)

func TestComputeCoverageStatus(t *testing.T) {
	cases := []struct {
		name   string
		counts StopCounts
		want   string
	}{
		{"no stops", StopCounts{}, CoverageUncovered},
		{"all completed", StopCounts{Total: 3, Completed: 3}, CoverageCovered},
		{"completed plus arrived covers", StopCounts{Total: 3, Completed: 2, Arrived: 1}, CoverageCovered},
		{"all skipped", StopCounts{Total: 2, Skipped: 2}, CoverageUncovered},
		{"late with nobody on site", StopCounts{Total: 2, Pending: 2, Late: 1}, CoverageUncovered},
		{"late but one arrived", StopCounts{Total: 3, Pending: 1, Late: 1, Arrived: 1, Completed: 1}, CoverageAtRisk},
		{"partial progress", StopCounts{Total: 2, Completed: 1, Pending: 1}, CoverageAtRisk},
		{"all pending not late", StopCounts{Total: 2, Pending: 2}, CoverageAtRisk},
	}
	for _, tc := range cases {
		if got := ComputeCoverageStatus(tc.counts); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func boardRouteWithStops(staffId string, stops ...*BoardStop) *BoardRoute {
	return &BoardRoute{
		RouteId:      "route-1",
		OwnerStaffId: &staffId,
		Stops:        stops,
	}
}

func siteStop(id, siteId, siteName, status string, plannedStart *time.Time) *BoardStop {
	var sid, sname *string
	if siteId != "" {
		sid = &siteId
	}
	if siteName != "" {
		sname = &siteName
	}
	return &BoardStop{
		ID:             id,
		SiteId:         sid,
		SiteName:       sname,
		StopStatus:     status,
		PlannedStartAt: plannedStart,
	}
}

func TestSummarizeSitesSeverityOrder(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	route := boardRouteWithStops("staff-1",
		// site A: one completed -> covered
		siteStop("s1", "site-a", "Alpha", StopStatusCompleted, nil),
		// site B: pending and late -> uncovered
		siteStop("s2", "site-b", "Bravo", StopStatusPending, &past),
		// site C: one completed one pending -> at_risk
		siteStop("s3", "site-c", "Charlie", StopStatusCompleted, nil),
		siteStop("s4", "site-c", "Charlie", StopStatusPending, nil),
	)

	summaries := SummarizeSites([]*BoardRoute{route}, now)
	if len(summaries) != 3 {
		t.Fatalf("expected 3 site summaries, got %d", len(summaries))
	}
	wantOrder := []string{CoverageUncovered, CoverageAtRisk, CoverageCovered}
	for i, want := range wantOrder {
		if summaries[i].CoverageStatus != want {
			t.Fatalf("position %d: got %s, want %s", i, summaries[i].CoverageStatus, want)
		}
	}
	if summaries[0].SiteName != "Bravo" {
		t.Fatalf("expected Bravo first, got %s", summaries[0].SiteName)
	}
	if summaries[0].Counts.Late != 1 {
		t.Fatalf("expected 1 late stop at Bravo, got %d", summaries[0].Counts.Late)
	}
}

func TestSummarizeSitesUnknownSiteBuckets(t *testing.T) {
	now := time.Now().UTC()
	route := boardRouteWithStops("staff-1",
		siteStop("s1", "", "", StopStatusPending, nil),
		siteStop("s2", "", "", StopStatusPending, nil),
	)
	summaries := SummarizeSites([]*BoardRoute{route}, now)
	// siteless stops must not collapse into one bucket
	if len(summaries) != 2 {
		t.Fatalf("expected 2 buckets for siteless stops, got %d", len(summaries))
	}
	for _, s := range summaries {
		if s.SiteCode != "--" || s.SiteName != "--" {
			t.Fatalf("expected placeholder site fields, got %s/%s", s.SiteCode, s.SiteName)
		}
	}
}

func TestNextStopForStaff(t *testing.T) {
	early := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	late := time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC)

	done := siteStop("done", "site-a", "Alpha", StopStatusCompleted, &early)
	skipped := siteStop("skipped", "site-a", "Alpha", StopStatusSkipped, &early)
	second := siteStop("second", "site-b", "Bravo", StopStatusPending, &late)
	second.StopOrder = 1
	first := siteStop("first", "site-c", "Charlie", StopStatusPending, &early)
	first.StopOrder = 2
	unplanned := siteStop("unplanned", "site-d", "Delta", StopStatusPending, nil)
	unplanned.StopOrder = 0

	route := boardRouteWithStops("staff-1", done, skipped, second, first, unplanned)

	got := NextStopForStaff([]*BoardRoute{route}, "staff-1")
	if got == nil || got.ID != "first" {
		t.Fatalf("expected earliest planned pending stop, got %+v", got)
	}

	// wrong staff gets nothing
	if got := NextStopForStaff([]*BoardRoute{route}, "staff-2"); got != nil {
		t.Fatalf("expected nil for other staff, got %+v", got)
	}

	// with only unplanned stops remaining, stop order decides
	a := siteStop("a", "site-a", "Alpha", StopStatusPending, nil)
	a.StopOrder = 3
	b := siteStop("b", "site-b", "Bravo", StopStatusPending, nil)
	b.StopOrder = 1
	route2 := boardRouteWithStops("staff-1", a, b)
	if got := NextStopForStaff([]*BoardRoute{route2}, "staff-1"); got == nil || got.ID != "b" {
		t.Fatalf("expected stop order tiebreak, got %+v", got)
	}
}
