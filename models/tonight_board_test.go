package models

import (
	"testing"
	"time"
)

func TestVirtualIdsAreDeterministic(t *testing.T) {
	r1 := VirtualRouteID("staff-1", "2026-09-01")
	r2 := VirtualRouteID("staff-1", "2026-09-01")
	if r1 != r2 {
		t.Fatalf("virtual route id not stable: %s vs %s", r1, r2)
	}
	if VirtualRouteID("staff-2", "2026-09-01") == r1 {
		t.Fatalf("different staff must get different virtual route ids")
	}
	if VirtualRouteID("staff-1", "2026-09-02") == r1 {
		t.Fatalf("different dates must get different virtual route ids")
	}

	s1 := VirtualStopID("ticket-1", "staff-1")
	if s1 != VirtualStopID("ticket-1", "staff-1") {
		t.Fatalf("virtual stop id not stable")
	}
	if VirtualStopID("ticket-2", "staff-1") == s1 {
		t.Fatalf("different tickets must get different virtual stop ids")
	}
}

func realRoutesFixture() ([]*Route, []*RouteStop) {
	owner1, owner2 := "staff-1", "staff-2"
	ticketId := "ticket-routed"
	routes := []*Route{
		{ID: "route-1", RouteDate: "2026-09-01", Status: RouteStatusPublished, OwnerStaffId: &owner1, Owner: &Staff{ID: owner1, FullName: "Dana Field"}},
		{ID: "route-2", RouteDate: "2026-09-01", Status: RouteStatusPublished, OwnerStaffId: &owner2, Owner: &Staff{ID: owner2, FullName: "Sam Cover"}},
	}
	stops := []*RouteStop{
		{ID: "stop-1", RouteId: "route-1", StopOrder: 1, StopStatus: StopStatusPending},
		{ID: "stop-2", RouteId: "route-1", StopOrder: 2, StopStatus: StopStatusArrived, WorkTicketId: &ticketId},
		{ID: "stop-3", RouteId: "route-2", StopOrder: 1, StopStatus: StopStatusCompleted},
		{ID: "stop-4", RouteId: "route-2", StopOrder: 2, StopStatus: StopStatusPending},
	}
	return routes, stops
}

func TestMergeTicketAssignmentsAddsVirtualRoute(t *testing.T) {
	routes, stops := realRoutesFixture()
	boardRoutes, routedPairs := buildRealBoardRoutes(routes, stops)
	if len(boardRoutes) != 2 {
		t.Fatalf("expected 2 real board routes, got %d", len(boardRoutes))
	}

	tickets := []*AssignedTicket{
		{TicketId: "ticket-new", TicketStatus: TicketStatusScheduled, StaffId: "staff-1", StaffName: "Dana Field", SiteId: "site-x", SiteCode: "X", SiteName: "Xavier Tower"},
	}
	merged := MergeTicketAssignments(boardRoutes, routedPairs, tickets, "2026-09-01")
	if len(merged) != 3 {
		t.Fatalf("expected 2 real + 1 virtual routes, got %d", len(merged))
	}

	virtual := merged[2]
	if !virtual.IsVirtual {
		t.Fatalf("appended route should be virtual")
	}
	if virtual.RouteId != VirtualRouteID("staff-1", "2026-09-01") {
		t.Fatalf("virtual route id mismatch: %s", virtual.RouteId)
	}
	if len(virtual.Stops) != 1 {
		t.Fatalf("expected one virtual stop, got %d", len(virtual.Stops))
	}
	vs := virtual.Stops[0]
	if vs.ID != VirtualStopID("ticket-new", "staff-1") {
		t.Fatalf("virtual stop id mismatch: %s", vs.ID)
	}
	if vs.ExecutionSource != ExecutionSourceWorkTicket {
		t.Fatalf("virtual stop execution source: %s", vs.ExecutionSource)
	}
	if vs.StopStatus != StopStatusPending {
		t.Fatalf("SCHEDULED ticket should project as PENDING, got %s", vs.StopStatus)
	}

	totalStops := 0
	for _, r := range merged {
		totalStops += len(r.Stops)
	}
	if totalStops != 5 {
		t.Fatalf("expected 5 stops across the board, got %d", totalStops)
	}
}

func TestMergeTicketAssignmentsDeduplicatesRoutedTickets(t *testing.T) {
	routes, stops := realRoutesFixture()
	boardRoutes, routedPairs := buildRealBoardRoutes(routes, stops)

	// ticket-routed is already a real stop on staff-1's route
	tickets := []*AssignedTicket{
		{TicketId: "ticket-routed", TicketStatus: TicketStatusInProgress, StaffId: "staff-1", StaffName: "Dana Field"},
	}
	merged := MergeTicketAssignments(boardRoutes, routedPairs, tickets, "2026-09-01")
	if len(merged) != 2 {
		t.Fatalf("routed ticket must not create a virtual route, got %d routes", len(merged))
	}

	// the same ticket assigned to someone else is NOT deduplicated
	tickets = []*AssignedTicket{
		{TicketId: "ticket-routed", TicketStatus: TicketStatusInProgress, StaffId: "staff-9", StaffName: "Alex Sub"},
	}
	merged = MergeTicketAssignments(merged, routedPairs, tickets, "2026-09-01")
	if len(merged) != 3 {
		t.Fatalf("same ticket for a different staff member should project, got %d routes", len(merged))
	}
}

func TestMergeTicketAssignmentsOrdersVirtualStopsByPlannedStart(t *testing.T) {
	late := time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC)
	early := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	// fed out of order: latest first, unplanned in the middle, earliest last
	tickets := []*AssignedTicket{
		{TicketId: "ticket-late", TicketStatus: TicketStatusScheduled, StaffId: "staff-1", StaffName: "Dana Field", StartTime: &late},
		{TicketId: "ticket-unplanned", TicketStatus: TicketStatusScheduled, StaffId: "staff-1", StaffName: "Dana Field"},
		{TicketId: "ticket-early", TicketStatus: TicketStatusScheduled, StaffId: "staff-1", StaffName: "Dana Field", StartTime: &early},
	}
	merged := MergeTicketAssignments(nil, map[string]bool{}, tickets, "2026-09-01")
	if len(merged) != 1 {
		t.Fatalf("expected one virtual route, got %d", len(merged))
	}
	stops := merged[0].Stops
	wantIds := []string{
		VirtualStopID("ticket-early", "staff-1"),
		VirtualStopID("ticket-late", "staff-1"),
		VirtualStopID("ticket-unplanned", "staff-1"),
	}
	for i, want := range wantIds {
		if stops[i].ID != want {
			t.Fatalf("position %d: got stop %s, want %s", i, stops[i].ID, want)
		}
		if stops[i].StopOrder != i+1 {
			t.Fatalf("position %d: stop_order %d, want %d", i, stops[i].StopOrder, i+1)
		}
	}

	// same tickets in a different input order must yield the same board
	reversed := []*AssignedTicket{tickets[2], tickets[1], tickets[0]}
	again := MergeTicketAssignments(nil, map[string]bool{}, reversed, "2026-09-01")
	for i := range wantIds {
		if again[0].Stops[i].ID != stops[i].ID {
			t.Fatalf("ordering depends on input order at position %d", i)
		}
	}
}

func TestVirtualStopLessTieBreaksOnId(t *testing.T) {
	at := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	a := &BoardStop{ID: "aaa", PlannedStartAt: &at}
	b := &BoardStop{ID: "bbb", PlannedStartAt: &at}
	if !virtualStopLess(a, b) || virtualStopLess(b, a) {
		t.Fatalf("equal planned starts must tie-break on id")
	}
	u1, u2 := &BoardStop{ID: "aaa"}, &BoardStop{ID: "bbb"}
	if !virtualStopLess(u1, u2) || virtualStopLess(u2, u1) {
		t.Fatalf("unplanned stops must tie-break on id")
	}
}

func TestSortBoardRoutesByOwnerName(t *testing.T) {
	zName, aName := "Zoe", "Abe"
	routes := []*BoardRoute{
		{RouteId: "r-z", OwnerName: &zName, Stops: []*BoardStop{{StopOrder: 2}, {StopOrder: 1}}},
		{RouteId: "r-a", OwnerName: &aName, Stops: []*BoardStop{}},
		{RouteId: "r-nil-b", Stops: []*BoardStop{}},
		{RouteId: "r-nil-a", Stops: []*BoardStop{}},
	}
	sortBoardRoutes(routes)
	// nil owner names sort as empty string, before named owners; ties on route id
	wantIds := []string{"r-nil-a", "r-nil-b", "r-a", "r-z"}
	for i, want := range wantIds {
		if routes[i].RouteId != want {
			t.Fatalf("position %d: got %s, want %s", i, routes[i].RouteId, want)
		}
	}
	if routes[3].Stops[0].StopOrder != 1 {
		t.Fatalf("stops should be ordered by stop_order")
	}
}

func TestPrimaryActionFor(t *testing.T) {
	if got := primaryActionFor(StopStatusArrived); got != ActionComplete {
		t.Fatalf("ARRIVED stop primary action: got %s", got)
	}
	if got := primaryActionFor(StopStatusPending); got != ActionArrive {
		t.Fatalf("PENDING stop primary action: got %s", got)
	}
}

func TestStopBeforeNilPlannedStartSortsLast(t *testing.T) {
	at := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	planned := &BoardStop{ID: "planned", PlannedStartAt: &at, StopOrder: 9}
	unplanned := &BoardStop{ID: "unplanned", StopOrder: 1}
	if !stopBefore(planned, unplanned) {
		t.Fatalf("a planned stop must sort before an unplanned one")
	}
	if stopBefore(unplanned, planned) {
		t.Fatalf("an unplanned stop must not sort before a planned one")
	}
}
