package models

import (
	"context"
	"sort"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/problem"
	"github.com/gleamops/fieldops_backend/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Namespace for deterministic virtual identifiers. Virtual routes and stops
// are projections, never persisted; the same inputs must always yield the
// same ids so clients can key on them across refreshes.
var virtualIdNamespace = uuid.MustParse("9f2c1b4e-1d24-4a57-9b63-7f8a2d0c5e11")

// VirtualRouteID derives the id of the synthetic route that groups a staff
// member's unrouted tickets for one date.
func VirtualRouteID(ownerStaffId, date string) string {
	return uuid.NewSHA1(virtualIdNamespace, []byte("vroute:"+ownerStaffId+":"+date)).String()
}

// VirtualStopID derives the id of the synthetic stop projected from one
// ticket/staff assignment.
func VirtualStopID(ticketId, ownerStaffId string) string {
	return uuid.NewSHA1(virtualIdNamespace, []byte("vstop:"+ticketId+":"+ownerStaffId)).String()
}

// BoardStop is one unit of work on the board, real or virtual.
type BoardStop struct {
	ID              string     `json:"id"`
	RouteId         string     `json:"route_id"`
	SiteId          *string    `json:"site_id"`
	SiteCode        *string    `json:"site_code"`
	SiteName        *string    `json:"site_name"`
	StopOrder       int        `json:"stop_order"`
	StopStatus      string     `json:"stop_status"`
	PlannedStartAt  *time.Time `json:"planned_start_at"`
	PlannedEndAt    *time.Time `json:"planned_end_at"`
	ExecutionSource string     `json:"execution_source"`
	WorkTicketId    *string    `json:"work_ticket_id"`
	IsVirtual       bool       `json:"is_virtual"`
	PrimaryAction   string     `json:"primary_action"`
}

// BoardRoute groups stops under an owner for the date.
type BoardRoute struct {
	RouteId      string       `json:"route_id"`
	RouteDate    string       `json:"route_date"`
	Status       string       `json:"status"`
	OwnerStaffId *string      `json:"owner_staff_id"`
	OwnerName    *string      `json:"owner_name"`
	IsVirtual    bool         `json:"is_virtual"`
	Stops        []*BoardStop `json:"stops"`
}

// primaryActionFor picks the one-tap action the field app should surface.
func primaryActionFor(stopStatus string) string {
	if stopStatus == StopStatusArrived {
		return ActionComplete
	}
	return ActionArrive
}

// buildRealBoardRoutes projects persisted routes and stops onto the board.
// Returns the routes and the set of (ticket_id, staff_id) pairs already
// represented by real stops, used to suppress duplicate virtual stops.
func buildRealBoardRoutes(routes []*Route, stops []*RouteStop) ([]*BoardRoute, map[string]bool) {
	routeById := make(map[string]*Route, len(routes))
	boardByRouteId := make(map[string]*BoardRoute, len(routes))
	ordered := make([]*BoardRoute, 0, len(routes))
	for _, r := range routes {
		routeById[r.ID] = r
		br := &BoardRoute{
			RouteId:      r.ID,
			RouteDate:    r.RouteDate,
			Status:       r.Status,
			OwnerStaffId: r.OwnerStaffId,
			IsVirtual:    false,
			Stops:        []*BoardStop{},
		}
		if r.Owner != nil {
			br.OwnerName = utils.NilIfEmpty(r.Owner.FullName)
		}
		boardByRouteId[r.ID] = br
		ordered = append(ordered, br)
	}

	routedPairs := map[string]bool{}
	for _, s := range stops {
		br, ok := boardByRouteId[s.RouteId]
		if !ok {
			continue
		}
		bs := &BoardStop{
			ID:              s.ID,
			RouteId:         s.RouteId,
			SiteId:          s.SiteId,
			StopOrder:       s.StopOrder,
			StopStatus:      s.StopStatus,
			PlannedStartAt:  s.PlannedStartAt,
			PlannedEndAt:    s.PlannedEndAt,
			ExecutionSource: ExecutionSourceRouteStop,
			WorkTicketId:    s.WorkTicketId,
			IsVirtual:       false,
			PrimaryAction:   primaryActionFor(s.StopStatus),
		}
		if s.Site != nil {
			bs.SiteCode = utils.NilIfEmpty(s.Site.SiteCode)
			bs.SiteName = utils.NilIfEmpty(s.Site.Name)
		}
		br.Stops = append(br.Stops, bs)

		if s.WorkTicketId != nil {
			if route := routeById[s.RouteId]; route != nil && route.OwnerStaffId != nil {
				routedPairs[*s.WorkTicketId+":"+*route.OwnerStaffId] = true
			}
		}
	}
	return ordered, routedPairs
}

// MergeTicketAssignments appends virtual routes built from unrouted ticket
// assignments. A ticket/staff pair already present as a real stop is skipped;
// the route representation wins.
func MergeTicketAssignments(boardRoutes []*BoardRoute, routedPairs map[string]bool, tickets []*AssignedTicket, date string) []*BoardRoute {
	virtualByStaff := map[string]*BoardRoute{}
	var virtualOrder []string
	for _, t := range tickets {
		if routedPairs[t.TicketId+":"+t.StaffId] {
			continue
		}
		vr, ok := virtualByStaff[t.StaffId]
		if !ok {
			staffId := t.StaffId
			vr = &BoardRoute{
				RouteId:      VirtualRouteID(t.StaffId, date),
				RouteDate:    date,
				Status:       RouteStatusPublished,
				OwnerStaffId: &staffId,
				OwnerName:    utils.NilIfEmpty(t.StaffName),
				IsVirtual:    true,
				Stops:        []*BoardStop{},
			}
			virtualByStaff[t.StaffId] = vr
			virtualOrder = append(virtualOrder, t.StaffId)
		}

		ticketId := t.TicketId
		status := MapTicketStatusToStopStatus(t.TicketStatus)
		bs := &BoardStop{
			ID:              VirtualStopID(t.TicketId, t.StaffId),
			RouteId:         vr.RouteId,
			SiteId:          utils.NilIfEmpty(t.SiteId),
			SiteCode:        utils.NilIfEmpty(t.SiteCode),
			SiteName:        utils.NilIfEmpty(t.SiteName),
			StopStatus:      status,
			PlannedStartAt:  t.StartTime,
			PlannedEndAt:    t.EndTime,
			ExecutionSource: ExecutionSourceWorkTicket,
			WorkTicketId:    &ticketId,
			IsVirtual:       true,
			PrimaryAction:   primaryActionFor(status),
		}
		vr.Stops = append(vr.Stops, bs)
	}

	// stop_order on a virtual route tracks planned start time, not the row
	// order the tickets happened to arrive in
	for _, staffId := range virtualOrder {
		vr := virtualByStaff[staffId]
		sort.SliceStable(vr.Stops, func(i, j int) bool {
			return virtualStopLess(vr.Stops[i], vr.Stops[j])
		})
		for i, s := range vr.Stops {
			s.StopOrder = i + 1
		}
		boardRoutes = append(boardRoutes, vr)
	}
	return boardRoutes
}

// virtualStopLess orders virtual stops before stop_order exists: planned start
// ascending, nil planned start last, stop id breaking ties.
func virtualStopLess(a, b *BoardStop) bool {
	switch {
	case a.PlannedStartAt == nil && b.PlannedStartAt == nil:
		return a.ID < b.ID
	case a.PlannedStartAt == nil:
		return false
	case b.PlannedStartAt == nil:
		return true
	case !a.PlannedStartAt.Equal(*b.PlannedStartAt):
		return a.PlannedStartAt.Before(*b.PlannedStartAt)
	default:
		return a.ID < b.ID
	}
}

// sortBoardRoutes orders stops within each route by stop_order and routes by
// owner name then route id, keeping board output deterministic.
func sortBoardRoutes(routes []*BoardRoute) {
	for _, r := range routes {
		sort.SliceStable(r.Stops, func(i, j int) bool {
			return r.Stops[i].StopOrder < r.Stops[j].StopOrder
		})
	}
	sort.SliceStable(routes, func(i, j int) bool {
		ni, nj := "", ""
		if routes[i].OwnerName != nil {
			ni = *routes[i].OwnerName
		}
		if routes[j].OwnerName != nil {
			nj = *routes[j].OwnerName
		}
		if ni != nj {
			return ni < nj
		}
		return routes[i].RouteId < routes[j].RouteId
	})
}

// StopCounts tallies stop statuses at one site. Late counts PENDING stops
// whose planned start has already passed.
type StopCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Arrived   int `json:"arrived"`
	Pending   int `json:"pending"`
	Late      int `json:"late"`
	Skipped   int `json:"skipped"`
}

// ComputeCoverageStatus classifies a site from its stop counts. The rules are
// ordered; the first matching rule wins.
func ComputeCoverageStatus(c StopCounts) string {
	if c.Total == 0 {
		return CoverageUncovered
	}
	if c.Completed+c.Arrived >= c.Total {
		return CoverageCovered
	}
	if c.Skipped >= c.Total {
		return CoverageUncovered
	}
	if c.Late > 0 && c.Completed == 0 && c.Arrived == 0 {
		return CoverageUncovered
	}
	return CoverageAtRisk
}

func coverageSeverity(status string) int {
	switch status {
	case CoverageUncovered:
		return 0
	case CoverageAtRisk:
		return 1
	default:
		return 2
	}
}

// SiteSummary is the per-site coverage rollup on the board.
type SiteSummary struct {
	SiteKey        string     `json:"site_key"`
	SiteId         *string    `json:"site_id"`
	SiteCode       string     `json:"site_code"`
	SiteName       string     `json:"site_name"`
	CoverageStatus string     `json:"coverage_status"`
	Counts         StopCounts `json:"counts"`
}

// SummarizeSites buckets every board stop by site and classifies coverage.
// Stops with no site each get their own synthetic bucket so they stay visible
// rather than collapsing into one false aggregate.
func SummarizeSites(routes []*BoardRoute, now time.Time) []*SiteSummary {
	bySite := map[string]*SiteSummary{}
	var order []string
	for _, r := range routes {
		for _, s := range r.Stops {
			key := "unknown:" + s.ID
			if s.SiteId != nil && *s.SiteId != "" {
				key = *s.SiteId
			}
			summary, ok := bySite[key]
			if !ok {
				summary = &SiteSummary{
					SiteKey:  key,
					SiteId:   s.SiteId,
					SiteCode: "--",
					SiteName: "--",
				}
				if s.SiteCode != nil && *s.SiteCode != "" {
					summary.SiteCode = *s.SiteCode
				}
				if s.SiteName != nil && *s.SiteName != "" {
					summary.SiteName = *s.SiteName
				}
				bySite[key] = summary
				order = append(order, key)
			}

			summary.Counts.Total++
			switch s.StopStatus {
			case StopStatusCompleted:
				summary.Counts.Completed++
			case StopStatusArrived:
				summary.Counts.Arrived++
			case StopStatusSkipped:
				summary.Counts.Skipped++
			default:
				summary.Counts.Pending++
				if s.PlannedStartAt != nil && s.PlannedStartAt.Before(now) {
					summary.Counts.Late++
				}
			}
		}
	}

	summaries := make([]*SiteSummary, 0, len(bySite))
	for _, key := range order {
		s := bySite[key]
		s.CoverageStatus = ComputeCoverageStatus(s.Counts)
		summaries = append(summaries, s)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		si, sj := coverageSeverity(summaries[i].CoverageStatus), coverageSeverity(summaries[j].CoverageStatus)
		if si != sj {
			return si < sj
		}
		return summaries[i].SiteName < summaries[j].SiteName
	})
	return summaries
}

// NextStopForStaff picks the staff member's next actionable stop: not yet
// completed or skipped, earliest planned start first (no planned start sorts
// last), stop order breaking ties. Nil when nothing remains.
func NextStopForStaff(routes []*BoardRoute, staffId string) *BoardStop {
	var best *BoardStop
	for _, r := range routes {
		if r.OwnerStaffId == nil || *r.OwnerStaffId != staffId {
			continue
		}
		for _, s := range r.Stops {
			if s.StopStatus == StopStatusCompleted || s.StopStatus == StopStatusSkipped {
				continue
			}
			if best == nil || stopBefore(s, best) {
				best = s
			}
		}
	}
	return best
}

func stopBefore(a, b *BoardStop) bool {
	switch {
	case a.PlannedStartAt == nil && b.PlannedStartAt == nil:
		return a.StopOrder < b.StopOrder
	case a.PlannedStartAt == nil:
		return false
	case b.PlannedStartAt == nil:
		return true
	case !a.PlannedStartAt.Equal(*b.PlannedStartAt):
		return a.PlannedStartAt.Before(*b.PlannedStartAt)
	default:
		return a.StopOrder < b.StopOrder
	}
}

// BoardTotals is the headline rollup.
type BoardTotals struct {
	Sites          int `json:"sites"`
	Stops          int `json:"stops"`
	UncoveredSites int `json:"uncovered_sites"`
}

type BoardFeatures struct {
	RouteExecution    bool `json:"route_execution"`
	CalloutAutomation bool `json:"callout_automation"`
	PayrollExport     bool `json:"payroll_export"`
}

// TonightBoard is the single aggregate payload behind the board screen.
type TonightBoard struct {
	PilotEnabled       bool                     `json:"pilot_enabled"`
	Features           BoardFeatures            `json:"features"`
	Date               string                   `json:"date"`
	MyStaffId          *string                  `json:"my_staff_id"`
	MyNextStop         *BoardStop               `json:"my_next_stop"`
	RouteSummaries     []*BoardRoute            `json:"route_summaries"`
	RecentCallouts     []*CalloutSummary        `json:"recent_callouts"`
	CoverageCandidates []*CoverageCandidate     `json:"coverage_candidates"`
	PayrollMappings    []*PayrollMappingSummary `json:"payroll_mappings"`
	PayrollRuns        []*PayrollRunSummary     `json:"payroll_runs"`
	SiteSummaries      []*SiteSummary           `json:"site_summaries"`
	Totals             BoardTotals              `json:"totals"`
}

func emptyBoard(date string, features BoardFeatures, staffId string) *TonightBoard {
	return &TonightBoard{
		PilotEnabled:       true,
		Features:           features,
		Date:               date,
		MyStaffId:          utils.NilIfEmpty(staffId),
		RouteSummaries:     []*BoardRoute{},
		RecentCallouts:     []*CalloutSummary{},
		CoverageCandidates: []*CoverageCandidate{},
		PayrollMappings:    []*PayrollMappingSummary{},
		PayrollRuns:        []*PayrollRunSummary{},
		SiteSummaries:      []*SiteSummary{},
	}
}

// GetTonightBoard assembles the board for one date. Manager tier reads
// tenant-wide; field users are scoped to their own staff profile, and a user
// with no staff link gets an empty board rather than a widened one.
func GetTonightBoard(ctx context.Context, date string) (*TonightBoard, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, problem.Validation("date must be an ISO date (YYYY-MM-DD)")
	}

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, problem.Unauthenticated()
	}
	roles := rolesFromContext(ctx)
	managerTier := IsManagerTier(roles)

	features := BoardFeatures{
		RouteExecution:    config.FeatureRouteExecution(),
		CalloutAutomation: config.FeatureCalloutAutomation(),
		PayrollExport:     config.FeaturePayrollExport(),
	}

	staffId, err := FindStaffIdByUserId(ctx, userId)
	if err != nil {
		return nil, err
	}
	if !managerTier && staffId == "" {
		// no staff link and no manager role: nothing to show, never widen scope
		return emptyBoard(date, features, ""), nil
	}

	scopeStaffId := staffId
	if managerTier {
		scopeStaffId = ""
	}
	calloutLimit := 10
	if managerTier {
		calloutLimit = 50
	}
	calloutScope := staffId
	if managerTier {
		calloutScope = ""
	}

	board := emptyBoard(date, features, staffId)

	var (
		routes  []*Route
		tickets []*AssignedTicket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		routes, err = ListRoutesForDate(gctx, date, scopeStaffId)
		return err
	})
	g.Go(func() error {
		var err error
		tickets, err = ListAssignedTicketsForDate(gctx, date, scopeStaffId)
		return err
	})
	if features.CalloutAutomation {
		g.Go(func() error {
			callouts, err := ListRecentCallouts(gctx, calloutLimit, calloutScope)
			if err != nil {
				return err
			}
			board.RecentCallouts = callouts
			return nil
		})
		if managerTier {
			g.Go(func() error {
				candidates, err := ListCoverageCandidates(gctx, 250)
				if err != nil {
					return err
				}
				board.CoverageCandidates = candidates
				return nil
			})
		}
	}
	if features.PayrollExport && CanManagePayroll(roles) {
		g.Go(func() error {
			mappings, err := ListActivePayrollMappings(gctx, 50)
			if err != nil {
				return err
			}
			board.PayrollMappings = mappings
			return nil
		})
		g.Go(func() error {
			runs, err := ListRecentPayrollRuns(gctx, 20)
			if err != nil {
				return err
			}
			board.PayrollRuns = runs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	routeIds := make([]string, 0, len(routes))
	for _, r := range routes {
		routeIds = append(routeIds, r.ID)
	}
	stops, err := ListRouteStopsByRouteIds(ctx, routeIds)
	if err != nil {
		return nil, err
	}

	boardRoutes, routedPairs := buildRealBoardRoutes(routes, stops)
	boardRoutes = MergeTicketAssignments(boardRoutes, routedPairs, tickets, date)
	sortBoardRoutes(boardRoutes)

	now := time.Now().UTC()
	board.RouteSummaries = boardRoutes
	board.SiteSummaries = SummarizeSites(boardRoutes, now)
	if staffId != "" {
		board.MyNextStop = NextStopForStaff(boardRoutes, staffId)
	}

	totals := BoardTotals{Sites: len(board.SiteSummaries)}
	for _, r := range boardRoutes {
		totals.Stops += len(r.Stops)
	}
	for _, s := range board.SiteSummaries {
		if s.CoverageStatus == CoverageUncovered {
			totals.UncoveredSites++
		}
	}
	board.Totals = totals

	return board, nil
}
