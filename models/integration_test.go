package models

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/problem"
	"github.com/gleamops/fieldops_backend/utils"
	"github.com/google/uuid"
)

// Integration tests need a running MySQL (DB_* env vars) and are opt-in:
//   INTEGRATION_TESTS=1 go test ./models/...
func integrationContext(t *testing.T) context.Context {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run database tests")
	}
	if config.GetDB() == nil {
		config.ConnectDatabaseWithRetry()
		MigrateTable()
	}
	ctx := context.Background()
	ctx = utils.SetTenantIdInContext(ctx, uuid.NewString())
	ctx = utils.SetRolesInContext(ctx, []string{RoleManager})
	ctx = utils.SetUserIdInContext(ctx, uuid.NewString())
	return ctx
}

func seedRouteWithStop(t *testing.T, ctx context.Context) *RouteStop {
	t.Helper()
	db := config.GetDB()
	tenantId, _ := utils.GetTenantIdFromContext(ctx)
	route := Route{TenantId: tenantId, RouteDate: "2026-09-01", Status: RouteStatusPublished}
	if err := db.WithContext(ctx).Create(&route).Error; err != nil {
		t.Fatalf("seed route: %v", err)
	}
	stop := RouteStop{TenantId: tenantId, RouteId: route.ID, StopOrder: 1, StopStatus: StopStatusPending}
	if err := db.WithContext(ctx).Create(&stop).Error; err != nil {
		t.Fatalf("seed stop: %v", err)
	}
	return &stop
}

func TestRouteStopLifecycleIntegration(t *testing.T) {
	ctx := integrationContext(t)
	stop := seedRouteWithStop(t, ctx)

	arrived, err := StartRouteStop(ctx, stop.ID)
	if err != nil {
		t.Fatalf("arrive: %v", err)
	}
	if arrived.StopStatus != StopStatusArrived || arrived.ArrivedAt == nil {
		t.Fatalf("arrive result: %+v", arrived)
	}

	// arriving twice conflicts
	if _, err := StartRouteStop(ctx, stop.ID); err == nil {
		t.Fatalf("second arrive should conflict")
	}

	completed, err := CompleteRouteStop(ctx, stop.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.StopStatus != StopStatusCompleted || completed.DepartedAt == nil {
		t.Fatalf("complete result: %+v", completed)
	}

	// completed is terminal, skip must conflict
	_, err = SkipRouteStop(ctx, stop.ID, &SkipRouteStopInput{Reason: "sick"})
	if err == nil {
		t.Fatalf("skip on COMPLETED should conflict")
	}
	if p := problem.FromError(err); p.Code != "SHIFT_004" {
		t.Fatalf("expected SHIFT_004, got %s", p.Code)
	}
}

func TestCoverageOfferAcceptIntegration(t *testing.T) {
	ctx := integrationContext(t)
	db := config.GetDB()
	tenantId, _ := utils.GetTenantIdFromContext(ctx)

	affected := Staff{TenantId: tenantId, StaffCode: "C-100", FullName: "Out Tonight", Role: RoleCleaner}
	candidate := Staff{TenantId: tenantId, StaffCode: "C-200", FullName: "Covers Well", Role: RoleCleaner, IsCoverageCandidate: true}
	if err := db.WithContext(ctx).Create(&affected).Error; err != nil {
		t.Fatalf("seed affected: %v", err)
	}
	if err := db.WithContext(ctx).Create(&candidate).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	event, err := ReportCallout(ctx, &NewCalloutEvent{Reason: "sick", AffectedStaffId: affected.ID})
	if err != nil {
		t.Fatalf("report callout: %v", err)
	}

	offer, err := OfferCoverage(ctx, &NewCoverageOffer{
		CalloutEventId:   event.ID,
		CandidateStaffId: candidate.ID,
		ExpiresInMinutes: 60,
	})
	if err != nil {
		t.Fatalf("offer coverage: %v", err)
	}
	if offer.Status != OfferStatusPending {
		t.Fatalf("offer status: %s", offer.Status)
	}

	accepted, err := AcceptCoverage(ctx, offer.ID, nil)
	if err != nil {
		t.Fatalf("accept coverage: %v", err)
	}
	if accepted.Status != OfferStatusAccepted || accepted.RespondedAt == nil {
		t.Fatalf("accept result: %+v", accepted)
	}

	// accepting twice conflicts
	if _, err := AcceptCoverage(ctx, offer.ID, nil); err == nil {
		t.Fatalf("second accept should conflict")
	}

	var callout CalloutEvent
	if err := db.WithContext(ctx).Where("id = ?", event.ID).First(&callout).Error; err != nil {
		t.Fatalf("reload callout: %v", err)
	}
	if callout.Status != CalloutStatusCovered {
		t.Fatalf("callout should be COVERED, got %s", callout.Status)
	}
	if callout.CoveredByStaffId == nil || *callout.CoveredByStaffId != candidate.ID {
		t.Fatalf("covered_by mismatch: %+v", callout.CoveredByStaffId)
	}
}

func TestExpiredOfferCannotBeAcceptedIntegration(t *testing.T) {
	ctx := integrationContext(t)
	db := config.GetDB()
	tenantId, _ := utils.GetTenantIdFromContext(ctx)

	candidate := Staff{TenantId: tenantId, StaffCode: "C-300", FullName: "Too Late", Role: RoleCleaner}
	if err := db.WithContext(ctx).Create(&candidate).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	event := CalloutEvent{TenantId: tenantId, Reason: "sick", Status: CalloutStatusOffered, ReportedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(&event).Error; err != nil {
		t.Fatalf("seed callout: %v", err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	offer := CoverageOffer{
		TenantId: tenantId, CalloutEventId: event.ID, CandidateStaffId: candidate.ID,
		Status: OfferStatusPending, OfferedAt: past.Add(-time.Hour), ExpiresAt: past,
	}
	if err := db.WithContext(ctx).Create(&offer).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}

	_, err := AcceptCoverage(ctx, offer.ID, nil)
	if err == nil {
		t.Fatalf("expired offer must not be acceptable")
	}
	if p := problem.FromError(err); p.Code != "SHIFT_004" {
		t.Fatalf("expected SHIFT_004, got %s", p.Code)
	}

	var reloaded CoverageOffer
	if err := db.WithContext(ctx).Where("id = ?", offer.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload offer: %v", err)
	}
	if reloaded.Status != OfferStatusExpired {
		t.Fatalf("offer should settle to EXPIRED, got %s", reloaded.Status)
	}
}
