// seed-dev populates a local database with a small tenant for board work:
// two field staff with a route and tickets for today, a manager, timesheets
// for the current week and one payroll mapping. Prints dev JWTs on success.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/models"
	"github.com/gleamops/fieldops_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func must(err error, what string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed-dev: %s: %v\n", what, err)
		os.Exit(1)
	}
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	tenantId := uuid.NewString()
	ctx = utils.SetTenantIdInContext(ctx, tenantId)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	today := time.Now().UTC().Format("2006-01-02")

	manager := models.User{TenantId: tenantId, Username: "dev-manager", Role: models.RoleManager}
	cleaner := models.User{TenantId: tenantId, Username: "dev-cleaner", Role: models.RoleCleaner}
	must(db.WithContext(ctx).Create(&manager).Error, "create manager user")
	must(db.WithContext(ctx).Create(&cleaner).Error, "create cleaner user")

	rate := decimal.NewFromFloat(18.50)
	cleanerStaff := models.Staff{
		TenantId: tenantId, UserId: &cleaner.ID, StaffCode: "C-001",
		FullName: "Dana Field", Role: models.RoleCleaner,
		PayRate: &rate, IsCoverageCandidate: true,
	}
	backupStaff := models.Staff{
		TenantId: tenantId, StaffCode: "C-002",
		FullName: "Sam Cover", Role: models.RoleCleaner,
		PayRate: &rate, IsCoverageCandidate: true,
	}
	must(db.WithContext(ctx).Create(&cleanerStaff).Error, "create cleaner staff")
	must(db.WithContext(ctx).Create(&backupStaff).Error, "create backup staff")

	siteA := models.Site{TenantId: tenantId, SiteCode: "HQ-01", Name: "Harbor Plaza"}
	siteB := models.Site{TenantId: tenantId, SiteCode: "HQ-02", Name: "Lakeside Offices"}
	must(db.WithContext(ctx).Create(&siteA).Error, "create site A")
	must(db.WithContext(ctx).Create(&siteB).Error, "create site B")

	route := models.Route{
		TenantId: tenantId, RouteDate: today,
		Status: models.RouteStatusPublished, OwnerStaffId: &cleanerStaff.ID,
	}
	must(db.WithContext(ctx).Create(&route).Error, "create route")

	start1 := time.Now().UTC().Add(1 * time.Hour)
	start2 := time.Now().UTC().Add(3 * time.Hour)
	stops := []*models.RouteStop{
		{TenantId: tenantId, RouteId: route.ID, StopOrder: 1, StopStatus: models.StopStatusPending, SiteId: &siteA.ID, PlannedStartAt: &start1},
		{TenantId: tenantId, RouteId: route.ID, StopOrder: 2, StopStatus: models.StopStatusPending, SiteId: &siteB.ID, PlannedStartAt: &start2},
	}
	must(db.WithContext(ctx).Create(&stops).Error, "create route stops")

	ticket := models.WorkTicket{
		TenantId: tenantId, TicketCode: "T-1001", SiteId: &siteB.ID,
		ScheduledDate: today, Status: models.TicketStatusScheduled,
	}
	must(db.WithContext(ctx).Create(&ticket).Error, "create work ticket")
	assignment := models.TicketAssignment{
		TenantId: tenantId, TicketId: ticket.ID, StaffId: cleanerStaff.ID,
		AssignmentStatus: models.AssignmentStatusAssigned,
	}
	must(db.WithContext(ctx).Create(&assignment).Error, "create ticket assignment")

	weekStart := time.Now().UTC().AddDate(0, 0, -int(time.Now().UTC().Weekday()))
	for d := 0; d < 5; d++ {
		sheet := models.Timesheet{
			TenantId: tenantId, StaffId: cleanerStaff.ID,
			WorkDate:      weekStart.AddDate(0, 0, d).Format("2006-01-02"),
			RegularHours:  decimal.NewFromInt(8),
			OvertimeHours: decimal.Zero,
			BreakHours:    decimal.NewFromFloat(0.5),
			IsApproved:    true,
		}
		must(db.WithContext(ctx).Create(&sheet).Error, "create timesheet")
	}

	src := func(s string) *string { return &s }
	mapping := models.PayrollMapping{
		TenantId: tenantId, TemplateName: "Default Weekly", Delimiter: ",",
		DecimalFormat: "0.00", DateFormat: "2006-01-02",
		IsDefault: true, IsActive: true, Version: 1,
		Fields: []*models.PayrollMappingField{
			{TenantId: tenantId, SortOrder: 1, OutputColumnName: "Employee ID", SourceField: src(models.SourceFieldStaffCode), IsEnabled: true, IsRequired: true},
			{TenantId: tenantId, SortOrder: 2, OutputColumnName: "Name", SourceField: src(models.SourceFieldStaffName), IsEnabled: true},
			{TenantId: tenantId, SortOrder: 3, OutputColumnName: "Hours", SourceField: src(models.SourceFieldTotalHours), IsEnabled: true},
			{TenantId: tenantId, SortOrder: 4, OutputColumnName: "Gross", SourceField: src(models.SourceFieldGrossPay), IsEnabled: true},
		},
	}
	must(db.WithContext(ctx).Create(&mapping).Error, "create payroll mapping")

	if os.Getenv("TOKEN_HOUR_LIFESPAN") == "" {
		_ = os.Setenv("TOKEN_HOUR_LIFESPAN", "24")
	}
	managerToken, err := utils.JwtGenerate(manager.ID, tenantId, "", []string{models.RoleManager})
	must(err, "issue manager token")
	cleanerToken, err := utils.JwtGenerate(cleaner.ID, tenantId, cleanerStaff.ID, []string{models.RoleCleaner})
	must(err, "issue cleaner token")

	fmt.Printf("tenant_id: %s\n", tenantId)
	fmt.Printf("manager token:\n%s\n", managerToken)
	fmt.Printf("cleaner token:\n%s\n", cleanerToken)
}
