package models

import (
	"context"

	"github.com/gleamops/fieldops_backend/utils"
)

// Role predicates are pure functions over the caller's normalized role list.
// Each operation evaluates exactly one predicate before touching business logic.

func hasAnyRole(roles []string, wanted ...string) bool {
	for _, r := range roles {
		for _, w := range wanted {
			if r == w {
				return true
			}
		}
	}
	return false
}

// CanOperateRouteExecution covers field actions: arrive/complete/skip stops,
// start/complete tickets, travel capture.
func CanOperateRouteExecution(roles []string) bool {
	return hasAnyRole(roles, RoleCleaner, RoleSupervisor, RoleManager, RoleOwnerAdmin)
}

// CanManageCoverage covers offering coverage and tenant-wide callout triage.
func CanManageCoverage(roles []string) bool {
	return hasAnyRole(roles, RoleSupervisor, RoleManager, RoleOwnerAdmin)
}

// CanManagePayroll covers payroll mapping management and export runs.
func CanManagePayroll(roles []string) bool {
	return hasAnyRole(roles, RoleManager, RoleOwnerAdmin)
}

// CanReportCallout: any field-capable role may report; scoping to self is
// enforced separately in ReportCallout.
func CanReportCallout(roles []string) bool {
	return hasAnyRole(roles, RoleCleaner, RoleSupervisor, RoleManager, RoleOwnerAdmin)
}

// CanRespondCoverage covers accepting a coverage offer.
func CanRespondCoverage(roles []string) bool {
	return hasAnyRole(roles, RoleCleaner, RoleSupervisor, RoleManager, RoleOwnerAdmin)
}

// IsManagerTier widens board reads to the whole tenant.
func IsManagerTier(roles []string) bool {
	return CanManageCoverage(roles) || CanManagePayroll(roles)
}

func rolesFromContext(ctx context.Context) []string {
	roles, _ := utils.GetRolesFromContext(ctx)
	return roles
}
