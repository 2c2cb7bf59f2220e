package models

import "testing"

func TestRolePredicates(t *testing.T) {
	cases := []struct {
		roles          []string
		routeExecution bool
		coverage       bool
		payroll        bool
		managerTier    bool
	}{
		{[]string{RoleCleaner}, true, false, false, false},
		{[]string{RoleSupervisor}, true, true, false, true},
		{[]string{RoleManager}, true, true, true, true},
		{[]string{RoleOwnerAdmin}, true, true, true, true},
		{[]string{RoleSales}, false, false, false, false},
		{[]string{RoleInspector}, false, false, false, false},
		{[]string{RoleSales, RoleCleaner}, true, false, false, false},
		{nil, false, false, false, false},
	}
	for _, tc := range cases {
		if got := CanOperateRouteExecution(tc.roles); got != tc.routeExecution {
			t.Fatalf("%v route execution: got %v", tc.roles, got)
		}
		if got := CanManageCoverage(tc.roles); got != tc.coverage {
			t.Fatalf("%v coverage: got %v", tc.roles, got)
		}
		if got := CanManagePayroll(tc.roles); got != tc.payroll {
			t.Fatalf("%v payroll: got %v", tc.roles, got)
		}
		if got := IsManagerTier(tc.roles); got != tc.managerTier {
			t.Fatalf("%v manager tier: got %v", tc.roles, got)
		}
	}
}

func TestFieldRolesCanReportAndRespond(t *testing.T) {
	for _, role := range []string{RoleCleaner, RoleSupervisor, RoleManager, RoleOwnerAdmin} {
		if !CanReportCallout([]string{role}) {
			t.Fatalf("%s should report callouts", role)
		}
		if !CanRespondCoverage([]string{role}) {
			t.Fatalf("%s should respond to coverage offers", role)
		}
	}
	for _, role := range []string{RoleSales, RoleInspector} {
		if CanReportCallout([]string{role}) {
			t.Fatalf("%s should not report callouts", role)
		}
	}
}
