package config

import (
	"os"
	"strings"
)

func flagEnabled(envKey string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(envKey)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// FeatureShiftsTime is the base pilot flag for the Tonight Board.
// Every capability flag below requires it in addition to its own flag.
//
// Set via env:
// - FF_SHIFTS_TIME_V1=true
func FeatureShiftsTime() bool {
	return flagEnabled("FF_SHIFTS_TIME_V1")
}

// FeatureRouteExecution gates arrive/complete/skip stop actions and the board itself.
//
// Set via env:
// - FF_SHIFTS_TIME_ROUTE_EXECUTION=true
func FeatureRouteExecution() bool {
	return FeatureShiftsTime() && flagEnabled("FF_SHIFTS_TIME_ROUTE_EXECUTION")
}

// FeatureCalloutAutomation gates callout reporting and coverage offers.
//
// Set via env:
// - FF_SHIFTS_TIME_CALLOUT_AUTOMATION=true
func FeatureCalloutAutomation() bool {
	return FeatureShiftsTime() && flagEnabled("FF_SHIFTS_TIME_CALLOUT_AUTOMATION")
}

// FeaturePayrollExport gates payroll mapping management and export runs.
//
// Set via env:
// - FF_SHIFTS_TIME_PAYROLL_EXPORT_V1=true
func FeaturePayrollExport() bool {
	return FeatureShiftsTime() && flagEnabled("FF_SHIFTS_TIME_PAYROLL_EXPORT_V1")
}
