package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/models"
	"github.com/gleamops/fieldops_backend/problem"
	"github.com/gleamops/fieldops_backend/utils"
	"github.com/go-playground/validator/v10"
)

// renderProblem writes any error as an RFC 9457 problem-details response.
func renderProblem(c *gin.Context, err error) {
	p := problem.FromError(err)
	p.Instance = c.Request.URL.Path
	_ = c.Error(err)
	c.JSON(p.Status, p)
}

// requireAuth rejects unauthenticated requests and returns the caller's roles.
func requireAuth(c *gin.Context) ([]string, bool) {
	userId, ok := utils.GetUserIdFromContext(c.Request.Context())
	if !ok || userId == "" {
		renderProblem(c, problem.Unauthenticated())
		return nil, false
	}
	roles, _ := utils.GetRolesFromContext(c.Request.Context())
	return roles, true
}

// requireFeature gates an operation on a capability flag. Disabled features
// render as 404, indistinguishable from a route that does not exist.
func requireFeature(c *gin.Context, enabled bool) bool {
	if !enabled {
		renderProblem(c, problem.FeatureDisabled("Feature disabled"))
		return false
	}
	return true
}

func requireRole(c *gin.Context, allowed bool) bool {
	if !allowed {
		renderProblem(c, problem.Forbidden())
		return false
	}
	return true
}

func bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		p := problem.Validation("request body failed validation")
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for field, tag := range utils.ProcessValidationErrors(err) {
				p.Errors = append(p.Errors, problem.FieldError{Field: field, Message: tag})
			}
		} else {
			p.Detail = err.Error()
		}
		renderProblem(c, p)
		return false
	}
	return true
}

func registerOperationRoutes(r *gin.Engine) {
	ops := r.Group("/api/operations/shifts-time")

	ops.GET("/tonight-board", tonightBoardHandler)

	ops.POST("/stops/:id/arrive", routeStopActionHandler(models.StartRouteStop))
	ops.POST("/stops/:id/complete", routeStopActionHandler(models.CompleteRouteStop))
	ops.POST("/stops/:id/skip", skipRouteStopHandler)
	ops.POST("/tickets/:id/start", ticketActionHandler(models.StartWorkTicket))
	ops.POST("/tickets/:id/complete", ticketActionHandler(models.CompleteWorkTicket))
	ops.POST("/travel-segments", captureTravelSegmentHandler)

	ops.POST("/callouts", reportCalloutHandler)
	ops.GET("/callouts", listCalloutsHandler)
	ops.GET("/coverage-candidates", listCoverageCandidatesHandler)
	ops.POST("/coverage-offers", offerCoverageHandler)
	ops.POST("/coverage-offers/:id/accept", acceptCoverageHandler)

	payroll := ops.Group("/payroll")
	payroll.POST("/mappings", createPayrollMappingHandler)
	payroll.GET("/mappings", listPayrollMappingsHandler)
	payroll.GET("/mappings/:id", getPayrollMappingHandler)
	payroll.PATCH("/mappings/:id", updatePayrollMappingHandler)
	payroll.DELETE("/mappings/:id", archivePayrollMappingHandler)
	payroll.PUT("/mappings/:id/fields", replaceMappingFieldsHandler)
	payroll.POST("/preview", previewPayrollExportHandler)
	payroll.POST("/runs/:id/finalize", finalizePayrollRunHandler)
	payroll.GET("/runs", listPayrollRunsHandler)
	payroll.GET("/runs/:id/artifact", downloadPayrollArtifactHandler)
}

// tonightBoardHandler is the one read that does not 404 on a disabled pilot:
// clients poll it to learn whether the pilot is on, so it answers with
// pilot_enabled=false instead.
func tonightBoardHandler(c *gin.Context) {
	roles, ok := requireAuth(c)
	if !ok {
		return
	}
	if !config.FeatureShiftsTime() {
		c.JSON(http.StatusOK, gin.H{
			"pilot_enabled": false,
			"features": gin.H{
				"route_execution":    false,
				"callout_automation": false,
				"payroll_export":     false,
			},
		})
		return
	}
	if !requireRole(c, models.CanOperateRouteExecution(roles) || models.IsManagerTier(roles)) {
		return
	}

	date := c.Query("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	board, err := models.GetTonightBoard(c.Request.Context(), date)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func routeStopActionHandler(action func(ctx context.Context, stopId string) (*models.RouteStop, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, ok := requireAuth(c)
		if !ok {
			return
		}
		if !requireFeature(c, config.FeatureRouteExecution()) {
			return
		}
		if !requireRole(c, models.CanOperateRouteExecution(roles)) {
			return
		}
		stop, err := action(c.Request.Context(), c.Param("id"))
		if err != nil {
			renderProblem(c, err)
			return
		}
		c.JSON(http.StatusOK, stop)
	}
}

func skipRouteStopHandler(c *gin.Context) {
	roles, ok := requireAuth(c)
	if !ok {
		return
	}
	if !requireFeature(c, config.FeatureRouteExecution()) {
		return
	}
	if !requireRole(c, models.CanOperateRouteExecution(roles)) {
		return
	}
	var input models.SkipRouteStopInput
	if !bindJSON(c, &input) {
		return
	}
	stop, err := models.SkipRouteStop(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, stop)
}

func ticketActionHandler(action func(ctx context.Context, ticketId string) (*models.WorkTicket, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, ok := requireAuth(c)
		if !ok {
			return
		}
		if !requireFeature(c, config.FeatureRouteExecution()) {
			return
		}
		if !requireRole(c, models.CanOperateRouteExecution(roles)) {
			return
		}
		ticket, err := action(c.Request.Context(), c.Param("id"))
		if err != nil {
			renderProblem(c, err)
			return
		}
		c.JSON(http.StatusOK, ticket)
	}
}

func captureTravelSegmentHandler(c *gin.Context) {
	roles, ok := requireAuth(c)
	if !ok {
		return
	}
	if !requireFeature(c, config.FeatureRouteExecution()) {
		return
	}
	if !requireRole(c, models.CanOperateRouteExecution(roles)) {
		return
	}
	var input models.NewTravelSegment
	if !bindJSON(c, &input) {
		return
	}
	segment, err := models.CaptureTravelSegment(c.Request.Context(), &input)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusCreated, segment)
}

func reportCalloutHandler(c *gin.Context) {
	roles, ok := requireAuth(c)
	if !ok {
		return
	}
	if !requireFeature(c, config.FeatureCalloutAutomation()) {
		return
	}
	if !requireRole(c, models.CanReportCallout(roles)) {
		return
	}
	var input models.NewCalloutEvent
	if !bindJSON(c, &input) {
		return
	}
	event, err := models.ReportCallout(c.Request.Context(), &input)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// listCalloutsHandler scopes by tier: manager tier reads tenant-wide with a
// wider page, field users only see their own events.
func listCalloutsHandler(c *gin.Context) {
	roles, ok := requireAuth(c)
	if !ok {
		return
	}
	if !requireFeature(c, config.FeatureCalloutAutomation()) {
		return
	}

	ctx := c.Request.Context()
	limit := 10
	staffScope := ""
	if models.IsManagerTier(roles) {
		limit = 50
	} else {
		userId, _ := utils.GetUserIdFromContext(ctx)
		staffId, err := models.FindStaffIdByUserId(ctx, userId)
		if err != nil {
			renderProblem(c, err)
			return
		}
		if staffId == "" {
			c.JSON(http.StatusOK, []*models.CalloutSummary{})
			return
		}
		staffScope = staffId
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= limit {
			limit = n
		}
	}

	callouts, err := models.ListRecentCallouts(ctx, limit, staffScope)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, callouts)
}

func listCoverageCandidatesHandler(c *gin.Context) {
	roles, ok := requireAuth(c)
	if !ok {
		return
	}
	if !requireFeature(c, config.FeatureCalloutAutomation()) {
		return
	}
	if !requireRole(c, models.IsManagerTier(roles)) {
		return
	}
	candidates, err := models.ListCoverageCandidates(c.Request.Context(), 250)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}

func offerCoverageHandler(c *gin.Context) {
	roles, ok := requireAuth(c)
	if !ok {
		return
	}
	if !requireFeature(c, config.FeatureCalloutAutomation()) {
		return
	}
	if !requireRole(c, models.CanManageCoverage(roles)) {
		return
	}
	var input models.NewCoverageOffer
	if !bindJSON(c, &input) {
		return
	}
	offer, err := models.OfferCoverage(c.Request.Context(), &input)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

func acceptCoverageHandler(c *gin.Context) {
	roles, ok := requireAuth(c)
	if !ok {
		return
	}
	if !requireFeature(c, config.FeatureCalloutAutomation()) {
		return
	}
	if !requireRole(c, models.CanRespondCoverage(roles)) {
		return
	}
	var input models.AcceptCoverageInput
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &input) {
			return
		}
	}
	offer, err := models.AcceptCoverage(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

// payrollGuard applies the shared feature and role gates for payroll routes.
func payrollGuard(c *gin.Context) bool {
	roles, ok := requireAuth(c)
	if !ok {
		return false
	}
	if !requireFeature(c, config.FeaturePayrollExport()) {
		return false
	}
	return requireRole(c, models.CanManagePayroll(roles))
}

func createPayrollMappingHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	var input models.NewPayrollMapping
	if !bindJSON(c, &input) {
		return
	}
	mapping, err := models.CreatePayrollMapping(c.Request.Context(), &input)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapping)
}

func listPayrollMappingsHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	mappings, err := models.ListActivePayrollMappings(c.Request.Context(), 50)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, mappings)
}

func getPayrollMappingHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	mapping, err := models.GetPayrollMapping(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, mapping)
}

func updatePayrollMappingHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	var input models.UpdatePayrollMappingInput
	if !bindJSON(c, &input) {
		return
	}
	mapping, err := models.UpdatePayrollMapping(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, mapping)
}

func archivePayrollMappingHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	mapping, err := models.ArchivePayrollMapping(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, mapping)
}

func replaceMappingFieldsHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	var input struct {
		Fields []*models.NewMappingField `json:"fields" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	fields, err := models.ReplaceMappingFields(c.Request.Context(), c.Param("id"), input.Fields)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

func previewPayrollExportHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	var input models.NewPayrollRun
	if !bindJSON(c, &input) {
		return
	}
	run, err := models.PreviewPayrollExport(c.Request.Context(), &input)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

func finalizePayrollRunHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	run, err := models.FinalizePayrollRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func listPayrollRunsHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	runs, err := models.ListRecentPayrollRuns(c.Request.Context(), 20)
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func downloadPayrollArtifactHandler(c *gin.Context) {
	if !payrollGuard(c) {
		return
	}
	artifact, err := models.GetPayrollRunArtifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderProblem(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+artifact.Name+"\"")
	c.Header("X-Artifact-Checksum", artifact.Checksum)
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}
