package models

import (
	"context"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/problem"
	"github.com/gleamops/fieldops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CalloutEvent is an unplanned absence report. Created by report_callout,
// advanced by coverage offers and the escalation sweeper. Terminal states are
// COVERED and UNCOVERED/ESCALATED.
type CalloutEvent struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	TenantId          string     `gorm:"index;size:36;not null" json:"tenant_id"`
	Reason            string     `gorm:"size:100;not null" json:"reason"`
	Status            string     `gorm:"size:20;not null;default:REPORTED" json:"status"`
	EscalationLevel   int        `gorm:"not null;default:0" json:"escalation_level"`
	ReportedByStaffId *string    `gorm:"size:36" json:"reported_by_staff_id"`
	AffectedStaffId   *string    `gorm:"index;size:36" json:"affected_staff_id"`
	AffectedStaff     *Staff     `gorm:"foreignKey:AffectedStaffId" json:"affected_staff,omitempty"`
	RouteId           *string    `gorm:"size:36" json:"route_id"`
	RouteStopId       *string    `gorm:"size:36" json:"route_stop_id"`
	WorkTicketId      *string    `gorm:"size:36" json:"work_ticket_id"`
	SiteId            *string    `gorm:"size:36" json:"site_id"`
	Site              *Site      `gorm:"foreignKey:SiteId" json:"site,omitempty"`
	CoveredByStaffId  *string    `gorm:"size:36" json:"covered_by_staff_id"`
	CoveredByStaff    *Staff     `gorm:"foreignKey:CoveredByStaffId" json:"covered_by_staff,omitempty"`
	ResolutionNote    *string    `gorm:"size:500" json:"resolution_note"`
	ReportedAt        time.Time  `gorm:"index;not null" json:"reported_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *CalloutEvent) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type NewCalloutEvent struct {
	Reason          string  `json:"reason" binding:"required"`
	AffectedStaffId string  `json:"affected_staff_id" binding:"required"`
	RouteId         *string `json:"route_id"`
	RouteStopId     *string `json:"route_stop_id"`
	WorkTicketId    *string `json:"work_ticket_id"`
	SiteId          *string `json:"site_id"`
}

// ReportCallout creates a callout. Permitted for the affected staff member
// themself, or any coverage manager reporting on someone's behalf.
func ReportCallout(ctx context.Context, input *NewCalloutEvent) (*CalloutEvent, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}

	roles := rolesFromContext(ctx)
	callerStaffId, _ := utils.GetStaffIdFromContext(ctx)
	if !CanManageCoverage(roles) && callerStaffId != input.AffectedStaffId {
		return nil, problem.Forbidden()
	}

	if err := utils.ValidateResourceId[Staff](ctx, tenantId, input.AffectedStaffId); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, problem.NotFound("affected staff not found")
		}
		return nil, err
	}
	if input.RouteId != nil {
		if err := utils.ValidateResourceId[Route](ctx, tenantId, *input.RouteId); err != nil {
			if err == utils.ErrorRecordNotFound {
				return nil, problem.NotFound("route not found")
			}
			return nil, err
		}
	}
	if input.RouteStopId != nil {
		if err := utils.ValidateResourceId[RouteStop](ctx, tenantId, *input.RouteStopId); err != nil {
			if err == utils.ErrorRecordNotFound {
				return nil, problem.NotFound("route stop not found")
			}
			return nil, err
		}
	}
	if input.WorkTicketId != nil {
		if err := utils.ValidateResourceId[WorkTicket](ctx, tenantId, *input.WorkTicketId); err != nil {
			if err == utils.ErrorRecordNotFound {
				return nil, problem.NotFound("work ticket not found")
			}
			return nil, err
		}
	}

	event := CalloutEvent{
		TenantId:          tenantId,
		Reason:            input.Reason,
		Status:            CalloutStatusReported,
		ReportedByStaffId: utils.NilIfEmpty(callerStaffId),
		AffectedStaffId:   &input.AffectedStaffId,
		RouteId:           input.RouteId,
		RouteStopId:       input.RouteStopId,
		WorkTicketId:      input.WorkTicketId,
		SiteId:            input.SiteId,
		ReportedAt:        time.Now().UTC(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

type CalloutSummary struct {
	ID                string  `json:"id"`
	Reason            string  `json:"reason"`
	Status            string  `json:"status"`
	ReportedAt        string  `json:"reported_at"`
	EscalationLevel   int     `json:"escalation_level"`
	RouteId           *string `json:"route_id"`
	RouteStopId       *string `json:"route_stop_id"`
	AffectedStaffId   *string `json:"affected_staff_id"`
	AffectedStaffName *string `json:"affected_staff_name"`
	CoveredByStaffId  *string `json:"covered_by_staff_id"`
	CoveredByStaffName *string `json:"covered_by_staff_name"`
	SiteId            *string `json:"site_id"`
	SiteCode          *string `json:"site_code"`
	SiteName          *string `json:"site_name"`
}

// ListRecentCallouts returns callouts newest-first. staffId narrows to
// events affecting one staff member for field users (blank = tenant-wide).
func ListRecentCallouts(ctx context.Context, limit int, staffId string) ([]*CalloutSummary, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).
		Preload("AffectedStaff").
		Preload("CoveredByStaff").
		Preload("Site").
		Order("reported_at DESC").
		Limit(limit)
	if staffId != "" {
		q = q.Where("affected_staff_id = ?", staffId)
	}
	var events []*CalloutEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}

	summaries := make([]*CalloutSummary, 0, len(events))
	for _, e := range events {
		s := &CalloutSummary{
			ID:               e.ID,
			Reason:           e.Reason,
			Status:           e.Status,
			ReportedAt:       e.ReportedAt.UTC().Format(time.RFC3339),
			EscalationLevel:  e.EscalationLevel,
			RouteId:          e.RouteId,
			RouteStopId:      e.RouteStopId,
			AffectedStaffId:  e.AffectedStaffId,
			CoveredByStaffId: e.CoveredByStaffId,
			SiteId:           e.SiteId,
		}
		if e.AffectedStaff != nil {
			s.AffectedStaffName = utils.NilIfEmpty(e.AffectedStaff.FullName)
		}
		if e.CoveredByStaff != nil {
			s.CoveredByStaffName = utils.NilIfEmpty(e.CoveredByStaff.FullName)
		}
		if e.Site != nil {
			s.SiteCode = utils.NilIfEmpty(e.Site.SiteCode)
			s.SiteName = utils.NilIfEmpty(e.Site.Name)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
