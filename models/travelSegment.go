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

// TravelSegment records travel between two stops on a route, captured by the
// field app when the staff member departs one site for the next.
type TravelSegment struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	TenantId      string     `gorm:"index;size:36;not null" json:"tenant_id"`
	RouteId       string     `gorm:"index;size:36;not null" json:"route_id"`
	FromStopId    *string    `gorm:"size:36" json:"from_stop_id"`
	ToStopId      string     `gorm:"size:36;not null" json:"to_stop_id"`
	TravelStartAt time.Time  `json:"travel_start_at"`
	TravelEndAt   *time.Time `json:"travel_end_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (t *TravelSegment) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type NewTravelSegment struct {
	RouteId       string     `json:"route_id" binding:"required"`
	FromStopId    *string    `json:"from_stop_id"`
	ToStopId      string     `json:"to_stop_id" binding:"required"`
	TravelStartAt time.Time  `json:"travel_start_at" binding:"required"`
	TravelEndAt   *time.Time `json:"travel_end_at"`
}

// CaptureTravelSegment validates the stop references belong to the route and
// records the segment.
func CaptureTravelSegment(ctx context.Context, input *NewTravelSegment) (*TravelSegment, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}

	if err := utils.ValidateResourceId[Route](ctx, tenantId, input.RouteId); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, problem.NotFound("route not found")
		}
		return nil, err
	}

	stopIds := []string{input.ToStopId}
	if input.FromStopId != nil {
		stopIds = append(stopIds, *input.FromStopId)
	}
	count, err := utils.ResourceCountWhere[RouteStop](ctx, tenantId, "id IN ? AND route_id = ?", stopIds, input.RouteId)
	if err != nil {
		return nil, err
	}
	if count != int64(len(stopIds)) {
		return nil, problem.Validation("travel segment stops must belong to the route")
	}

	if input.TravelEndAt != nil && input.TravelEndAt.Before(input.TravelStartAt) {
		return nil, problem.Validation("travel_end_at must not precede travel_start_at")
	}

	segment := TravelSegment{
		TenantId:      tenantId,
		RouteId:       input.RouteId,
		FromStopId:    input.FromStopId,
		ToStopId:      input.ToStopId,
		TravelStartAt: input.TravelStartAt,
		TravelEndAt:   input.TravelEndAt,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&segment).Error; err != nil {
		return nil, err
	}
	return &segment, nil
}
