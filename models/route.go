package models

import (
	"context"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/problem"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Route is a staff-owned shift container for one date.
type Route struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	TenantId     string     `gorm:"index;size:36;not null" json:"tenant_id"`
	RouteDate    string     `gorm:"index;size:10;not null" json:"route_date"`
	Status       string     `gorm:"size:20;not null;default:DRAFT" json:"status"`
	OwnerStaffId *string    `gorm:"index;size:36" json:"owner_staff_id"`
	Owner        *Staff     `gorm:"foreignKey:OwnerStaffId" json:"owner,omitempty"`
	Version      int        `gorm:"not null;default:1" json:"version"`
	ArchivedAt   *time.Time `gorm:"index" json:"archived_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Route) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RouteStop is one unit of scheduled work within a real route.
type RouteStop struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	TenantId       string     `gorm:"index;size:36;not null" json:"tenant_id"`
	RouteId        string     `gorm:"index;size:36;not null" json:"route_id"`
	StopOrder      int        `gorm:"not null" json:"stop_order"`
	StopStatus     string     `gorm:"size:20;not null;default:PENDING" json:"stop_status"`
	PlannedStartAt *time.Time `json:"planned_start_at"`
	PlannedEndAt   *time.Time `json:"planned_end_at"`
	ArrivedAt      *time.Time `json:"arrived_at"`
	DepartedAt     *time.Time `json:"departed_at"`
	SiteId         *string    `gorm:"index;size:36" json:"site_id"`
	Site           *Site      `gorm:"foreignKey:SiteId" json:"site,omitempty"`
	WorkTicketId   *string    `gorm:"index;size:36" json:"work_ticket_id"`
	SkipReason     *string    `gorm:"size:100" json:"skip_reason"`
	SkipNotes      *string    `gorm:"size:500" json:"skip_notes"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *RouteStop) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ListRoutesForDate fetches real routes for one date. ownerStaffId narrows to
// a single owner for field users; blank means tenant-wide (manager tier).
func ListRoutesForDate(ctx context.Context, date string, ownerStaffId string) ([]*Route, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).
		Preload("Owner").
		Where("route_date = ? AND archived_at IS NULL", date)
	if ownerStaffId != "" {
		q = q.Where("owner_staff_id = ?", ownerStaffId)
	}
	var routes []*Route
	if err := q.Find(&routes).Error; err != nil {
		return nil, err
	}
	return routes, nil
}

func ListRouteStopsByRouteIds(ctx context.Context, routeIds []string) ([]*RouteStop, error) {
	if len(routeIds) == 0 {
		return []*RouteStop{}, nil
	}
	db := config.GetDB()
	var stops []*RouteStop
	err := db.WithContext(ctx).
		Preload("Site").
		Where("route_id IN ?", routeIds).
		Order("route_id ASC, stop_order ASC").
		Find(&stops).Error
	if err != nil {
		return nil, err
	}
	return stops, nil
}

func fetchStopForUpdate(tx *gorm.DB, stopId string) (*RouteStop, error) {
	var stop RouteStop
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", stopId).
		First(&stop).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, problem.NotFound("route stop not found")
		}
		return nil, err
	}
	return &stop, nil
}

// StartRouteStop marks arrival at a stop (PENDING -> ARRIVED) and stamps
// arrived_at. The transition guard runs inside the row lock.
func StartRouteStop(ctx context.Context, stopId string) (*RouteStop, error) {
	db := config.GetDB()
	var updated *RouteStop
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stop, err := fetchStopForUpdate(tx, stopId)
		if err != nil {
			return err
		}
		next, err := NextStopStatus(stop.StopStatus, ActionArrive)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		stop.StopStatus = next
		stop.ArrivedAt = &now
		if err := tx.Model(&RouteStop{}).Where("id = ?", stop.ID).Updates(map[string]interface{}{
			"stop_status": next,
			"arrived_at":  &now,
		}).Error; err != nil {
			return err
		}
		updated = stop
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CompleteRouteStop marks departure (ARRIVED -> COMPLETED) and stamps
// departed_at.
func CompleteRouteStop(ctx context.Context, stopId string) (*RouteStop, error) {
	db := config.GetDB()
	var updated *RouteStop
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stop, err := fetchStopForUpdate(tx, stopId)
		if err != nil {
			return err
		}
		next, err := NextStopStatus(stop.StopStatus, ActionComplete)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		stop.StopStatus = next
		stop.DepartedAt = &now
		if err := tx.Model(&RouteStop{}).Where("id = ?", stop.ID).Updates(map[string]interface{}{
			"stop_status": next,
			"departed_at": &now,
		}).Error; err != nil {
			return err
		}
		updated = stop
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type SkipRouteStopInput struct {
	Reason string  `json:"reason" binding:"required"`
	Notes  *string `json:"notes"`
}

// SkipRouteStop records a skip with a mandatory reason. Only route-sourced
// stops can be skipped; ticket-sourced stops have no skip path.
func SkipRouteStop(ctx context.Context, stopId string, input *SkipRouteStopInput) (*RouteStop, error) {
	if input == nil || input.Reason == "" {
		return nil, problem.Validation("skip requires a reason")
	}
	db := config.GetDB()
	var updated *RouteStop
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stop, err := fetchStopForUpdate(tx, stopId)
		if err != nil {
			return err
		}
		next, err := NextStopStatus(stop.StopStatus, ActionSkip)
		if err != nil {
			return err
		}
		stop.StopStatus = next
		stop.SkipReason = &input.Reason
		stop.SkipNotes = input.Notes
		if err := tx.Model(&RouteStop{}).Where("id = ?", stop.ID).Updates(map[string]interface{}{
			"stop_status": next,
			"skip_reason": &input.Reason,
			"skip_notes":  input.Notes,
		}).Error; err != nil {
			return err
		}
		updated = stop
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
