package models

import (
	"context"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/problem"
	"github.com/gleamops/fieldops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkTicket is the older, independently-evolved scheduling representation.
// Tickets not yet promoted into a route are projected onto the board as
// virtual stops.
type WorkTicket struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	TenantId      string     `gorm:"index;size:36;not null" json:"tenant_id"`
	TicketCode    string     `gorm:"index;size:30" json:"ticket_code"`
	SiteId        *string    `gorm:"index;size:36" json:"site_id"`
	Site          *Site      `gorm:"foreignKey:SiteId" json:"site,omitempty"`
	ScheduledDate string     `gorm:"index;size:10;not null" json:"scheduled_date"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Status        string     `gorm:"size:20;not null;default:SCHEDULED" json:"status"`
	ArchivedAt    *time.Time `gorm:"index" json:"archived_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *WorkTicket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type TicketAssignment struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	TenantId         string    `gorm:"index;size:36;not null" json:"tenant_id"`
	TicketId         string    `gorm:"index;size:36;not null" json:"ticket_id"`
	Ticket           *WorkTicket `gorm:"foreignKey:TicketId" json:"ticket,omitempty"`
	StaffId          string    `gorm:"index;size:36;not null" json:"staff_id"`
	Staff            *Staff    `gorm:"foreignKey:StaffId" json:"staff,omitempty"`
	AssignmentStatus string    `gorm:"size:20;not null;default:ASSIGNED" json:"assignment_status"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *TicketAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// AssignedTicket is the flattened reconciler input for one ASSIGNED
// ticket/staff pair on the target date.
type AssignedTicket struct {
	TicketId     string
	TicketStatus string
	StaffId      string
	StaffCode    string
	StaffName    string
	SiteId       string
	SiteCode     string
	SiteName     string
	StartTime    *time.Time
	EndTime      *time.Time
}

// ListAssignedTicketsForDate fetches ASSIGNED ticket assignments scheduled on
// the date, scoped to one staff member for field users (blank = tenant-wide).
func ListAssignedTicketsForDate(ctx context.Context, date string, staffId string) ([]*AssignedTicket, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).
		Preload("Ticket").
		Preload("Ticket.Site").
		Preload("Staff").
		Joins("JOIN work_tickets ON work_tickets.id = ticket_assignments.ticket_id").
		Where("ticket_assignments.assignment_status = ?", AssignmentStatusAssigned).
		Where("work_tickets.scheduled_date = ? AND work_tickets.archived_at IS NULL", date)
	if staffId != "" {
		q = q.Where("ticket_assignments.staff_id = ?", staffId)
	}
	var assignments []*TicketAssignment
	if err := q.Find(&assignments).Error; err != nil {
		return nil, err
	}

	tickets := make([]*AssignedTicket, 0, len(assignments))
	for _, a := range assignments {
		if a.Ticket == nil {
			continue
		}
		t := &AssignedTicket{
			TicketId:     a.TicketId,
			TicketStatus: a.Ticket.Status,
			StaffId:      a.StaffId,
			StartTime:    a.Ticket.StartTime,
			EndTime:      a.Ticket.EndTime,
		}
		if a.Staff != nil {
			t.StaffCode = a.Staff.StaffCode
			t.StaffName = a.Staff.FullName
		}
		if a.Ticket.Site != nil {
			t.SiteId = a.Ticket.Site.ID
			t.SiteCode = a.Ticket.Site.SiteCode
			t.SiteName = a.Ticket.Site.Name
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// authorizeTicketAction enforces the trust boundary: manager tier, or an
// explicit ASSIGNED relationship between the caller's staff id and the ticket.
func authorizeTicketAction(ctx context.Context, ticketId string) error {
	roles := rolesFromContext(ctx)
	if IsManagerTier(roles) {
		return nil
	}
	staffId, _ := utils.GetStaffIdFromContext(ctx)
	if staffId == "" {
		return problem.Forbidden()
	}
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&TicketAssignment{}).
		Where("ticket_id = ? AND staff_id = ? AND assignment_status = ?", ticketId, staffId, AssignmentStatusAssigned).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return problem.Forbidden()
	}
	return nil
}

func applyTicketActionTx(ctx context.Context, ticketId string, action string) (*WorkTicket, error) {
	if err := authorizeTicketAction(ctx, ticketId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var updated *WorkTicket
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ticket WorkTicket
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", ticketId).
			First(&ticket).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return problem.NotFound("work ticket not found")
			}
			return err
		}

		next, changed, err := ApplyTicketAction(ticket.Status, action)
		if err != nil {
			return err
		}
		if !changed {
			// idempotent no-op, return the ticket as-is
			updated = &ticket
			return nil
		}

		now := time.Now().UTC()
		changes := map[string]interface{}{"status": next}
		if next == TicketStatusInProgress && ticket.StartTime == nil {
			changes["start_time"] = &now
		}
		if next == TicketStatusCompleted {
			changes["end_time"] = &now
		}
		if err := tx.Model(&WorkTicket{}).Where("id = ?", ticket.ID).Updates(changes).Error; err != nil {
			return err
		}
		ticket.Status = next
		updated = &ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// StartWorkTicket moves a ticket to IN_PROGRESS (ticket-sourced "arrive").
func StartWorkTicket(ctx context.Context, ticketId string) (*WorkTicket, error) {
	return applyTicketActionTx(ctx, ticketId, ActionStart)
}

// CompleteWorkTicket moves a ticket to COMPLETED (ticket-sourced "complete").
func CompleteWorkTicket(ctx context.Context, ticketId string) (*WorkTicket, error) {
	return applyTicketActionTx(ctx, ticketId, ActionComplete)
}
