package models

import (
	"context"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Timesheet is an approved per-staff hour record for one work date. Payroll
// aggregates these over a period; unapproved rows never reach an export.
type Timesheet struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	TenantId      string          `gorm:"index;size:36;not null" json:"tenant_id"`
	StaffId       string          `gorm:"index;size:36;not null" json:"staff_id"`
	Staff         *Staff          `gorm:"foreignKey:StaffId" json:"staff,omitempty"`
	WorkDate      string          `gorm:"index;size:10;not null" json:"work_date"`
	RegularHours  decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"regular_hours"`
	OvertimeHours decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"overtime_hours"`
	BreakHours    decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"break_hours"`
	IsApproved    bool            `gorm:"index" json:"is_approved"`
	ArchivedAt    *time.Time      `gorm:"index" json:"archived_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Timesheet) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// listApprovedTimesheets fetches approved rows whose work_date falls inside
// [periodStart, periodEnd], staff preloaded for code/name/rate resolution.
func listApprovedTimesheets(ctx context.Context, periodStart, periodEnd string) ([]*Timesheet, error) {
	db := config.GetDB()
	var sheets []*Timesheet
	err := db.WithContext(ctx).
		Preload("Staff").
		Where("work_date >= ? AND work_date <= ?", periodStart, periodEnd).
		Where("is_approved = ? AND archived_at IS NULL", true).
		Order("work_date ASC").
		Find(&sheets).Error
	if err != nil {
		return nil, err
	}
	return sheets, nil
}
