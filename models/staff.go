package models

import (
	"context"
	"time"

	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Staff struct {
	ID                  string           `gorm:"primaryKey;size:36" json:"id"`
	TenantId            string           `gorm:"index;size:36;not null" json:"tenant_id"`
	UserId              *string          `gorm:"index;size:36" json:"user_id"`
	StaffCode           string           `gorm:"index;size:30" json:"staff_code"`
	FullName            string           `gorm:"size:200" json:"full_name"`
	Role                string           `gorm:"size:30" json:"role"`
	PayRate             *decimal.Decimal `gorm:"type:decimal(12,4)" json:"pay_rate"`
	IsCoverageCandidate bool             `json:"is_coverage_candidate"`
	ArchivedAt          *time.Time       `gorm:"index" json:"archived_at"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Staff) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// FindStaffIdByUserId resolves the caller's staff profile. Returns "" when the
// user has no linked staff row; that is a valid state, not an error.
// Cached in redis for a short window since every board read needs it.
func FindStaffIdByUserId(ctx context.Context, userId string) (string, error) {
	tenantId, _ := utils.GetTenantIdFromContext(ctx)
	cacheKey := "StaffByUser:" + tenantId + ":" + userId
	if cached, found, err := config.GetRedisValue(cacheKey); err == nil && found {
		if cached == "-" {
			return "", nil
		}
		return cached, nil
	}

	db := config.GetDB()
	var staffId string
	err := db.WithContext(ctx).Model(&Staff{}).
		Where("user_id = ? AND archived_at IS NULL", userId).
		Limit(1).
		Pluck("id", &staffId).Error
	if err != nil {
		return "", err
	}

	cacheValue := staffId
	if cacheValue == "" {
		// negative cache so missing links don't hammer the DB
		cacheValue = "-"
	}
	_ = config.SetRedisValue(cacheKey, cacheValue, 5*time.Minute)

	return staffId, nil
}

type CoverageCandidate struct {
	StaffId   string  `json:"staff_id"`
	StaffCode *string `json:"staff_code"`
	FullName  *string `json:"full_name"`
}

// ListCoverageCandidates returns active staff flagged for coverage work,
// ordered by name. Manager-only view; the handler enforces that.
func ListCoverageCandidates(ctx context.Context, limit int) ([]*CoverageCandidate, error) {
	db := config.GetDB()
	var staff []Staff
	err := db.WithContext(ctx).
		Where("is_coverage_candidate = ? AND archived_at IS NULL", true).
		Order("full_name ASC").
		Limit(limit).
		Find(&staff).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]*CoverageCandidate, 0, len(staff))
	for i := range staff {
		candidates = append(candidates, &CoverageCandidate{
			StaffId:   staff[i].ID,
			StaffCode: utils.NilIfEmpty(staff[i].StaffCode),
			FullName:  utils.NilIfEmpty(staff[i].FullName),
		})
	}
	return candidates, nil
}
