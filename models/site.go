package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Site struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	TenantId   string     `gorm:"index;size:36;not null" json:"tenant_id"`
	SiteCode   string     `gorm:"index;size:30" json:"site_code"`
	Name       string     `gorm:"size:200" json:"name"`
	ArchivedAt *time.Time `gorm:"index" json:"archived_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Site) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
