package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User exists for seeding and token issuance; authentication itself is
// handled by the surrounding platform.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TenantId  string    `gorm:"index;size:36;not null" json:"tenant_id"`
	Username  string    `gorm:"index;size:100;not null" json:"username"`
	Role      string    `gorm:"size:30" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
