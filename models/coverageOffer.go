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

// CoverageOffer is a time-bounded proposal for a candidate to cover a callout.
// Accept-or-expire lifecycle; never mutated outside offer/accept/sweeper.
type CoverageOffer struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	TenantId         string     `gorm:"index;size:36;not null" json:"tenant_id"`
	CalloutEventId   string     `gorm:"index;size:36;not null" json:"callout_event_id"`
	CandidateStaffId string     `gorm:"index;size:36;not null" json:"candidate_staff_id"`
	Status           string     `gorm:"size:20;not null;default:PENDING" json:"status"`
	OfferedAt        time.Time  `gorm:"not null" json:"offered_at"`
	ExpiresAt        time.Time  `gorm:"index;not null" json:"expires_at"`
	RespondedAt      *time.Time `json:"responded_at"`
	ResponseNote     *string    `gorm:"size:500" json:"response_note"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *CoverageOffer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

type NewCoverageOffer struct {
	CalloutEventId   string `json:"callout_event_id" binding:"required"`
	CandidateStaffId string `json:"candidate_staff_id" binding:"required"`
	ExpiresInMinutes int    `json:"expires_in_minutes" binding:"required"`
}

// OfferCoverage creates a PENDING offer bound to a callout and moves the
// callout to OFFERED. Coverage managers only (enforced by the handler's role
// gate); expiry must be within [1,1440] minutes.
func OfferCoverage(ctx context.Context, input *NewCoverageOffer) (*CoverageOffer, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, problem.Unauthenticated()
	}
	if input.ExpiresInMinutes < 1 || input.ExpiresInMinutes > 1440 {
		return nil, problem.Validation("expires_in_minutes must be between 1 and 1440")
	}

	if err := utils.ValidateResourceId[Staff](ctx, tenantId, input.CandidateStaffId); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, problem.NotFound("candidate staff not found")
		}
		return nil, err
	}

	db := config.GetDB()
	var offer *CoverageOffer
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var callout CalloutEvent
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", input.CalloutEventId).
			First(&callout).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return problem.NotFound("callout event not found")
			}
			return err
		}
		if callout.Status == CalloutStatusCovered {
			return problem.Conflict("callout is already covered")
		}

		now := time.Now().UTC()
		created := CoverageOffer{
			TenantId:         tenantId,
			CalloutEventId:   callout.ID,
			CandidateStaffId: input.CandidateStaffId,
			Status:           OfferStatusPending,
			OfferedAt:        now,
			ExpiresAt:        now.Add(time.Duration(input.ExpiresInMinutes) * time.Minute),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		if err := tx.Model(&CalloutEvent{}).Where("id = ?", callout.ID).
			Update("status", CalloutStatusOffered).Error; err != nil {
			return err
		}
		offer = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

type AcceptCoverageInput struct {
	ResponseNote *string `json:"response_note"`
}

// AcceptCoverage accepts a PENDING offer. Expiry and acceptance exclusivity
// are enforced here, inside the row lock: the transaction is the atomic
// procedure the rest of the system relies on.
func AcceptCoverage(ctx context.Context, offerId string, input *AcceptCoverageInput) (*CoverageOffer, error) {
	roles := rolesFromContext(ctx)
	callerStaffId, _ := utils.GetStaffIdFromContext(ctx)

	db := config.GetDB()
	var accepted *CoverageOffer
	var expiredConflict error
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var offer CoverageOffer
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", offerId).
			First(&offer).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return problem.NotFound("coverage offer not found")
			}
			return err
		}

		if !IsManagerTier(roles) && callerStaffId != offer.CandidateStaffId {
			return problem.Forbidden()
		}

		now := time.Now().UTC()
		if offer.Status != OfferStatusPending {
			return problem.Conflict("offer is no longer pending")
		}
		if now.After(offer.ExpiresAt) {
			// lazily settle the expiry; commit it, the conflict is reported
			// after the transaction so the status change is not rolled back
			if err := tx.Model(&CoverageOffer{}).Where("id = ?", offer.ID).
				Update("status", OfferStatusExpired).Error; err != nil {
				return err
			}
			expiredConflict = problem.Conflict("offer has expired")
			return nil
		}

		offer.Status = OfferStatusAccepted
		offer.RespondedAt = &now
		offer.ResponseNote = nil
		if input != nil {
			offer.ResponseNote = input.ResponseNote
		}
		if err := tx.Model(&CoverageOffer{}).Where("id = ?", offer.ID).Updates(map[string]interface{}{
			"status":        OfferStatusAccepted,
			"responded_at":  &now,
			"response_note": offer.ResponseNote,
		}).Error; err != nil {
			return err
		}

		if err := tx.Model(&CalloutEvent{}).Where("id = ?", offer.CalloutEventId).Updates(map[string]interface{}{
			"status":              CalloutStatusCovered,
			"covered_by_staff_id": offer.CandidateStaffId,
		}).Error; err != nil {
			return err
		}

		accepted = &offer
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expiredConflict != nil {
		return nil, expiredConflict
	}
	return accepted, nil
}
