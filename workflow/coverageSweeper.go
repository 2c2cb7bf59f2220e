package workflow

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/gleamops/fieldops_backend/config"
	"github.com/gleamops/fieldops_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CoverageSweeper is the background loop behind callout automation. Each
// cycle it settles PENDING offers whose expiry has passed, then escalates
// callouts left with no live offer. Safe to run on multiple instances; a
// best-effort redis leader lock keeps cycles from overlapping.
type CoverageSweeper struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	SweeperID string

	BatchSize          int
	PollInterval       time.Duration
	MaxEscalationLevel int
}

func NewCoverageSweeper(db *gorm.DB, logger *logrus.Logger) *CoverageSweeper {
	return &CoverageSweeper{
		DB:                 db,
		Logger:             logger,
		SweeperID:          uuid.NewString(),
		BatchSize:          100,
		PollInterval:       30 * time.Second,
		MaxEscalationLevel: 2,
	}
}

func (s *CoverageSweeper) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.PollInterval):
		}
	}
}

func (s *CoverageSweeper) sweepOnce(ctx context.Context) {
	if s.DB == nil {
		return
	}

	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, "CoverageSweeper:leader", s.PollInterval, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer lock.Release(context.Background())
		}
		// on other redis errors, sweep anyway; both steps are idempotent
	}

	expired := s.expireOffers(ctx)
	escalated := s.escalateCallouts(ctx)
	if (expired > 0 || escalated > 0) && s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"field":      "CoverageSweeper",
			"sweeper_id": s.SweeperID,
			"expired":    expired,
			"escalated":  escalated,
		}).Info("coverage sweep applied changes")
	}
}

// expireOffers settles PENDING offers past their expiry. Row-locked with
// SKIP LOCKED so a concurrent accept wins the race cleanly.
func (s *CoverageSweeper) expireOffers(ctx context.Context) int {
	now := time.Now().UTC()
	count := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var offers []models.CoverageOffer
		err := tx.
			Where("status = ? AND expires_at <= ?", models.OfferStatusPending, now).
			Order("expires_at ASC").
			Limit(s.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&offers).Error
		if err != nil {
			return err
		}
		for i := range offers {
			if err := tx.Model(&models.CoverageOffer{}).Where("id = ?", offers[i].ID).
				Update("status", models.OfferStatusExpired).Error; err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil && s.Logger != nil {
		config.LogError(s.Logger, "workflow", "expireOffers", "sweep", nil, err)
	}
	return count
}

// escalationOutcome decides where a stranded callout goes next. Below the cap
// it returns to REPORTED one level up, for fresh triage; at or past the cap it
// goes terminal as ESCALATED and the level stops moving.
func escalationOutcome(level, maxLevel int) (string, int) {
	if level >= maxLevel {
		return models.CalloutStatusEscalated, level
	}
	return models.CalloutStatusReported, level + 1
}

// escalateCallouts advances OFFERED callouts whose offers have all lapsed:
// below the cap they bump escalation_level and return to REPORTED for fresh
// triage; at the cap they go terminal as ESCALATED.
func (s *CoverageSweeper) escalateCallouts(ctx context.Context) int {
	count := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var callouts []models.CalloutEvent
		err := tx.
			Where("status = ?", models.CalloutStatusOffered).
			Where("NOT EXISTS (SELECT 1 FROM coverage_offers o WHERE o.callout_event_id = callout_events.id AND o.status = ?)", models.OfferStatusPending).
			Order("reported_at ASC").
			Limit(s.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&callouts).Error
		if err != nil {
			return err
		}
		for i := range callouts {
			status, level := escalationOutcome(callouts[i].EscalationLevel, s.MaxEscalationLevel)
			changes := map[string]interface{}{"status": status}
			if level != callouts[i].EscalationLevel {
				changes["escalation_level"] = level
			}
			if err := tx.Model(&models.CalloutEvent{}).Where("id = ?", callouts[i].ID).
				Updates(changes).Error; err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil && s.Logger != nil {
		config.LogError(s.Logger, "workflow", "escalateCallouts", "sweep", nil, err)
	}
	return count
}
