package service

import (
	"context"

	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
	"github.com/smallbiznis/vetsub/internal/clock"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	"gorm.io/gorm"
)

// StatusSync keeps clinics.status equal to what the resolver derives from the
// clinic's records. It must run on the transaction that changed the records,
// after the clinic row lock was taken.
type StatusSync struct {
	repo       subscriptiondomain.Repository
	clinicRepo clinicdomain.Repository
	clock      clock.Clock
}

func NewStatusSync(repo subscriptiondomain.Repository, clinicRepo clinicdomain.Repository, c clock.Clock) *StatusSync {
	return &StatusSync{repo: repo, clinicRepo: clinicRepo, clock: c}
}

// Sync recomputes and persists the clinic status, updating clinic in place.
func (s *StatusSync) Sync(ctx context.Context, tx *gorm.DB, clinic *clinicdomain.Clinic) (clinicdomain.ClinicStatus, error) {
	statuses, err := s.repo.ListStatusesByClinic(ctx, tx, clinic.ID)
	if err != nil {
		return "", err
	}

	resolved := subscriptiondomain.ResolveClinicStatus(statuses...)
	if resolved == clinic.Status {
		return resolved, nil
	}

	now := s.clock.Now().UTC()
	if err := s.clinicRepo.UpdateStatus(ctx, tx, clinic.ID, resolved, now); err != nil {
		return "", err
	}
	clinic.Status = resolved
	clinic.UpdatedAt = now
	return resolved, nil
}
