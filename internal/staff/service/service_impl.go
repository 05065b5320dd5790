package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/vetsub/internal/audit/masking"
	auditdomain "github.com/smallbiznis/vetsub/internal/audit/domain"
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
	"github.com/smallbiznis/vetsub/internal/clock"
	obscontext "github.com/smallbiznis/vetsub/internal/observability/context"
	"github.com/smallbiznis/vetsub/internal/observability/logger"
	"github.com/smallbiznis/vetsub/internal/observability/metrics"
	staffdomain "github.com/smallbiznis/vetsub/internal/staff/domain"
	"github.com/smallbiznis/vetsub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       staffdomain.Repository
	ClinicRepo clinicdomain.Repository
	Guard      *Guard
	AuditSvc   auditdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       staffdomain.Repository
	clinicRepo clinicdomain.Repository
	guard      *Guard
	auditsvc   auditdomain.Service
	metrics    *metrics.Metrics
	validate   *validator.Validate
}

func NewService(p Params) staffdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("staff.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		clinicRepo: p.ClinicRepo,
		guard:      p.Guard,
		auditsvc:   p.AuditSvc,
		metrics:    p.Metrics,
		validate:   validator.New(),
	}
}

func (s *Service) Create(ctx context.Context, req staffdomain.CreateStaffRequest) (staffdomain.StaffAccount, error) {
	clinicID, err := parseID(req.ClinicID, staffdomain.ErrInvalidClinic)
	if err != nil {
		return staffdomain.StaffAccount{}, err
	}

	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return staffdomain.StaffAccount{}, staffdomain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return staffdomain.StaffAccount{}, staffdomain.ErrInvalidEmail
	}
	role := staffdomain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		return staffdomain.StaffAccount{}, staffdomain.ErrInvalidRole
	}
	if len(req.Password) < minPasswordLength {
		return staffdomain.StaffAccount{}, staffdomain.ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return staffdomain.StaffAccount{}, err
	}

	now := s.clock.Now().UTC()
	account := staffdomain.StaffAccount{
		ID:           s.genID.Generate(),
		ClinicID:     clinicID,
		FullName:     fullName,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockClinic(ctx, tx, clinicID); err != nil {
			return err
		}
		if _, err := s.guard.Check(ctx, tx, clinicID); err != nil {
			return err
		}

		if err := s.repo.Insert(ctx, tx, &account); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return staffdomain.ErrDuplicateEmail
			}
			return err
		}
		return s.audit(ctx, tx, auditdomain.ActionStaffCreate, account)
	})
	if err != nil {
		s.denied(ctx, err)
		return staffdomain.StaffAccount{}, err
	}

	logger.WithContext(ctx, s.log).Info("staff account created",
		zap.String("clinic_id", clinicID.String()),
		zap.String("staff_id", account.ID.String()),
		zap.String("role", string(role)),
	)
	return account, nil
}

// Deactivate frees the account's seat. It never needs the guard.
func (s *Service) Deactivate(ctx context.Context, id string) (staffdomain.StaffAccount, error) {
	return s.setActive(ctx, id, false)
}

// Reactivate occupies a seat again and is guarded like Create.
func (s *Service) Reactivate(ctx context.Context, id string) (staffdomain.StaffAccount, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (staffdomain.StaffAccount, error) {
	staffID, err := parseID(id, staffdomain.ErrInvalidID)
	if err != nil {
		return staffdomain.StaffAccount{}, err
	}

	action := auditdomain.ActionStaffDeactivate
	if active {
		action = auditdomain.ActionStaffReactivate
	}

	var account staffdomain.StaffAccount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, staffID)
		if err != nil {
			return err
		}
		if current == nil {
			return staffdomain.ErrNotFound
		}

		if _, err := s.lockClinic(ctx, tx, current.ClinicID); err != nil {
			return err
		}
		current, err = s.repo.FindByIDForUpdate(ctx, tx, staffID)
		if err != nil {
			return err
		}
		if current == nil {
			return staffdomain.ErrNotFound
		}

		switch {
		case active && current.IsActive:
			return staffdomain.ErrAlreadyActive
		case !active && !current.IsActive:
			return staffdomain.ErrAlreadyInactive
		}

		if active {
			if _, err := s.guard.Check(ctx, tx, current.ClinicID); err != nil {
				return err
			}
		}

		now := s.clock.Now().UTC()
		affected, err := s.repo.SetActive(ctx, tx, staffID, active, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return staffdomain.ErrNotFound
		}
		current.IsActive = active
		current.UpdatedAt = now
		account = *current

		return s.audit(ctx, tx, action, account)
	})
	if err != nil {
		s.denied(ctx, err)
		return staffdomain.StaffAccount{}, err
	}

	logger.WithContext(ctx, s.log).Info("staff account updated",
		zap.String("staff_id", account.ID.String()),
		zap.String("action", action),
	)
	return account, nil
}

func (s *Service) List(ctx context.Context, req staffdomain.ListStaffRequest) ([]staffdomain.StaffAccount, error) {
	clinicID, err := parseID(req.ClinicID, staffdomain.ErrInvalidClinic)
	if err != nil {
		return nil, err
	}

	clinic, err := s.clinicRepo.FindByID(ctx, s.db, clinicID)
	if err != nil {
		return nil, err
	}
	if clinic == nil {
		return nil, clinicdomain.ErrNotFound
	}

	accounts, err := s.repo.ListByClinic(ctx, s.db, clinicID, req.ActiveOnly)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []staffdomain.StaffAccount{}
	}
	return accounts, nil
}

func (s *Service) CheckCanAddAccount(ctx context.Context, clinicID string) (staffdomain.Allowance, error) {
	return s.allowance(ctx, clinicID, true)
}

func (s *Service) Allowance(ctx context.Context, clinicID string) (staffdomain.Allowance, error) {
	return s.allowance(ctx, clinicID, false)
}

func (s *Service) allowance(ctx context.Context, clinicID string, enforce bool) (staffdomain.Allowance, error) {
	id, err := parseID(clinicID, staffdomain.ErrInvalidClinic)
	if err != nil {
		return staffdomain.Allowance{}, err
	}

	var allowance staffdomain.Allowance
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockClinic(ctx, tx, id); err != nil {
			return err
		}
		if enforce {
			allowance, err = s.guard.Check(ctx, tx, id)
		} else {
			allowance, err = s.guard.Allowance(ctx, tx, id)
		}
		return err
	})
	if err != nil && enforce {
		s.denied(ctx, err)
	}
	return allowance, err
}

func (s *Service) lockClinic(ctx context.Context, tx *gorm.DB, clinicID snowflake.ID) (*clinicdomain.Clinic, error) {
	clinic, err := s.clinicRepo.FindByIDForUpdate(ctx, tx, clinicID)
	if err != nil {
		return nil, err
	}
	if clinic == nil {
		return nil, clinicdomain.ErrNotFound
	}
	return clinic, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, action string, account staffdomain.StaffAccount) error {
	return s.auditsvc.Record(ctx, tx, auditdomain.Entry{
		ClinicID:   account.ClinicID,
		Action:     action,
		TargetType: auditdomain.TargetStaffAccount,
		TargetID:   account.ID.String(),
		Metadata: map[string]any{
			"email":     masking.MaskEmail(account.Email),
			"role":      string(account.Role),
			"is_active": account.IsActive,
		},
	})
}

func (s *Service) denied(ctx context.Context, err error) {
	if !errors.Is(err, staffdomain.ErrAccountLimitExceeded) {
		return
	}
	_, role := obscontext.ActorFromContext(ctx)
	s.metrics.RecordAccountLimitDenied(ctx, role)
	logger.WithContext(ctx, s.log).Info("staff account limit reached")
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
