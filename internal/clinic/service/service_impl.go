package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vetsub/internal/clinic/domain"
	"github.com/smallbiznis/vetsub/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("clinic.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateClinicRequest) (domain.Clinic, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Clinic{}, domain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	clinic := domain.Clinic{
		ID:        s.genID.Generate(),
		Name:      name,
		Status:    domain.ClinicStatusInactive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &clinic); err != nil {
		return domain.Clinic{}, err
	}

	s.log.Info("clinic created", zap.String("clinic_id", clinic.ID.String()))
	return clinic, nil
}

func (s *Service) List(ctx context.Context, req domain.ListClinicRequest) ([]domain.Clinic, error) {
	var filter domain.ListClinicFilter
	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		filter.Status = domain.ClinicStatus(status)
		if !filter.Status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
	}

	clinics, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if clinics == nil {
		clinics = []domain.Clinic{}
	}
	return clinics, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Clinic, error) {
	clinicID, err := s.parseID(id)
	if err != nil {
		return domain.Clinic{}, err
	}

	clinic, err := s.repo.FindByID(ctx, s.db, clinicID)
	if err != nil {
		return domain.Clinic{}, err
	}
	if clinic == nil {
		return domain.Clinic{}, domain.ErrNotFound
	}
	return *clinic, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
