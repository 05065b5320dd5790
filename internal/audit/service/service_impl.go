package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/vetsub/internal/audit/domain"
	"github.com/smallbiznis/vetsub/internal/clock"
	obscontext "github.com/smallbiznis/vetsub/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, db *gorm.DB, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorID, actorRole := s.resolveActor(ctx)

	payload := map[string]any{}
	for key, value := range entry.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	log := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorID:    actorID,
		ActorRole:  actorRole,
		Action:     action,
		TargetType: targetType,
		TargetID:   normalize(entry.TargetID),
		Metadata:   datatypes.JSONMap(payload),
		RequestID:  obscontext.RequestIDFromContext(ctx),
		CreatedAt:  s.clock.Now().UTC(),
	}
	if entry.ClinicID != 0 {
		clinicID := entry.ClinicID
		log.ClinicID = &clinicID
	}

	if db == nil {
		db = s.db
	}
	if err := s.repo.Insert(ctx, db, &log); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ListByClinic(ctx context.Context, req auditdomain.ListAuditLogRequest) ([]auditdomain.AuditLog, error) {
	clinicID, err := snowflake.ParseString(strings.TrimSpace(req.ClinicID))
	if err != nil || clinicID == 0 {
		return nil, auditdomain.ErrInvalidClinic
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 250 {
		limit = 250
	}

	logs, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		ClinicID: clinicID,
		Action:   req.Action,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []auditdomain.AuditLog{}
	}
	return logs, nil
}

func (s *Service) resolveActor(ctx context.Context) (string, string) {
	actorID, role := obscontext.ActorFromContext(ctx)
	if role == "" {
		role = string(auditdomain.ActorRoleSystem)
	}
	if actorID == "" {
		actorID = strings.ToLower(role)
	}
	return actorID, role
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
