package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/smallbiznis/vetsub/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const (
	RoleSiteOwner   = "SITE_OWNER"
	RoleClinicOwner = "CLINIC_OWNER"
	RoleSystem      = "SYSTEM"
)

const (
	ObjectReference    = "reference"
	ObjectClinic       = "clinic"
	ObjectSubscription = "subscription"
	ObjectStaff        = "staff"
	ObjectAuditLog     = "audit_log"
	ObjectSweep        = "sweep"
)

const (
	ActionView = "view"

	ActionClinicCreate = "clinic.create"

	ActionSubscriptionCreate     = "subscription.create"
	ActionSubscriptionSuspend    = "subscription.suspend"
	ActionSubscriptionReactivate = "subscription.reactivate"
	ActionSubscriptionRefund     = "subscription.refund"

	ActionStaffCreate     = "staff.create"
	ActionStaffDeactivate = "staff.deactivate"
	ActionStaffReactivate = "staff.reactivate"

	ActionSweepRun = "sweep.run"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an in-memory enforcer from the embedded model and the
// built-in role policy.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		logger.WithContext(ctx, s.log).Warn("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func subject(role string) string {
	return fmt.Sprintf("role:%s", strings.ToLower(role))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Clinic owners read their clinic and manage staff seats.
		{subject(RoleClinicOwner), ObjectReference, ActionView},
		{subject(RoleClinicOwner), ObjectClinic, ActionView},
		{subject(RoleClinicOwner), ObjectSubscription, ActionView},
		{subject(RoleClinicOwner), ObjectAuditLog, ActionView},
		{subject(RoleClinicOwner), ObjectStaff, ActionView},
		{subject(RoleClinicOwner), ObjectStaff, ActionStaffCreate},
		{subject(RoleClinicOwner), ObjectStaff, ActionStaffDeactivate},
		{subject(RoleClinicOwner), ObjectStaff, ActionStaffReactivate},

		// Site owners run the subscription lifecycle.
		{subject(RoleSiteOwner), ObjectClinic, ActionClinicCreate},
		{subject(RoleSiteOwner), ObjectSubscription, ActionSubscriptionCreate},
		{subject(RoleSiteOwner), ObjectSubscription, ActionSubscriptionSuspend},
		{subject(RoleSiteOwner), ObjectSubscription, ActionSubscriptionReactivate},
		{subject(RoleSiteOwner), ObjectSubscription, ActionSubscriptionRefund},
		{subject(RoleSiteOwner), ObjectSweep, ActionSweepRun},

		// System
		{subject(RoleSystem), ObjectSweep, ActionSweepRun},
		{subject(RoleSystem), ObjectSubscription, ActionView},
		{subject(RoleSystem), ObjectClinic, ActionView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Site owners can do everything a clinic owner can.
	_, err := enforcer.AddGroupingPolicy(subject(RoleSiteOwner), subject(RoleClinicOwner))
	return err
}
