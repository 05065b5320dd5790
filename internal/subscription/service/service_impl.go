package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/vetsub/internal/audit/domain"
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
	"github.com/smallbiznis/vetsub/internal/clock"
	"github.com/smallbiznis/vetsub/internal/config"
	obscontext "github.com/smallbiznis/vetsub/internal/observability/context"
	"github.com/smallbiznis/vetsub/internal/observability/logger"
	"github.com/smallbiznis/vetsub/internal/observability/metrics"
	referencedomain "github.com/smallbiznis/vetsub/internal/reference/domain"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	actionCreate     = "create"
	actionSuspend    = "suspend"
	actionReactivate = "reactivate"
	actionRefund     = "refund"

	maxRefNumberLength = 64
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	calendar   *clock.Calendar
	repo       subscriptiondomain.Repository
	clinicRepo clinicdomain.Repository
	refRepo    referencedomain.Repository
	auditsvc   auditdomain.Service
	policy     *config.LifecycleConfigHolder
	metrics    *metrics.Metrics
	statusSync *StatusSync
}

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Calendar      *clock.Calendar
	Repo          subscriptiondomain.Repository
	ClinicRepo    clinicdomain.Repository
	ReferenceRepo referencedomain.Repository
	AuditSvc      auditdomain.Service
	Policy        *config.LifecycleConfigHolder
	Metrics       *metrics.Metrics `optional:"true"`
	StatusSync    *StatusSync
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:      p.GenID,
		calendar:   p.Calendar,
		repo:       p.Repo,
		clinicRepo: p.ClinicRepo,
		refRepo:    p.ReferenceRepo,
		auditsvc:   p.AuditSvc,
		policy:     p.Policy,
		metrics:    p.Metrics,
		statusSync: p.StatusSync,
	}
}

// Create opens a new subscription period for a clinic. A period starting today
// is ACTIVE immediately and closes a lapsed ACTIVE record the sweeper has not
// reached yet.
func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.TransitionResult, error) {
	clinicID, err := parseID(req.ClinicID, subscriptiondomain.ErrInvalidClinic)
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionCreate, err)
	}
	planID, err := parseID(req.PlanID, subscriptiondomain.ErrInvalidPlan)
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionCreate, err)
	}
	paymentMethodID, err := parseID(req.PaymentMethodID, subscriptiondomain.ErrInvalidPaymentMethod)
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionCreate, err)
	}
	if req.AmountPaid < 0 {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionCreate, subscriptiondomain.ErrInvalidAmount)
	}
	if req.ExtraAccountsNumber < 0 {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionCreate, subscriptiondomain.ErrInvalidExtraAccounts)
	}

	startDate, err := clock.ParseDate(req.StartDate)
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionCreate, subscriptiondomain.ErrInvalidStartDate)
	}
	today := s.calendar.Today()
	if startDate.Before(today) {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionCreate, subscriptiondomain.ErrInvalidStartDate)
	}

	refNumber := strings.TrimSpace(req.RefNumber)
	if refNumber == "" {
		refNumber = "SUB-" + ulid.Make().String()
	}
	if len(refNumber) > maxRefNumberLength {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionCreate, subscriptiondomain.ErrInvalidRefNumber)
	}

	actorID, _ := obscontext.ActorFromContext(ctx)
	now := s.calendar.Now()
	startsToday := startDate.Equal(today)

	var result subscriptiondomain.TransitionResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clinic, err := s.lockClinic(ctx, tx, clinicID)
		if err != nil {
			return err
		}
		if clinic.Status == clinicdomain.ClinicStatusSuspended {
			return subscriptiondomain.ErrClinicSuspended
		}

		plan, err := s.loadPlan(ctx, tx, planID)
		if err != nil {
			return err
		}
		if err := s.ensurePaymentMethod(ctx, tx, paymentMethodID); err != nil {
			return err
		}

		endDate := clock.AddDays(startDate, plan.DurationDays-1)
		candidate := subscriptiondomain.Interval{Start: startDate, End: &endDate}

		open, err := s.repo.ListNonTerminalByClinic(ctx, tx, clinicID)
		if err != nil {
			return persistence(err)
		}

		// An ACTIVE record that passes the overlap check has already lapsed
		// and is only waiting for the sweeper.
		var active *subscriptiondomain.SubscriptionRecord
		for i := range open {
			existing := open[i]
			if existing.Interval().Overlaps(candidate) {
				return subscriptiondomain.ErrOverlappingSubscription
			}
			if existing.Status == subscriptiondomain.SubscriptionStatusActive {
				active = &open[i]
			}
		}

		status := subscriptiondomain.SubscriptionStatusUpcoming
		var activation *time.Time
		if startsToday {
			status = subscriptiondomain.SubscriptionStatusActive
			activation = &now
		}

		if active != nil && startsToday {
			closed, err := s.supersede(ctx, tx, *active, startDate, now)
			if err != nil {
				return err
			}
			result.Closed = closed
		}

		record := subscriptiondomain.SubscriptionRecord{
			ID:                  s.genID.Generate(),
			ClinicID:            clinicID,
			PlanID:              plan.ID,
			PaymentMethodID:     paymentMethodID,
			SubscriptionGroup:   uuid.NewString(),
			RefNumber:           refNumber,
			AmountPaid:          req.AmountPaid,
			ExtraAccountsNumber: req.ExtraAccountsNumber,
			StartDate:           startDate,
			EndDate:             &endDate,
			Status:              status,
			ActivationDate:      activation,
			CreatedBy:           actorID,
			Comment:             strings.TrimSpace(req.Comment),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.Insert(ctx, tx, &record); err != nil {
			return persistence(err)
		}

		if err := s.audit(ctx, tx, auditdomain.ActionSubscriptionCreate, record, "", record.Status); err != nil {
			return err
		}

		clinicStatus, err := s.statusSync.Sync(ctx, tx, clinic)
		if err != nil {
			return persistence(err)
		}

		result.Record = record
		result.ClinicStatus = clinicStatus
		return nil
	})
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionCreate, err)
	}

	if result.Closed != nil {
		s.metrics.RecordTransition(ctx, actionCreate, string(subscriptiondomain.SubscriptionStatusActive), string(subscriptiondomain.SubscriptionStatusEnded))
	}
	s.metrics.RecordTransition(ctx, actionCreate, "", string(result.Record.Status))
	s.logTransition(ctx, actionCreate, result)
	return result, nil
}

// Suspend closes an ACTIVE record and opens an open-ended SUSPENDED successor in the same group.
func (s *Service) Suspend(ctx context.Context, req subscriptiondomain.TransitionRequest) (subscriptiondomain.TransitionResult, error) {
	id, comment, err := s.parseTransition(req)
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionSuspend, err)
	}

	actorID, _ := obscontext.ActorFromContext(ctx)
	today := s.calendar.Today()
	now := s.calendar.Now()

	var result subscriptiondomain.TransitionResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clinic, record, err := s.lockRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if record.Status != subscriptiondomain.SubscriptionStatusActive {
			return subscriptiondomain.ErrInvalidTransition
		}
		// Lapsed but not yet swept: there is no remaining period to pause.
		if record.EndDate != nil && record.EndDate.Before(today) {
			return subscriptiondomain.ErrInvalidTransition
		}

		hasUpcoming, err := s.repo.ExistsByClinicAndStatus(ctx, tx, clinic.ID, subscriptiondomain.SubscriptionStatusUpcoming)
		if err != nil {
			return persistence(err)
		}
		if hasUpcoming {
			return subscriptiondomain.ErrInvalidTransition
		}

		closeEnd := clock.AddDays(today, -1)
		remaining := 1
		if record.EndDate != nil {
			if record.EndDate.Before(closeEnd) {
				closeEnd = *record.EndDate
			}
			remaining = max(clock.DaysBetween(today, *record.EndDate)+1, 1)
		}

		if err := s.close(ctx, tx, record, subscriptiondomain.SubscriptionStatusEnded, &closeEnd, now); err != nil {
			return err
		}

		suspended := s.successor(*record, subscriptiondomain.SubscriptionStatusSuspended, today, nil, actorID, comment, now)
		suspended.RemainingDays = &remaining
		if err := s.repo.Insert(ctx, tx, &suspended); err != nil {
			return persistence(err)
		}

		if err := s.audit(ctx, tx, auditdomain.ActionSubscriptionSuspend, suspended, subscriptiondomain.SubscriptionStatusActive, suspended.Status); err != nil {
			return err
		}

		clinicStatus, err := s.statusSync.Sync(ctx, tx, clinic)
		if err != nil {
			return persistence(err)
		}

		result = subscriptiondomain.TransitionResult{Record: suspended, Closed: record, ClinicStatus: clinicStatus}
		return nil
	})
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionSuspend, err)
	}

	s.metrics.RecordTransition(ctx, actionSuspend, string(subscriptiondomain.SubscriptionStatusActive), string(subscriptiondomain.SubscriptionStatusSuspended))
	s.logTransition(ctx, actionSuspend, result)
	return result, nil
}

// Reactivate closes a SUSPENDED record and opens an ACTIVE successor starting
// today. Its length follows lifecycle.reactivationPolicy.
func (s *Service) Reactivate(ctx context.Context, req subscriptiondomain.TransitionRequest) (subscriptiondomain.TransitionResult, error) {
	id, comment, err := s.parseTransition(req)
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionReactivate, err)
	}

	actorID, _ := obscontext.ActorFromContext(ctx)
	today := s.calendar.Today()
	now := s.calendar.Now()
	policy := s.lifecycle().ReactivationPolicy

	var result subscriptiondomain.TransitionResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clinic, record, err := s.lockRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if record.Status != subscriptiondomain.SubscriptionStatusSuspended {
			return subscriptiondomain.ErrInvalidTransition
		}

		plan, err := s.refRepo.FindPlanByID(ctx, tx, record.PlanID)
		if err != nil {
			return persistence(err)
		}
		if plan == nil {
			return subscriptiondomain.ErrInvalidPlan
		}

		days := reactivationDays(policy, plan.DurationDays, record.RemainingDays)
		endDate := clock.AddDays(today, days-1)
		candidate := subscriptiondomain.Interval{Start: today, End: &endDate}

		open, err := s.repo.ListNonTerminalByClinic(ctx, tx, clinic.ID)
		if err != nil {
			return persistence(err)
		}
		for _, existing := range open {
			if existing.ID == record.ID {
				continue
			}
			if existing.Status == subscriptiondomain.SubscriptionStatusActive {
				return subscriptiondomain.ErrInvalidTransition
			}
			if existing.Interval().Overlaps(candidate) {
				return subscriptiondomain.ErrOverlappingSubscription
			}
		}

		closeEnd := clock.AddDays(today, -1)
		if err := s.close(ctx, tx, record, subscriptiondomain.SubscriptionStatusEnded, &closeEnd, now); err != nil {
			return err
		}

		reactivated := s.successor(*record, subscriptiondomain.SubscriptionStatusActive, today, &endDate, actorID, comment, now)
		reactivated.ActivationDate = &now
		if err := s.repo.Insert(ctx, tx, &reactivated); err != nil {
			return persistence(err)
		}

		if err := s.audit(ctx, tx, auditdomain.ActionSubscriptionReactivate, reactivated, subscriptiondomain.SubscriptionStatusSuspended, reactivated.Status); err != nil {
			return err
		}

		clinicStatus, err := s.statusSync.Sync(ctx, tx, clinic)
		if err != nil {
			return persistence(err)
		}

		result = subscriptiondomain.TransitionResult{Record: reactivated, Closed: record, ClinicStatus: clinicStatus}
		return nil
	})
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionReactivate, err)
	}

	s.metrics.RecordTransition(ctx, actionReactivate, string(subscriptiondomain.SubscriptionStatusSuspended), string(subscriptiondomain.SubscriptionStatusActive))
	s.logTransition(ctx, actionReactivate, result, zap.String("reactivation_policy", string(policy)))
	return result, nil
}

// Refund marks an ACTIVE, SUSPENDED or UPCOMING record REFUNDED in place.
func (s *Service) Refund(ctx context.Context, req subscriptiondomain.TransitionRequest) (subscriptiondomain.TransitionResult, error) {
	id, comment, err := s.parseTransition(req)
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionRefund, err)
	}

	now := s.calendar.Now()

	var (
		result subscriptiondomain.TransitionResult
		from   subscriptiondomain.SubscriptionStatus
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clinic, record, err := s.lockRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		switch record.Status {
		case subscriptiondomain.SubscriptionStatusActive,
			subscriptiondomain.SubscriptionStatusSuspended,
			subscriptiondomain.SubscriptionStatusUpcoming:
		default:
			return subscriptiondomain.ErrInvalidTransition
		}
		from = record.Status

		affected, err := s.repo.UpdateStatus(ctx, tx, record.ID, from, subscriptiondomain.SubscriptionStatusRefunded, nil, now)
		if err != nil {
			return persistence(err)
		}
		if affected == 0 {
			return subscriptiondomain.ErrInvalidTransition
		}
		record.Status = subscriptiondomain.SubscriptionStatusRefunded
		record.UpdatedAt = now

		if err := s.audit(ctx, tx, auditdomain.ActionSubscriptionRefund, *record, from, record.Status, "comment", comment); err != nil {
			return err
		}

		clinicStatus, err := s.statusSync.Sync(ctx, tx, clinic)
		if err != nil {
			return persistence(err)
		}

		result = subscriptiondomain.TransitionResult{Record: *record, ClinicStatus: clinicStatus}
		return nil
	})
	if err != nil {
		return subscriptiondomain.TransitionResult{}, s.reject(ctx, actionRefund, err)
	}

	s.metrics.RecordTransition(ctx, actionRefund, string(from), string(subscriptiondomain.SubscriptionStatusRefunded))
	s.logTransition(ctx, actionRefund, result, zap.String("from_status", string(from)))
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (subscriptiondomain.RecordView, error) {
	recordID, err := parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return subscriptiondomain.RecordView{}, err
	}

	record, err := s.repo.FindByID(ctx, s.db, recordID)
	if err != nil {
		return subscriptiondomain.RecordView{}, persistence(err)
	}
	if record == nil {
		return subscriptiondomain.RecordView{}, subscriptiondomain.ErrSubscriptionNotFound
	}

	return s.view(*record, s.calendar.Today()), nil
}

// ListByClinic returns the clinic's full ledger, newest period first.
func (s *Service) ListByClinic(ctx context.Context, clinicID string) ([]subscriptiondomain.RecordView, error) {
	id, err := parseID(clinicID, subscriptiondomain.ErrInvalidClinic)
	if err != nil {
		return nil, err
	}

	clinic, err := s.clinicRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, persistence(err)
	}
	if clinic == nil {
		return nil, clinicdomain.ErrNotFound
	}

	records, err := s.repo.ListByClinic(ctx, s.db, id)
	if err != nil {
		return nil, persistence(err)
	}

	today := s.calendar.Today()
	views := make([]subscriptiondomain.RecordView, 0, len(records))
	for _, record := range records {
		views = append(views, s.view(record, today))
	}
	return views, nil
}

func (s *Service) view(record subscriptiondomain.SubscriptionRecord, today time.Time) subscriptiondomain.RecordView {
	return subscriptiondomain.RecordView{
		SubscriptionRecord: record,
		DaysLeft:           record.DaysLeft(today),
	}
}

func (s *Service) lockClinic(ctx context.Context, tx *gorm.DB, clinicID snowflake.ID) (*clinicdomain.Clinic, error) {
	clinic, err := s.clinicRepo.FindByIDForUpdate(ctx, tx, clinicID)
	if err != nil {
		return nil, persistence(err)
	}
	if clinic == nil {
		return nil, clinicdomain.ErrNotFound
	}
	return clinic, nil
}

// lockRecord locks the owning clinic first, then re-reads the record under that lock.
func (s *Service) lockRecord(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*clinicdomain.Clinic, *subscriptiondomain.SubscriptionRecord, error) {
	record, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, nil, persistence(err)
	}
	if record == nil {
		return nil, nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	clinic, err := s.lockClinic(ctx, tx, record.ClinicID)
	if err != nil {
		return nil, nil, err
	}

	record, err = s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, nil, persistence(err)
	}
	if record == nil {
		return nil, nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return clinic, record, nil
}

func (s *Service) loadPlan(ctx context.Context, tx *gorm.DB, planID snowflake.ID) (*referencedomain.SubscriptionPlan, error) {
	plan, err := s.refRepo.FindPlanByID(ctx, tx, planID)
	if err != nil {
		return nil, persistence(err)
	}
	if plan == nil || plan.DurationDays <= 0 {
		return nil, subscriptiondomain.ErrInvalidPlan
	}
	if !plan.IsActive {
		return nil, subscriptiondomain.ErrPlanInactive
	}
	return plan, nil
}

func (s *Service) ensurePaymentMethod(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	method, err := s.refRepo.FindPaymentMethodByID(ctx, tx, id)
	if err != nil {
		return persistence(err)
	}
	if method == nil {
		return subscriptiondomain.ErrInvalidPaymentMethod
	}
	if !method.IsActive {
		return subscriptiondomain.ErrPaymentMethodInactive
	}
	return nil
}

// supersede ends the clinic's ACTIVE record no later than the day before a new period starts.
func (s *Service) supersede(
	ctx context.Context,
	tx *gorm.DB,
	active subscriptiondomain.SubscriptionRecord,
	start time.Time,
	now time.Time,
) (*subscriptiondomain.SubscriptionRecord, error) {
	endDate := clock.AddDays(start, -1)
	if active.EndDate != nil && active.EndDate.Before(endDate) {
		endDate = *active.EndDate
	}
	if err := s.close(ctx, tx, &active, subscriptiondomain.SubscriptionStatusEnded, &endDate, now); err != nil {
		return nil, err
	}
	return &active, nil
}

func (s *Service) close(
	ctx context.Context,
	tx *gorm.DB,
	record *subscriptiondomain.SubscriptionRecord,
	to subscriptiondomain.SubscriptionStatus,
	endDate *time.Time,
	now time.Time,
) error {
	affected, err := s.repo.Close(ctx, tx, record.ID, record.Status, to, endDate, now)
	if err != nil {
		return persistence(err)
	}
	if affected == 0 {
		return subscriptiondomain.ErrInvalidTransition
	}
	record.Status = to
	record.EndDate = endDate
	record.UpdatedAt = now
	return nil
}

func (s *Service) successor(
	prior subscriptiondomain.SubscriptionRecord,
	status subscriptiondomain.SubscriptionStatus,
	start time.Time,
	end *time.Time,
	actorID, comment string,
	now time.Time,
) subscriptiondomain.SubscriptionRecord {
	return subscriptiondomain.SubscriptionRecord{
		ID:                  s.genID.Generate(),
		ClinicID:            prior.ClinicID,
		PlanID:              prior.PlanID,
		PaymentMethodID:     prior.PaymentMethodID,
		SubscriptionGroup:   prior.SubscriptionGroup,
		RefNumber:           prior.RefNumber,
		ExtraAccountsNumber: prior.ExtraAccountsNumber,
		StartDate:           start,
		EndDate:             end,
		Status:              status,
		CreatedBy:           actorID,
		Comment:             comment,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *Service) audit(
	ctx context.Context,
	tx *gorm.DB,
	action string,
	record subscriptiondomain.SubscriptionRecord,
	from, to subscriptiondomain.SubscriptionStatus,
	extra ...string,
) error {
	metadata := map[string]any{
		"subscription_group": record.SubscriptionGroup,
		"ref_number":         record.RefNumber,
		"from_status":        string(from),
		"to_status":          string(to),
		"start_date":         record.StartDate.Format(clock.DateLayout),
	}
	if record.EndDate != nil {
		metadata["end_date"] = record.EndDate.Format(clock.DateLayout)
	}
	if record.Comment != "" {
		metadata["comment"] = record.Comment
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if extra[i+1] != "" {
			metadata[extra[i]] = extra[i+1]
		}
	}

	err := s.auditsvc.Record(ctx, tx, auditdomain.Entry{
		ClinicID:   record.ClinicID,
		Action:     action,
		TargetType: auditdomain.TargetSubscriptionRecord,
		TargetID:   record.ID.String(),
		Metadata:   metadata,
	})
	if err != nil {
		return persistence(err)
	}
	return nil
}

func (s *Service) parseTransition(req subscriptiondomain.TransitionRequest) (snowflake.ID, string, error) {
	id, err := parseID(req.SubscriptionID, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return 0, "", err
	}
	comment := strings.TrimSpace(req.Comment)
	if comment == "" && s.lifecycle().RequireComment {
		return 0, "", subscriptiondomain.ErrCommentRequired
	}
	return id, comment, nil
}

func (s *Service) lifecycle() config.LifecycleConfig {
	if s.policy == nil {
		return config.DefaultLifecycleConfig()
	}
	return s.policy.Get()
}

// reject normalizes a failed mutation's error and counts it.
func (s *Service) reject(ctx context.Context, action string, err error) error {
	if !isLifecycleError(err) {
		err = persistence(err)
	}
	reason := rejectionReason(err)
	s.metrics.RecordRejection(ctx, action, reason)

	log := logger.WithContext(ctx, s.log)
	if errors.Is(err, subscriptiondomain.ErrPersistence) {
		log.Error("subscription mutation failed", zap.String("action", action), zap.Error(err))
	} else {
		log.Info("subscription mutation rejected", zap.String("action", action), zap.String("reason", reason))
	}
	return err
}

func (s *Service) logTransition(ctx context.Context, action string, result subscriptiondomain.TransitionResult, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("action", action),
		zap.String("clinic_id", result.Record.ClinicID.String()),
		zap.String("subscription_id", result.Record.ID.String()),
		zap.String("subscription_group", result.Record.SubscriptionGroup),
		zap.String("status", string(result.Record.Status)),
		zap.String("clinic_status", string(result.ClinicStatus)),
	}
	if result.Closed != nil {
		base = append(base, zap.String("closed_subscription_id", result.Closed.ID.String()))
	}
	logger.WithContext(ctx, s.log).Info("subscription transition applied", append(base, fields...)...)
}

func reactivationDays(policy config.ReactivationPolicy, durationDays int, remaining *int) int {
	if policy == config.ReactivationRemainingDays && remaining != nil && *remaining > 0 {
		return *remaining
	}
	return durationDays
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func persistence(err error) error {
	if err == nil || errors.Is(err, subscriptiondomain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", subscriptiondomain.ErrPersistence, err)
}

var lifecycleErrors = []error{
	subscriptiondomain.ErrOverlappingSubscription,
	subscriptiondomain.ErrInvalidTransition,
	subscriptiondomain.ErrClinicSuspended,
	subscriptiondomain.ErrSubscriptionNotFound,
	subscriptiondomain.ErrPersistence,
	clinicdomain.ErrNotFound,
}

func isLifecycleError(err error) bool {
	if subscriptiondomain.IsValidationError(err) {
		return true
	}
	for _, target := range lifecycleErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func rejectionReason(err error) string {
	if errors.Is(err, subscriptiondomain.ErrPersistence) {
		return subscriptiondomain.ErrPersistence.Error()
	}
	for _, target := range lifecycleErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return strings.SplitN(err.Error(), ":", 2)[0]
}
