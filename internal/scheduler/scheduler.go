package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/vetsub/internal/audit/domain"
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
	"github.com/smallbiznis/vetsub/internal/clock"
	"github.com/smallbiznis/vetsub/internal/distlock"
	obsmetrics "github.com/smallbiznis/vetsub/internal/observability/metrics"
	"github.com/smallbiznis/vetsub/internal/scheduler/guard"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	subscriptionservice "github.com/smallbiznis/vetsub/internal/subscription/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	jobSweep = "sweep"

	systemActorID   = "system"
	systemActorRole = string(auditdomain.ActorRoleSystem)

	transitionExpire   = "expire"
	transitionActivate = "activate"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Calendar   *clock.Calendar
	Repo       subscriptiondomain.Repository
	ClinicRepo clinicdomain.Repository
	StatusSync *subscriptionservice.StatusSync
	AuditSvc   auditdomain.Service
	Locker     *distlock.Locker `optional:"true"`
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Config     Config           `optional:"true"`
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	calendar   *clock.Calendar
	repo       subscriptiondomain.Repository
	clinicRepo clinicdomain.Repository
	statusSync *subscriptionservice.StatusSync
	auditSvc   auditdomain.Service
	locker     *distlock.Locker
	metrics    *obsmetrics.Metrics
}

// SweepSummary is the outcome of one sweep run.
type SweepSummary struct {
	RunID     string          `json:"run_id"`
	Date      string          `json:"date"`
	Clinics   int             `json:"clinics"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Expired   int             `json:"expired"`
	Activated int             `json:"activated"`
	Failures  []ClinicFailure `json:"failures,omitempty"`
	// Skipped is set when another process holds today's run lock.
	Skipped bool `json:"skipped"`
}

type ClinicFailure struct {
	ClinicID  string   `json:"clinic_id"`
	RecordIDs []string `json:"record_ids,omitempty"`
	Error     string   `json:"error"`
	ErrorType string   `json:"error_type"`
	Retryable bool     `json:"retryable"`
}

type clinicOutcome struct {
	expired     int
	activated   int
	transitions []appliedTransition
}

// appliedTransition is reported only once the clinic's unit has committed.
type appliedTransition struct {
	label    string
	recordID snowflake.ID
	from     subscriptiondomain.SubscriptionStatus
	to       subscriptiondomain.SubscriptionStatus
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Calendar == nil || p.Repo == nil || p.ClinicRepo == nil || p.StatusSync == nil || p.AuditSvc == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	if _, _, err := clock.ParseClockTime(cfg.RunAt); err != nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        cfg,
		genID:      p.GenID,
		calendar:   p.Calendar,
		repo:       p.Repo,
		clinicRepo: p.ClinicRepo,
		statusSync: p.StatusSync,
		auditSvc:   p.AuditSvc,
		locker:     p.Locker,
		metrics:    p.Metrics,
	}, nil
}

// RunForever sweeps once per business day at the configured time until ctx
// is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	hour, minute, _ := clock.ParseClockTime(s.cfg.RunAt)
	schedMetrics := obsmetrics.Scheduler()

	for {
		nextRun := s.calendar.NextRun(s.calendar.Now(), hour, minute)
		wait := time.Until(nextRun)
		if wait < 0 {
			wait = 0
		}
		s.log.Info("scheduler.sleep", zap.Time("next_run", nextRun))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
	}
}

// RunOnce applies today's time-driven transitions. Only setup failures are
// returned; per-clinic failures are reported in the summary.
func (s *Scheduler) RunOnce(ctx context.Context) (SweepSummary, error) {
	ctx = s.withLogContext(ctx, 0)
	today := s.calendar.Today()
	run := s.newJobRun(jobSweep)
	summary := SweepSummary{RunID: run.runID, Date: today.Format(clock.DateLayout)}

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(jobSweep)
	defer func() {
		schedMetrics.ObserveJobDuration(jobSweep, time.Since(run.startedAt))
	}()

	release, acquired := s.acquireRunLock(ctx, today)
	if !acquired {
		schedMetrics.IncRunSkipped(obsmetrics.SchedulerRunSkippedLockHeld)
		s.logger(ctx).Info("scheduler.run.skipped",
			zap.String("run_id", run.runID),
			zap.String("date", summary.Date),
			zap.String("reason", obsmetrics.SchedulerRunSkippedLockHeld),
		)
		summary.Skipped = true
		return summary, nil
	}
	defer release()

	s.logJobStart(ctx, run, zap.String("date", summary.Date))
	defer s.logJobFinish(ctx, run)

	clinicIDs, err := s.repo.ListSweepCandidateClinics(ctx, s.db, today)
	if err != nil {
		run.IncError()
		schedMetrics.IncJobError(jobSweep, err)
		return summary, err
	}
	summary.Clinics = len(clinicIDs)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for _, clinicID := range clinicIDs {
		g.Go(func() error {
			outcome, recordIDs, err := s.sweepClinic(ctx, clinicID, today)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, ClinicFailure{
					ClinicID:  clinicID.String(),
					RecordIDs: recordIDs,
					Error:     err.Error(),
					ErrorType: obsmetrics.ClassifySchedulerErrorType(err),
					Retryable: obsmetrics.IsSchedulerErrorRetryable(err),
				})
				schedMetrics.IncClinicProcessed(jobSweep, obsmetrics.ClinicResultFailed)
				schedMetrics.IncJobError(jobSweep, err)
				if errors.Is(err, context.DeadlineExceeded) {
					schedMetrics.IncJobTimeout(jobSweep)
				}
				s.logClinicFailure(ctx, run, clinicID, recordIDs, err)
				return nil
			}

			summary.Succeeded++
			summary.Expired += outcome.expired
			summary.Activated += outcome.activated
			run.AddProcessed(1)
			schedMetrics.IncClinicProcessed(jobSweep, obsmetrics.ClinicResultSucceeded)
			return nil
		})
	}
	_ = g.Wait()

	schedMetrics.AddTransitions(string(subscriptiondomain.SubscriptionStatusActive), string(subscriptiondomain.SubscriptionStatusEnded), summary.Expired)
	schedMetrics.AddTransitions(string(subscriptiondomain.SubscriptionStatusUpcoming), string(subscriptiondomain.SubscriptionStatusActive), summary.Activated)

	s.logger(ctx).Info("scheduler.run.summary",
		zap.String("run_id", run.runID),
		zap.String("date", summary.Date),
		zap.Int("clinics", summary.Clinics),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("expired", summary.Expired),
		zap.Int("activated", summary.Activated),
	)
	return summary, nil
}

// sweepClinic applies one clinic's transitions and its status recomputation
// in a single transaction. The record ids it touched are returned even on
// failure so the clinic can be retried by hand.
func (s *Scheduler) sweepClinic(ctx context.Context, clinicID snowflake.ID, today time.Time) (clinicOutcome, []string, error) {
	ctx = s.withLogContext(ctx, clinicID)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ClinicTimeout)
	defer cancel()

	var outcome clinicOutcome
	var recordIDs []string
	touch := func(id snowflake.ID) {
		recordIDs = append(recordIDs, id.String())
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outcome = clinicOutcome{}
		recordIDs = recordIDs[:0]

		clinic, err := s.lockClinic(ctx, tx, clinicID)
		if err != nil {
			return err
		}
		now := s.calendar.Now().UTC()

		expirable, err := s.repo.ListExpirable(ctx, tx, clinicID, today)
		if err != nil {
			return err
		}
		for i := range expirable {
			record := &expirable[i]
			touch(record.ID)
			if err := s.expire(ctx, tx, &outcome, record, today, now); err != nil {
				return err
			}
			outcome.expired++
		}

		activatable, err := s.repo.ListActivatable(ctx, tx, clinicID, today)
		if err != nil {
			return err
		}
		if len(activatable) > 0 {
			current, err := s.repo.FindActiveByClinic(ctx, tx, clinicID)
			if err != nil {
				return err
			}
			for i := range activatable {
				record := &activatable[i]
				touch(record.ID)
				if current != nil {
					touch(current.ID)
					if err := s.supersede(ctx, tx, &outcome, current, record.StartDate, now); err != nil {
						return err
					}
					current = nil
				}
				if err := s.activate(ctx, tx, &outcome, record, today, now); err != nil {
					return err
				}
				outcome.activated++

				// A record whose whole interval already lapsed is carried
				// straight through to ENDED.
				if guard.EnsureExpirable(record.Status, record.EndDate, today) == nil {
					if err := s.expire(ctx, tx, &outcome, record, today, now); err != nil {
						return err
					}
					outcome.expired++
					continue
				}
				current = record
			}
		}

		if _, err := s.statusSync.Sync(ctx, tx, clinic); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return clinicOutcome{}, recordIDs, err
	}

	for _, applied := range outcome.transitions {
		s.metrics.RecordTransition(ctx, applied.label, string(applied.from), string(applied.to))
		s.logger(ctx).Info("subscription.transition",
			zap.String("action", applied.label),
			zap.String("subscription_id", applied.recordID.String()),
			zap.String("from_status", string(applied.from)),
			zap.String("to_status", string(applied.to)),
		)
	}
	return outcome, recordIDs, nil
}

func (s *Scheduler) expire(ctx context.Context, tx *gorm.DB, outcome *clinicOutcome, record *subscriptiondomain.SubscriptionRecord, today, now time.Time) error {
	if err := guard.EnsureExpirable(record.Status, record.EndDate, today); err != nil {
		return err
	}
	from := record.Status
	affected, err := s.repo.UpdateStatus(ctx, tx, record.ID, from, subscriptiondomain.SubscriptionStatusEnded, nil, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		return subscriptiondomain.ErrInvalidTransition
	}
	record.Status = subscriptiondomain.SubscriptionStatusEnded
	record.UpdatedAt = now
	return s.recordTransition(ctx, tx, outcome, auditdomain.ActionSubscriptionExpire, transitionExpire, *record, from)
}

func (s *Scheduler) activate(ctx context.Context, tx *gorm.DB, outcome *clinicOutcome, record *subscriptiondomain.SubscriptionRecord, today, now time.Time) error {
	if err := guard.EnsureActivatable(record.Status, record.StartDate, today); err != nil {
		return err
	}
	from := record.Status
	affected, err := s.repo.UpdateStatus(ctx, tx, record.ID, from, subscriptiondomain.SubscriptionStatusActive, &now, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		return subscriptiondomain.ErrInvalidTransition
	}
	record.Status = subscriptiondomain.SubscriptionStatusActive
	record.ActivationDate = &now
	record.UpdatedAt = now
	return s.recordTransition(ctx, tx, outcome, auditdomain.ActionSubscriptionActivate, transitionActivate, *record, from)
}

// supersede ends the running record the day before its successor starts.
func (s *Scheduler) supersede(ctx context.Context, tx *gorm.DB, outcome *clinicOutcome, current *subscriptiondomain.SubscriptionRecord, start, now time.Time) error {
	endDate := clock.AddDays(start, -1)
	if current.EndDate != nil && current.EndDate.Before(endDate) {
		endDate = *current.EndDate
	}
	from := current.Status
	affected, err := s.repo.Close(ctx, tx, current.ID, from, subscriptiondomain.SubscriptionStatusEnded, &endDate, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		return subscriptiondomain.ErrInvalidTransition
	}
	current.Status = subscriptiondomain.SubscriptionStatusEnded
	current.EndDate = &endDate
	current.UpdatedAt = now
	return s.recordTransition(ctx, tx, outcome, auditdomain.ActionSubscriptionExpire, transitionExpire, *current, from)
}

func (s *Scheduler) recordTransition(
	ctx context.Context,
	tx *gorm.DB,
	outcome *clinicOutcome,
	action string,
	label string,
	record subscriptiondomain.SubscriptionRecord,
	from subscriptiondomain.SubscriptionStatus,
) error {
	metadata := map[string]any{
		"subscription_group": record.SubscriptionGroup,
		"ref_number":         record.RefNumber,
		"from_status":        string(from),
		"to_status":          string(record.Status),
		"start_date":         record.StartDate.Format(clock.DateLayout),
	}
	if record.EndDate != nil {
		metadata["end_date"] = record.EndDate.Format(clock.DateLayout)
	}
	if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		ClinicID:   record.ClinicID,
		Action:     action,
		TargetType: auditdomain.TargetSubscriptionRecord,
		TargetID:   record.ID.String(),
		Metadata:   metadata,
	}); err != nil {
		return err
	}

	outcome.transitions = append(outcome.transitions, appliedTransition{
		label:    label,
		recordID: record.ID,
		from:     from,
		to:       record.Status,
	})
	return nil
}
