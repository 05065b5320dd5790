package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	redis "github.com/redis/go-redis/v9"
	auditdomain "github.com/smallbiznis/vetsub/internal/audit/domain"
	auditrepository "github.com/smallbiznis/vetsub/internal/audit/repository"
	auditservice "github.com/smallbiznis/vetsub/internal/audit/service"
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
	clinicrepository "github.com/smallbiznis/vetsub/internal/clinic/repository"
	"github.com/smallbiznis/vetsub/internal/clock"
	"github.com/smallbiznis/vetsub/internal/distlock"
	obsmetrics "github.com/smallbiznis/vetsub/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/vetsub/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/vetsub/internal/subscription/service"
	"github.com/smallbiznis/vetsub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	node     *snowflake.Node
	registry *prometheus.Registry
	log      *zap.Logger
	planID   snowflake.ID
	pmID     snowflake.ID
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "vetsub",
		Environment: "test",
	})

	conn := dbtest.Open(t)
	node := dbtest.NewNode(t)
	f := &fixture{
		db:       conn,
		clock:    clock.NewFakeClock(now),
		node:     node,
		registry: registry,
		log:      zap.NewNop(),
		planID:   node.Generate(),
		pmID:     node.Generate(),
	}
	dbtest.InsertPlan(t, conn, dbtest.Plan{ID: f.planID, Code: "basic-monthly", Price: 25000, DurationDays: 30, AllowedAccounts: 5})
	dbtest.InsertPaymentMethod(t, conn, f.pmID, "Cash", true)
	return f
}

func (f *fixture) scheduler(t *testing.T, repo subscriptiondomain.Repository, locker *distlock.Locker) *Scheduler {
	t.Helper()
	if repo == nil {
		repo = subscriptionrepository.Provide()
	}
	clinicRepo := clinicrepository.Provide()
	log := f.log

	s, err := New(Params{
		DB:         f.db,
		Log:        log,
		GenID:      f.node,
		Calendar:   clock.NewCalendar(f.clock, time.UTC),
		Repo:       repo,
		ClinicRepo: clinicRepo,
		StatusSync: subscriptionservice.NewStatusSync(repo, clinicRepo, f.clock),
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB:    f.db,
			Log:   log,
			GenID: f.node,
			Clock: f.clock,
			Repo:  auditrepository.Provide(),
		}),
		Locker: locker,
		Config: Config{Concurrency: 2},
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) clinic(t *testing.T, status clinicdomain.ClinicStatus) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	dbtest.InsertClinic(t, f.db, id, string(status))
	return id
}

func (f *fixture) record(t *testing.T, clinicID snowflake.ID, status subscriptiondomain.SubscriptionStatus, start time.Time, end *time.Time) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	dbtest.InsertRecord(t, f.db, dbtest.Record{
		ID:              id,
		ClinicID:        clinicID,
		PlanID:          f.planID,
		PaymentMethodID: f.pmID,
		StartDate:       start,
		EndDate:         end,
		Status:          string(status),
	})
	return id
}

func (f *fixture) load(t *testing.T, id snowflake.ID) *subscriptiondomain.SubscriptionRecord {
	t.Helper()
	record, err := subscriptionrepository.Provide().FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, record)
	return record
}

func (f *fixture) clinicStatus(t *testing.T, id snowflake.ID) clinicdomain.ClinicStatus {
	t.Helper()
	var status string
	require.NoError(t, f.db.Raw(`SELECT status FROM clinics WHERE id = ?`, id).Scan(&status).Error)
	return clinicdomain.ClinicStatus(status)
}

func (f *fixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM audit_logs WHERE action = ?`, action).Scan(&count).Error)
	return count
}

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 1, 0, 0, time.UTC)
}

func TestRunOnceExpiresLapsedRecord(t *testing.T) {
	f := newFixture(t, at(2024, 2, 15))
	clinicID := f.clinic(t, clinicdomain.ClinicStatusActive)
	recordID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, 1, 15), dbtest.DatePtr(clock.Date(2024, 2, 14)))

	summary, err := f.scheduler(t, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2024-02-15", summary.Date)
	assert.Equal(t, 1, summary.Clinics)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, 0, summary.Activated)
	assert.NotEmpty(t, summary.RunID)

	record := f.load(t, recordID)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusEnded, record.Status)
	require.NotNil(t, record.EndDate)
	assert.Equal(t, clock.Date(2024, 2, 14), *record.EndDate)
	assert.Equal(t, clinicdomain.ClinicStatusEnded, f.clinicStatus(t, clinicID))
	assert.Equal(t, int64(1), f.auditCount(t, auditdomain.ActionSubscriptionExpire))
}

func TestRunOnceKeepsRecordOnItsLastDay(t *testing.T) {
	f := newFixture(t, at(2024, 2, 14))
	clinicID := f.clinic(t, clinicdomain.ClinicStatusActive)
	recordID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, 1, 15), dbtest.DatePtr(clock.Date(2024, 2, 14)))

	summary, err := f.scheduler(t, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Clinics)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, f.load(t, recordID).Status)
	assert.Equal(t, clinicdomain.ClinicStatusActive, f.clinicStatus(t, clinicID))
}

func TestRunOnceIsIdempotentWithinADay(t *testing.T) {
	f := newFixture(t, at(2024, 2, 15))
	clinicID := f.clinic(t, clinicdomain.ClinicStatusActive)
	endedID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, 1, 15), dbtest.DatePtr(clock.Date(2024, 2, 14)))
	renewalID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusUpcoming, clock.Date(2024, 2, 15), dbtest.DatePtr(clock.Date(2024, 3, 15)))
	sched := f.scheduler(t, nil, nil)

	first, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Expired)
	assert.Equal(t, 1, first.Activated)

	f.clock.Advance(3 * time.Hour)
	second, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Clinics)
	assert.Equal(t, 0, second.Expired)
	assert.Equal(t, 0, second.Activated)

	assert.Equal(t, subscriptiondomain.SubscriptionStatusEnded, f.load(t, endedID).Status)
	renewal := f.load(t, renewalID)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, renewal.Status)
	require.NotNil(t, renewal.ActivationDate)
	assert.Equal(t, clinicdomain.ClinicStatusActive, f.clinicStatus(t, clinicID))
	assert.Equal(t, int64(1), f.auditCount(t, auditdomain.ActionSubscriptionExpire))
	assert.Equal(t, int64(1), f.auditCount(t, auditdomain.ActionSubscriptionActivate))
}

func TestRunOnceActivatesUpcomingOnStartDate(t *testing.T) {
	f := newFixture(t, at(2024, 3, 1))
	clinicID := f.clinic(t, clinicdomain.ClinicStatusUpcoming)
	recordID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusUpcoming, clock.Date(2024, 3, 1), dbtest.DatePtr(clock.Date(2024, 3, 30)))

	summary, err := f.scheduler(t, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Activated)

	record := f.load(t, recordID)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, record.Status)
	require.NotNil(t, record.ActivationDate)
	assert.Equal(t, clinicdomain.ClinicStatusActive, f.clinicStatus(t, clinicID))
}

func TestRunOnceCarriesFullyLapsedUpcomingToEnded(t *testing.T) {
	f := newFixture(t, at(2024, 2, 15))
	clinicID := f.clinic(t, clinicdomain.ClinicStatusUpcoming)
	recordID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusUpcoming, clock.Date(2024, 1, 1), dbtest.DatePtr(clock.Date(2024, 1, 30)))

	summary, err := f.scheduler(t, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Activated)
	assert.Equal(t, 1, summary.Expired)

	record := f.load(t, recordID)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusEnded, record.Status)
	require.NotNil(t, record.ActivationDate)
	assert.Equal(t, clinicdomain.ClinicStatusEnded, f.clinicStatus(t, clinicID))
	assert.Equal(t, int64(1), f.auditCount(t, auditdomain.ActionSubscriptionActivate))
	assert.Equal(t, int64(1), f.auditCount(t, auditdomain.ActionSubscriptionExpire))
}

func TestRunOnceSupersedesRunningRecord(t *testing.T) {
	f := newFixture(t, at(2024, 2, 15))
	clinicID := f.clinic(t, clinicdomain.ClinicStatusActive)
	runningID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, 1, 25), dbtest.DatePtr(clock.Date(2024, 2, 23)))
	nextID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusUpcoming, clock.Date(2024, 2, 15), dbtest.DatePtr(clock.Date(2024, 3, 15)))

	summary, err := f.scheduler(t, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	running := f.load(t, runningID)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusEnded, running.Status)
	require.NotNil(t, running.EndDate)
	assert.Equal(t, clock.Date(2024, 2, 14), *running.EndDate)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, f.load(t, nextID).Status)
	assert.Equal(t, clinicdomain.ClinicStatusActive, f.clinicStatus(t, clinicID))
}

type failingRepo struct {
	subscriptiondomain.Repository
	failID snowflake.ID
}

func (r failingRepo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to subscriptiondomain.SubscriptionStatus, activationDate *time.Time, at time.Time) (int64, error) {
	if id == r.failID {
		return 0, errors.New("disk on fire")
	}
	return r.Repository.UpdateStatus(ctx, db, id, from, to, activationDate, at)
}

func TestRunOnceIsolatesClinicFailures(t *testing.T) {
	f := newFixture(t, at(2024, 2, 15))
	healthyClinic := f.clinic(t, clinicdomain.ClinicStatusActive)
	healthyID := f.record(t, healthyClinic, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, 1, 15), dbtest.DatePtr(clock.Date(2024, 2, 14)))
	brokenClinic := f.clinic(t, clinicdomain.ClinicStatusUpcoming)
	// The broken clinic fails on its second transition, after the first was written.
	lapsedID := f.record(t, brokenClinic, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, 1, 10), dbtest.DatePtr(clock.Date(2024, 2, 8)))
	brokenID := f.record(t, brokenClinic, subscriptiondomain.SubscriptionStatusUpcoming, clock.Date(2024, 2, 15), dbtest.DatePtr(clock.Date(2024, 3, 15)))

	core, logs := observer.New(zapcore.InfoLevel)
	f.log = zap.New(core)

	repo := failingRepo{Repository: subscriptionrepository.Provide(), failID: brokenID}
	summary, err := f.scheduler(t, repo, nil).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Clinics)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	failure := summary.Failures[0]
	assert.Equal(t, brokenClinic.String(), failure.ClinicID)
	assert.Contains(t, failure.RecordIDs, brokenID.String())
	assert.Contains(t, failure.Error, "disk on fire")

	assert.Equal(t, subscriptiondomain.SubscriptionStatusEnded, f.load(t, healthyID).Status)
	assert.Equal(t, clinicdomain.ClinicStatusEnded, f.clinicStatus(t, healthyClinic))

	// Nothing of the failed clinic's unit was committed.
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, f.load(t, lapsedID).Status)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusUpcoming, f.load(t, brokenID).Status)
	assert.Equal(t, clinicdomain.ClinicStatusUpcoming, f.clinicStatus(t, brokenClinic))

	// Only the committed clinic reports its transition.
	transitions := logs.FilterMessage("subscription.transition").All()
	require.Len(t, transitions, 1)
	assert.Equal(t, healthyID.String(), transitions[0].ContextMap()["subscription_id"])
	assert.Len(t, logs.FilterMessage("scheduler.clinic.failed").All(), 1)

	labels := map[string]string{"service": "vetsub", "env": "test", "job": jobSweep, "result": obsmetrics.ClinicResultFailed}
	assert.Equal(t, float64(1), getCounterValue(t, f.registry, "vetsub_scheduler_clinics_processed_total", labels))
	labels["result"] = obsmetrics.ClinicResultSucceeded
	assert.Equal(t, float64(1), getCounterValue(t, f.registry, "vetsub_scheduler_clinics_processed_total", labels))
}

func TestRunOnceSkipsWhenRunLockHeld(t *testing.T) {
	f := newFixture(t, at(2024, 2, 15))
	clinicID := f.clinic(t, clinicdomain.ClinicStatusActive)
	recordID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, 1, 15), dbtest.DatePtr(clock.Date(2024, 2, 14)))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set("vetsub:sweep:2024-02-15", "other-process"))

	summary, err := f.scheduler(t, nil, distlock.NewLocker(client)).RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Skipped)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, f.load(t, recordID).Status)
	labels := map[string]string{"service": "vetsub", "env": "test", "reason": obsmetrics.SchedulerRunSkippedLockHeld}
	assert.Equal(t, float64(1), getCounterValue(t, f.registry, "vetsub_scheduler_run_skipped_total", labels))
}

func TestRunOnceReleasesRunLock(t *testing.T) {
	f := newFixture(t, at(2024, 2, 15))
	clinicID := f.clinic(t, clinicdomain.ClinicStatusActive)
	f.record(t, clinicID, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, 1, 15), dbtest.DatePtr(clock.Date(2024, 2, 14)))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	summary, err := f.scheduler(t, nil, distlock.NewLocker(client)).RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.Skipped)
	assert.Equal(t, 1, summary.Expired)
	assert.False(t, mr.Exists("vetsub:sweep:2024-02-15"))
}

func TestRunOnceProceedsWhenRedisUnavailable(t *testing.T) {
	f := newFixture(t, at(2024, 2, 15))
	clinicID := f.clinic(t, clinicdomain.ClinicStatusActive)
	recordID := f.record(t, clinicID, subscriptiondomain.SubscriptionStatusActive, clock.Date(2024, 1, 15), dbtest.DatePtr(clock.Date(2024, 2, 14)))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	summary, err := f.scheduler(t, nil, distlock.NewLocker(client)).RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.Skipped)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusEnded, f.load(t, recordID).Status)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRejectsMalformedRunAt(t *testing.T) {
	f := newFixture(t, at(2024, 2, 15))
	repo := subscriptionrepository.Provide()
	clinicRepo := clinicrepository.Provide()

	_, err := New(Params{
		DB:         f.db,
		Log:        zap.NewNop(),
		GenID:      f.node,
		Calendar:   clock.NewCalendar(f.clock, time.UTC),
		Repo:       repo,
		ClinicRepo: clinicRepo,
		StatusSync: subscriptionservice.NewStatusSync(repo, clinicRepo, f.clock),
		AuditSvc:   auditservice.NewService(auditservice.Params{DB: f.db, Log: zap.NewNop(), GenID: f.node, Clock: f.clock, Repo: auditrepository.Provide()}),
		Config:     Config{RunAt: "25:99"},
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
