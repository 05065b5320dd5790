package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/vetsub/internal/observability/context"
	obslogger "github.com/smallbiznis/vetsub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vetsub/internal/observability/metrics"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	startedAt      time.Time
	processedCount int
	errorCount     int
}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) newJobRun(job string) *jobRun {
	return &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: time.Now(),
	}
}

func (s *Scheduler) withLogContext(ctx context.Context, clinicID snowflake.ID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = obscontext.WithActor(ctx, systemActorID, systemActorRole)
	if clinicID != 0 {
		ctx = obscontext.WithClinicID(ctx, clinicID.String())
	}
	return ctx
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun, fields ...zap.Field) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.job.start", append([]zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
	}, fields...)...)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

// logClinicFailure writes one entry per failed clinic carrying what an
// operator needs to retry it.
func (s *Scheduler) logClinicFailure(ctx context.Context, run *jobRun, clinicID snowflake.ID, recordIDs []string, err error) {
	if err == nil {
		return
	}
	run.IncError()
	ctx = s.withLogContext(ctx, clinicID)
	s.logger(ctx).Error("scheduler.clinic.failed",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.String("clinic_id", idString(clinicID)),
		zap.Strings("record_ids", recordIDs),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}

func idString(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
