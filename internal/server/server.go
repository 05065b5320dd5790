package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/vetsub/internal/audit"
	auditdomain "github.com/smallbiznis/vetsub/internal/audit/domain"
	"github.com/smallbiznis/vetsub/internal/authorization"
	"github.com/smallbiznis/vetsub/internal/clinic"
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
	"github.com/smallbiznis/vetsub/internal/config"
	"github.com/smallbiznis/vetsub/internal/distlock"
	"github.com/smallbiznis/vetsub/internal/observability"
	obslogger "github.com/smallbiznis/vetsub/internal/observability/logger"
	obstracing "github.com/smallbiznis/vetsub/internal/observability/tracing"
	"github.com/smallbiznis/vetsub/internal/reference"
	referencedomain "github.com/smallbiznis/vetsub/internal/reference/domain"
	"github.com/smallbiznis/vetsub/internal/scheduler"
	"github.com/smallbiznis/vetsub/internal/staff"
	staffdomain "github.com/smallbiznis/vetsub/internal/staff/domain"
	"github.com/smallbiznis/vetsub/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	reference.Module,
	clinic.Module,
	subscription.Module,
	staff.Module,
	distlock.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// Sweeper runs one pass of time-driven subscription transitions.
type Sweeper interface {
	RunOnce(ctx context.Context) (scheduler.SweepSummary, error)
}

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.String("addr", srv.Addr), zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	log             *zap.Logger
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	referenceSvc    referencedomain.Service
	clinicSvc       clinicdomain.Service
	subscriptionSvc subscriptiondomain.Service
	staffSvc        staffdomain.Service
	sweeper         Sweeper
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Log             *zap.Logger
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	ReferenceSvc    referencedomain.Service
	ClinicSvc       clinicdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	StaffSvc        staffdomain.Service
	Scheduler       *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		log:             p.Log.Named("http.server"),
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		referenceSvc:    p.ReferenceSvc,
		clinicSvc:       p.ClinicSvc,
		subscriptionSvc: p.SubscriptionSvc,
		staffSvc:        p.StaffSvc,
	}
	if p.Scheduler != nil {
		svc.sweeper = p.Scheduler
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(ActorContext())

	// -------- Reference data --------
	api.GET("/plans", s.authorize(authorization.ObjectReference, authorization.ActionView), s.ListPlans)
	api.GET("/payment-methods", s.authorize(authorization.ObjectReference, authorization.ActionView), s.ListPaymentMethods)

	// -------- Clinics --------
	api.POST("/clinics", s.authorize(authorization.ObjectClinic, authorization.ActionClinicCreate), s.CreateClinic)
	api.GET("/clinics", s.authorize(authorization.ObjectClinic, authorization.ActionView), s.ListClinics)
	api.GET("/clinics/:id", s.authorize(authorization.ObjectClinic, authorization.ActionView), s.GetClinicByID)
	api.GET("/clinics/:id/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)

	// -------- Subscriptions --------
	api.GET("/clinics/:id/subscriptions", s.authorize(authorization.ObjectSubscription, authorization.ActionView), s.ListClinicSubscriptions)
	api.POST("/clinics/:id/subscriptions", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionCreate), s.CreateSubscription)
	api.GET("/subscriptions/:id", s.authorize(authorization.ObjectSubscription, authorization.ActionView), s.GetSubscriptionByID)
	api.POST("/subscriptions/:id/suspend", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionSuspend), s.SuspendSubscription)
	api.POST("/subscriptions/:id/reactivate", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionReactivate), s.ReactivateSubscription)
	api.POST("/subscriptions/:id/refund", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionRefund), s.RefundSubscription)

	// -------- Staff --------
	api.POST("/clinics/:id/staff", s.authorize(authorization.ObjectStaff, authorization.ActionStaffCreate), s.CreateStaff)
	api.GET("/clinics/:id/staff", s.authorize(authorization.ObjectStaff, authorization.ActionView), s.ListStaff)
	api.GET("/clinics/:id/staff/allowance", s.authorize(authorization.ObjectStaff, authorization.ActionView), s.GetStaffAllowance)
	api.POST("/staff/:id/deactivate", s.authorize(authorization.ObjectStaff, authorization.ActionStaffDeactivate), s.DeactivateStaff)
	api.POST("/staff/:id/reactivate", s.authorize(authorization.ObjectStaff, authorization.ActionStaffReactivate), s.ReactivateStaff)

	// -------- Operations --------
	api.POST("/admin/sweeps", s.authorize(authorization.ObjectSweep, authorization.ActionSweepRun), s.RunSweep)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
