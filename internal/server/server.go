package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	adherencedomain "github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/internal/config"
	meddomain "github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/notification"
	"github.com/doseline/doseline/internal/observability"
	obsmiddleware "github.com/doseline/doseline/internal/observability/logger"
	obsmetrics "github.com/doseline/doseline/internal/observability/metrics"
	obstracing "github.com/doseline/doseline/internal/observability/tracing"
	"github.com/doseline/doseline/internal/ratelimit"
	riskdomain "github.com/doseline/doseline/internal/risk/domain"
	statsdomain "github.com/doseline/doseline/internal/stats/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAPIRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	medicationSvc meddomain.Service
	doseSvc       adherencedomain.Service
	statsSvc      statsdomain.Service
	riskSvc       riskdomain.Service
	dispatcher    notification.Dispatcher
	remindLimiter *ratelimit.ReminderLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	MedicationSvc meddomain.Service
	DoseSvc       adherencedomain.Service
	StatsSvc      statsdomain.Service
	RiskSvc       riskdomain.Service
	Dispatcher    notification.Dispatcher
	RemindLimiter *ratelimit.ReminderLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		medicationSvc: p.MedicationSvc,
		doseSvc:       p.DoseSvc,
		statsSvc:      p.StatsSvc,
		riskSvc:       p.RiskSvc,
		dispatcher:    p.Dispatcher,
		remindLimiter: p.RemindLimiter,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1", s.UserRequired())

	v1.POST("/medications", s.CreateMedication)
	v1.GET("/medications", s.ListMedications)
	v1.GET("/medications/:id", s.GetMedicationByID)
	v1.PATCH("/medications/:id", s.UpdateMedication)
	v1.DELETE("/medications/:id", s.DeleteMedication)

	v1.GET("/doses", s.ListDoses)
	v1.POST("/doses/:id/confirm", s.ConfirmDose)
	v1.POST("/doses/:id/skip", s.SkipDose)
	v1.POST("/doses/:id/remind", s.SendReminderNow)

	v1.GET("/stats", s.GetStatsRange)
	v1.GET("/stats/overview", s.GetStatsOverview)

	v1.GET("/risk/scores", s.GetRiskHistory)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
