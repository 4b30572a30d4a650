package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	authdomain "github.com/smallbiznis/fieldrunner/internal/auth/domain"
	"github.com/smallbiznis/fieldrunner/internal/authorization"
	"github.com/smallbiznis/fieldrunner/internal/config"
	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	"github.com/smallbiznis/fieldrunner/internal/observability"
	obsmiddleware "github.com/smallbiznis/fieldrunner/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fieldrunner/internal/observability/metrics"
	obstracing "github.com/smallbiznis/fieldrunner/internal/observability/tracing"
	webhookdomain "github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Cfg         config.Config
	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if !p.ObsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           p.ObsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(p.HTTPMetrics))
	r.Use(SecurityHeaders())
	if len(p.Cfg.CORSOrigins) > 0 {
		r.Use(cors.New(corsConfig(p.Cfg.CORSOrigins)))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	webhookSvc   webhookdomain.Service
	directorySvc directorydomain.Service
	sessions     authdomain.SessionVerifier
	authzSvc     authorization.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	WebhookSvc   webhookdomain.Service
	DirectorySvc directorydomain.Service
	Sessions     authdomain.SessionVerifier
	AuthzSvc     authorization.Service `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		webhookSvc:   p.WebhookSvc,
		directorySvc: p.DirectorySvc,
		sessions:     p.Sessions,
		authzSvc:     p.AuthzSvc,
	}

	svc.registerWebhookRoutes()
	svc.registerDebugRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks", s.ReceiveWebhook)
}

func (s *Server) registerDebugRoutes() {
	debug := s.engine.Group("/debug", s.AuthRequired(), RequireOrganization())
	debug.GET("/me", s.DebugMe)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	api.GET("/me", s.GetMe)

	org := api.Group("/organization", RequireOrganization())
	{
		org.GET("", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionRead), s.GetOrganization)
		org.GET("/members", s.authorizeOrgAction(authorization.ObjectMembership, authorization.ActionList), s.ListOrganizationMembers)
	}

	api.GET("/webhook-events",
		RequireOrganization(),
		s.authorizeOrgAction(authorization.ObjectWebhookEvent, authorization.ActionList),
		s.ListWebhookEvents,
	)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
