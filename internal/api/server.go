package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/platformbuilds/dashboard-core/internal/api/handlers"
	"github.com/platformbuilds/dashboard-core/internal/api/middleware"
	"github.com/platformbuilds/dashboard-core/internal/config"
	"github.com/platformbuilds/dashboard-core/internal/monitoring"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
	"github.com/platformbuilds/dashboard-core/pkg/store"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	store      store.RecordStore
	repo       repo.DashboardRepo
	templates  handlers.Templates
	locks      *handlers.DashboardLocks
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	recordStore store.RecordStore,
	dashboards repo.DashboardRepo,
	templates handlers.Templates,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config:    cfg,
		logger:    log,
		store:     recordStore,
		repo:      dashboards,
		templates: templates,
		locks:     handlers.NewDashboardLocks(),
		router:    router,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	// CORS for the dashboard UI
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))

	s.router.Use(middleware.RequestLogger(s.logger))

	if s.config.Monitoring.Enabled {
		s.router.Use(middleware.MetricsMiddleware())
	}

	// handlers attach errors with c.Error; this renders them
	s.router.Use(middleware.ErrorHandler(s.logger))

	// OpenAPI specification endpoints
	s.router.StaticFile("/api/openapi.yaml", handlers.OpenAPIPath())
	s.router.GET("/api/openapi.json", handlers.GetOpenAPISpec)

	// Visit /swagger/index.html
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/api/openapi.yaml")))

	if s.config.Monitoring.Enabled {
		path := s.config.Monitoring.MetricsPath
		if path == "" || path == "/metrics" {
			monitoring.SetupPrometheusMetrics(s.router)
		} else {
			monitoring.RegisterMetrics()
			s.router.GET(path, monitoring.Handler())
		}
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.store, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/swagger/index.html")
	})

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", healthHandler.HealthCheck)

	dash := handlers.NewDashboardHandler(s.repo, s.templates, s.locks, s.logger)
	v1.GET("/templates", dash.ListTemplates)
	v1.GET("/dashboards", dash.ListDashboards)
	v1.POST("/dashboards", dash.CreateDashboard)
	v1.GET("/dashboards/:id", dash.GetDashboard)
	v1.GET("/dashboards/:id/preview.svg", dash.GetPreview)
	v1.PUT("/dashboards/:id/name", dash.RenameDashboard)
	v1.DELETE("/dashboards/:id", dash.DeleteDashboard)
	v1.POST("/dashboards/:id/widgets", dash.AddWidget)
	v1.DELETE("/dashboards/:id/widgets/:widgetId", dash.RemoveWidget)
	v1.PUT("/dashboards/:id/layout", dash.UpdateLayout)
	v1.POST("/dashboards/:id/widgets/:widgetId/filter", dash.ApplyFilter)
	v1.DELETE("/dashboards/:id/widgets/:widgetId/filter", dash.ResetFilter)

	if s.config.WebSocket.Enabled {
		ws := handlers.NewEditSessionHandler(s.repo, s.templates, s.locks, handlers.EditSessionConfig{
			WebSocket:      s.config.WebSocket,
			AllowedOrigins: s.config.CORS.AllowedOrigins,
			CoalesceWindow: s.config.Layout.CoalesceWindow,
		}, s.logger)
		v1.GET("/dashboards/:id/edit", ws.HandleEditSession)
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: edit sessions are long-lived websockets
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("DASHBOARD-CORE REST API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down DASHBOARD-CORE gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
