package apiserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/apiserver/handler"
	"github.com/amoylab/oauthprobe/internal/apiserver/middleware"
	"github.com/amoylab/oauthprobe/internal/auth/jwt"
	"github.com/amoylab/oauthprobe/internal/common/config"
	"github.com/amoylab/oauthprobe/internal/correlator"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/internal/oauth"
	"github.com/amoylab/oauthprobe/internal/registry"
	"github.com/amoylab/oauthprobe/internal/resource"
	"github.com/amoylab/oauthprobe/internal/session"
	"github.com/amoylab/oauthprobe/internal/token"
	"github.com/amoylab/oauthprobe/pkg/metrics"
	"github.com/amoylab/oauthprobe/pkg/version"
)

// Server owns the HTTP listener and every component behind it
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	router     *gin.Engine
	httpServer *http.Server
	correlator correlator.Store
	db         database.Database
}

// New builds the component graph on top of an open database and correlator
// store. The server closes both on Shutdown.
func New(cfg *config.Config, logger *zap.Logger, db database.Database, pending correlator.Store) (*Server, error) {
	jwtService, err := jwt.NewService(jwt.Config{SecretKey: cfg.Session.SecretKey, Duration: cfg.Session.Duration})
	if err != nil {
		return nil, err
	}

	m := metrics.New(cfg.Metrics)
	httpClient := oauth.NewHTTPClient(cfg.OAuth)
	sessions := session.NewMemoryStore(logger, cfg.Session.Duration)
	reg := registry.New(db, logger)
	tokens := token.NewStore(db, logger)
	engine := oauth.NewEngine(reg, tokens, httpClient, m, logger)
	fetcher := resource.NewFetcher(cfg.Resource, tokens, engine, httpClient, m, logger)

	auth, err := handler.NewAuth(cfg, jwtService, sessions, reg, tokens, pending, m, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger.Named("apiserver"),
		correlator: pending,
		db:         db,
	}
	s.router = newRouter(cfg, logger, m, routes{
		auth:      auth,
		clients:   handler.NewClient(cfg, reg, tokens, engine, pending, m, logger),
		providers: handler.NewProvider(cfg, reg, pending, m),
		tokens:    handler.NewToken(cfg, reg, tokens, engine, pending, m, logger),
		resource:  handler.NewResource(fetcher),
		authMW:    middleware.JWTAuthMiddleware(jwtService, sessions, cfg.Session.CookieName),
		pendingMW: middleware.RequestKey(pending, m, logger),
	})
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.cfg.Server.Addr),
		zap.String("base_path", s.cfg.Server.BasePath),
		zap.String("callback_url", s.cfg.CallbackURL()))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains requests then releases the correlator and database
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if cerr := s.correlator.Close(); cerr != nil {
		s.logger.Warn("failed to close correlator store", zap.Error(cerr))
	}
	if derr := s.db.Close(); derr != nil {
		s.logger.Warn("failed to close database", zap.Error(derr))
	}
	return err
}

type routes struct {
	auth      *handler.Auth
	clients   *handler.Client
	providers *handler.Provider
	tokens    *handler.Token
	resource  *handler.Resource
	authMW    gin.HandlerFunc
	pendingMW gin.HandlerFunc
}

func newRouter(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, r routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	router.Use(m.Middleware(), i18n.Language(), middleware.Logger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	base := router.Group(cfg.Server.BasePath)
	base.GET("/login", r.auth.LoginForm)
	base.POST("/login", r.pendingMW, r.auth.Login)

	authed := base.Group("", r.authMW)
	authed.GET("/logout", r.auth.Logout)
	authed.GET("/home", r.auth.Home)

	authed.GET("/clients", r.clients.List)
	authed.GET("/clients/:id", r.clients.Get)
	authed.GET("/addclient", r.clients.AddForm)
	authed.POST("/clients", r.pendingMW, r.clients.Create)
	authed.POST("/clients/:id/activate", r.clients.Activate)
	authed.GET("/dcr", r.clients.RegisterForm)
	authed.POST("/dcr", r.pendingMW, r.clients.Register)

	authed.GET("/providers", r.providers.List)
	authed.GET("/providers/:name", r.providers.Get)
	authed.GET("/addprovider", r.providers.AddForm)
	authed.POST("/providers", r.pendingMW, r.providers.Create)
	authed.POST("/providers/:name/activate", r.providers.Activate)

	authed.GET("/tokens", r.tokens.List)
	authed.GET("/tokens/:id", r.tokens.Get)
	authed.POST("/tokens/:id/activate", r.tokens.Activate)
	authed.GET("/token", r.tokens.StartForm)
	authed.POST("/token", r.pendingMW, r.tokens.Start)
	authed.GET(cfg.OAuth.CallbackPath, r.tokens.Callback)

	authed.POST("/fetch_resource", r.resource.Fetch)

	return router
}
