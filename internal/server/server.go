package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Kris4js/WildGooseAgent/config"
	"github.com/Kris4js/WildGooseAgent/internal/agent"
	"github.com/Kris4js/WildGooseAgent/internal/contextstore"
	"github.com/Kris4js/WildGooseAgent/internal/llm"
	"github.com/Kris4js/WildGooseAgent/internal/skills"
	"github.com/Kris4js/WildGooseAgent/internal/store"
	"github.com/Kris4js/WildGooseAgent/internal/telemetry"
	"github.com/Kris4js/WildGooseAgent/internal/tools"
)

// Deps are the shared collaborators the HTTP handlers run on. Run builds
// them from config; tests construct them directly.
type Deps struct {
	Store     *store.Store
	Agent     *agent.Agent
	Context   contextstore.Store
	Tools     *tools.Registry
	Skills    *skills.Registry
	Metrics   *telemetry.Metrics
	JWTSecret []byte
	Logger    *log.Logger
}

// NewEcho assembles the echo instance with middleware and all routes.
func NewEcho(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	logger := d.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))
	if d.Metrics != nil {
		e.Use(metricsMiddleware(d.Metrics))
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	auth := &AuthHandler{Store: d.Store, Secret: d.JWTSecret}
	auth.Register(api.Group("/auth"))

	sh := &SessionsHandler{Store: d.Store}
	sh.Register(api.Group("/sessions"), d.JWTSecret)

	ch := &ChatHandler{Store: d.Store, Agent: d.Agent, Logger: logger}
	ch.Register(api.Group("/chat"), d.JWTSecret)

	th := &ToolsHandler{Registry: d.Tools}
	th.Register(api.Group("/tools"), d.JWTSecret)

	kh := &SkillsHandler{Registry: d.Skills}
	kh.Register(api.Group("/skills"), d.JWTSecret)

	if d.Context != nil {
		xh := &ContextHandler{Store: d.Context}
		xh.Register(api.Group("/context"), d.JWTSecret)
	}

	return e
}

// metricsMiddleware counts requests by method, route and status code.
func metricsMiddleware(m *telemetry.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			code := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					code = he.Code
				}
			}
			m.HTTPRequest(c.Request().Method, path, strconv.Itoa(code))
			return err
		}
	}
}

// Run wires config into collaborators and serves until the listener stops.
func Run(addr string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := store.Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.ContextStore.Backend == "redis" || cfg.Storage.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			if cfg.ContextStore.Backend == "redis" {
				return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
			}
			// lock-only usage is optional
			rdb = nil
		}
	}

	ctxStore, err := contextstore.New(cfg.ContextStore, rdb)
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	skillsReg := skills.NewRegistry(cfg.Skills.Dir)
	registry := tools.NewRegistry(
		tools.NewSearchTool(cfg.Tools.Search),
		tools.NewSkillTool(skillsReg),
	)
	if cfg.Tools.Browser.Enabled {
		registry.Register(tools.NewBrowserTool(cfg.Tools.Browser))
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	shutdownTracing := telemetry.SetupTracing(cfg.Telemetry)
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutCtx)
	}()

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	ag, err := agent.New(agent.Options{
		Config:   cfg.Agent,
		Routing:  cfg.LLM.Routing,
		Provider: provider,
		Registry: registry,
		Store:    ctxStore,
		Metrics:  metrics,
		Logger:   orchLogger,
	})
	if err != nil {
		return err
	}

	e := NewEcho(Deps{
		Store:     st,
		Agent:     ag,
		Context:   ctxStore,
		Tools:     registry,
		Skills:    skillsReg,
		Metrics:   metrics,
		JWTSecret: []byte(secret),
	})

	sched := &Scheduler{
		Store:  ctxStore,
		Rdb:    rdb,
		Cron:   cfg.ContextStore.PruneCron,
		MaxAge: cfg.ContextStore.MaxAge,
		Logger: log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		Stop:   make(chan struct{}),
	}
	sched.Start()
	defer close(sched.Stop)

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":8080"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
