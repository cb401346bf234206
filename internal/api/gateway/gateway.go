// Package gateway wires every service into one Fiber router: the global
// middleware chain, route groups, and startup/shutdown lifecycle, in the
// manner of the teacher's APIGateway.
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"pcgarena/internal/config"
	"pcgarena/internal/email"
	"pcgarena/internal/identity"
	"pcgarena/internal/metrics"
	"pcgarena/internal/middleware"
	"pcgarena/internal/ratelimit"
	"pcgarena/internal/services/admin"
	adminHandlers "pcgarena/internal/services/admin/handlers"
	"pcgarena/internal/services/auth"
	authHandlers "pcgarena/internal/services/auth/handlers"
	"pcgarena/internal/services/battles"
	battlesHandlers "pcgarena/internal/services/battles/handlers"
	"pcgarena/internal/services/generators"
	generatorsHandlers "pcgarena/internal/services/generators/handlers"
	"pcgarena/internal/services/leaderboard"
	leaderboardHandlers "pcgarena/internal/services/leaderboard/handlers"
	"pcgarena/internal/services/stats"
	statsHandlers "pcgarena/internal/services/stats/handlers"
	"pcgarena/internal/store"
)

// Version is the server version reported by /health.
const Version = "0.1.0"

// APIGateway owns the Fiber router, the global middleware chain, and every
// mounted service.
type APIGateway struct {
	router  *fiber.App
	logger  *zap.Logger
	cfg     config.Config
	st      *store.Store
	metrics *metrics.Counters
}

// New builds the gateway: global middleware, the health endpoint, and every
// service's routes under /v1 (admin routes live at /admin, unversioned).
// db may be nil only in tests that want the middleware chain without live
// services.
func New(cfg config.Config, logger *zap.Logger, db *sql.DB) *APIGateway {
	app := fiber.New(fiber.Config{
		AppName: "PCG Arena API Gateway",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				logger.Error("gateway error", zap.Error(err))
			}
			return c.Status(code).JSON(fiber.Map{
				"protocol_version": "arena/v0",
				"error": fiber.Map{
					"code":      "INTERNAL",
					"message":   err.Error(),
					"retryable": code >= fiber.StatusInternalServerError,
				},
			})
		},
	})

	gw := &APIGateway{router: app, logger: logger, cfg: cfg, metrics: metrics.New()}

	gw.applyMiddleware()
	gw.setupHealthCheck()

	if db != nil {
		st := store.New(db)
		gw.st = st
		gw.registerRoutes(st)
	}

	return gw
}

func (g *APIGateway) applyMiddleware() {
	g.router.Use(requestid.New())
	g.router.Use(cors.New(cors.Config{
		AllowOrigins: g.cfg.Server.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	g.router.Use(fiberLogger.New())
	g.router.Use(recover.New())
	g.router.Use(metrics.Middleware(g.metrics))
}

func (g *APIGateway) dbSizeBytes() int64 {
	info, err := os.Stat(g.cfg.Database.Path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (g *APIGateway) setupHealthCheck() {
	g.router.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":      "ok",
			"server_time": time.Now().UTC().Format(time.RFC3339),
			"version":     Version,
			"counters": fiber.Map{
				"uptime_seconds": g.metrics.UptimeSeconds(),
				"requests_total": g.metrics.RequestsTotal(),
				"battles_served": g.metrics.BattlesServed(),
				"votes_received": g.metrics.VotesReceived(),
				"db_size_bytes":  g.dbSizeBytes(),
			},
		})
	})
}

func (g *APIGateway) registerRoutes(st *store.Store) {
	cfg := g.cfg
	logger := g.logger

	notifier := email.NewSMTPNotifier(email.Config{
		Host: cfg.Email.SMTPHost, Port: cfg.Email.SMTPPort, User: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPass, From: cfg.Email.From, UseTLS: true, Timeout: cfg.Email.Timeout,
	})
	verifier := identity.NewGoogleVerifier(cfg.Identity.ClientID, cfg.Identity.Issuer, cfg.Identity.JWKSURL, http.DefaultClient)

	authSvc := auth.NewService(cfg.Auth, cfg.Server.PublicURL, logger, st, notifier, verifier)
	battlesSvc := battles.NewService(cfg.Matchmaking, cfg.Rating, logger, st)
	generatorsSvc := generators.NewService(cfg.Rating, logger, st)
	leaderboardSvc := leaderboard.NewService(cfg.Rating, cfg.Matchmaking, st)
	statsSvc := stats.NewService(cfg.Matchmaking, st)
	adminSvc := admin.NewService(cfg.Rating, logger, st)

	v1 := g.router.Group("/v1")

	authH := authHandlers.New(authSvc, logger, cfg.Server.PublicURL)
	authGroup := v1.Group("/auth")
	authGroup.Post("/register", authH.Register)
	authGroup.Post("/login", authH.Login)
	authGroup.Post("/google", authH.Google)
	authGroup.Post("/verify-email", authH.VerifyEmail)
	authGroup.Post("/resend-verification", authH.ResendVerification)
	authGroup.Post("/forgot-password", authH.ForgotPassword)
	authGroup.Post("/reset-password", authH.ResetPassword)
	authGroup.Post("/logout", middleware.RequireSession(st, logger), authH.Logout)
	authGroup.Get("/me", middleware.RequireSession(st, logger), authH.Me)
	authGroup.Get("/me/admin", middleware.RequireAdmin(st, cfg.Admin.BearerKey, logger), authH.MeAdmin)

	// battles:next and votes carry distinct per-minute budgets (§4.7/§6);
	// each gets its own limiter rather than sharing one.
	nextLimiter := ratelimit.Middleware(ratelimit.New(cfg.Server.RateLimitBattlesNext, cfg.Server.RateLimitWindow))
	votesLimiter := ratelimit.Middleware(ratelimit.New(cfg.Server.RateLimitVotes, cfg.Server.RateLimitWindow))

	battlesH := battlesHandlers.New(battlesSvc, logger)
	battlesGroup := v1.Group("", middleware.OptionalSession(st, logger))
	battlesHandlers.RegisterRoutes(battlesGroup, battlesH,
		[]fiber.Handler{nextLimiter, metrics.CountOnSuccess(g.metrics.IncBattlesServed)},
		[]fiber.Handler{votesLimiter, metrics.CountOnSuccess(g.metrics.IncVotesReceived)},
	)

	genH := generatorsHandlers.New(generatorsSvc, st, logger)
	generatorsHandlers.RegisterRoutes(v1, genH, st, logger)

	lbH := leaderboardHandlers.New(leaderboardSvc, logger)
	leaderboardHandlers.RegisterRoutes(v1, lbH)

	statsH := statsHandlers.New(statsSvc, logger)
	statsHandlers.RegisterRoutes(v1, statsH)

	adminH := adminHandlers.New(adminSvc, cfg.Database.Path+".backup", logger)
	adminHandlers.RegisterRoutes(g.router, adminH, st, cfg.Admin.BearerKey, logger)
}

// Router exposes the underlying *fiber.App, used directly by tests.
func (g *APIGateway) Router() *fiber.App {
	return g.router
}

// Start begins listening on the configured host and port.
func (g *APIGateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.cfg.Server.Host, g.cfg.Server.Port)
	g.logger.Info("starting API gateway", zap.String("address", addr))
	return g.router.Listen(addr)
}

// Shutdown gracefully stops the gateway.
func (g *APIGateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down API gateway")
	return g.router.ShutdownWithContext(ctx)
}
