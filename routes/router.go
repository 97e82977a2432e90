package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cppla/rollcall/config"
	"github.com/cppla/rollcall/controllers"
	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/middleware"
	"github.com/cppla/rollcall/utils"
)

// Deps are the services the HTTP surface exposes. Counter, Announcer and
// Updates may be nil when no Telegram transport is running.
type Deps struct {
	Ledger    *ledger.Ledger
	Rotation  *ledger.Rotation
	Batches   ledger.BatchFilter
	Counter   controllers.MemberCounter
	Announcer controllers.Announcer
	Updates   controllers.UpdateHandler
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Deps) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// access log goes to its own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.RequestID())
		r.Use(ginzap.GinzapWithConfig(gl, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			Context:    utils.RequestIDField,
		}))
		r.Use(ginzap.RecoveryWithZap(gl, false))
	} else {
		utils.Sugar.Warnf("gin logger unavailable, using default recovery: %v", err)
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.Metrics())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok", "setup_mode": cfg.SetupMode()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Updates != nil && cfg.TelegramMode == config.TelegramWebhook {
		webhook := controllers.NewWebhookController(deps.Updates, cfg.TelegramWebhookSecret)
		r.POST("/telegram/webhook", webhook.Receive)
	}

	authController := controllers.NewAuthController()
	checkInController := controllers.NewCheckInController(deps.Ledger, deps.Batches)
	reportController := controllers.NewReportController(deps.Ledger, deps.Counter)
	contentController := controllers.NewContentController(deps.Rotation, deps.Announcer)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), middleware.OperatorRequired(cfg.JWTSecret))

	api.GET("/auth/me", authController.Me)
	api.POST("/auth/revoke", authController.Revoke)

	groups := api.Group("/groups/:group_id", middleware.GroupRequired(cfg.Allowed))
	groups.POST("/checkins", checkInController.Record)
	groups.POST("/members", checkInController.Observe)
	groups.GET("/members", checkInController.Members)
	groups.GET("/submitted", reportController.Submitted)
	groups.GET("/report", reportController.Report)
	groups.GET("/pending", reportController.Pending)
	groups.GET("/leaderboard", reportController.Leaderboard)
	if deps.Rotation != nil {
		groups.POST("/content/next", contentController.Next)
		groups.GET("/content", contentController.State)
	}

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
