package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/jobboard/config"
	"github.com/cppla/jobboard/controllers"
	"github.com/cppla/jobboard/metrics"
	"github.com/cppla/jobboard/middleware"
	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

// App holds the wired services. Nil members leave their endpoints answering "not configured".
type App struct {
	Counter     *services.CounterService
	Alerts      *services.AlertService
	Checkouts   *services.CheckoutService
	Webhook     *services.PaymentWebhook
	Payments    bool
	Directory   services.Directory
	Resets      *services.PasswordResetService
	LinkedIn    *services.LinkedInProvider
	States      *utils.StateStore
	Revocations *utils.TokenRevocationList
	Extractor   *services.ListingExtractor
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, app App) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, !cfg.IsProduction()))
	} else {
		r.Use(gin.Recovery())
	}
	r.Use(metrics.Middleware())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	var tracker controllers.Tracker
	var statsReader controllers.StatsReader
	if app.Counter != nil {
		tracker, statsReader = app.Counter, app.Counter
	}
	trackingController := controllers.NewTrackingController(tracker)

	// beacons are posted cross-origin from any page embedding a job
	trackLimit := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	track := r.Group("", middleware.TrackingCORS(), trackLimit.Middleware())
	track.Any("/track-view", trackingController.TrackView)
	track.Any("/track-click", trackingController.TrackClick)

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	apiLimit := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	api := r.Group("/api/v1", cors.New(corsCfg), apiLimit.Middleware())
	// preflights only reach the cors middleware through a matched route
	api.OPTIONS("/*path", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	statsController := controllers.NewStatsController(statsReader)
	api.GET("/jobs/:id/stats", statsController.GetJobStats)

	var alerts controllers.Alerts
	if app.Alerts != nil {
		alerts = app.Alerts
	}
	alertController := controllers.NewAlertController(alerts)
	api.POST("/alerts/subscribe", alertController.Subscribe)
	api.GET("/alerts/unsubscribe", alertController.Unsubscribe)
	api.POST("/alerts/unsubscribe", alertController.Unsubscribe)
	api.GET("/alerts/status", alertController.Status)

	var checkouts controllers.Checkouts
	var webhook controllers.WebhookHandler
	if app.Checkouts != nil {
		checkouts = app.Checkouts
	}
	if app.Webhook != nil {
		webhook = app.Webhook
	}
	checkoutController := controllers.NewCheckoutController(checkouts, webhook, app.Payments && checkouts != nil && webhook != nil)
	api.POST("/checkout/featured", checkoutController.Featured)
	api.POST("/checkout/alerts", checkoutController.Alerts)
	api.POST("/webhooks/stripe", checkoutController.Webhook)

	deps := controllers.AuthDeps{Directory: app.Directory}
	if app.Resets != nil {
		deps.Resets = app.Resets
	}
	if app.LinkedIn != nil {
		deps.LinkedIn = app.LinkedIn
	}
	if app.States != nil {
		deps.States = app.States
	}
	if app.Revocations != nil {
		deps.Revoker = app.Revocations
	}
	authController := controllers.NewAuthController(deps)
	var revoked middleware.Revocations
	if app.Revocations != nil {
		revoked = app.Revocations
	}
	authRequired := middleware.AuthRequired(revoked)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.GET("/me", authRequired, authController.Me)
	authGroup.POST("/password-reset", authController.RequestPasswordReset)
	authGroup.POST("/password-reset/confirm", authController.ConfirmPasswordReset)
	authGroup.GET("/linkedin/login", authController.LinkedInLogin)
	authGroup.GET("/linkedin/callback", authController.LinkedInCallback)

	var extractor controllers.Extractor
	if app.Extractor != nil {
		extractor = app.Extractor
	}
	scrapeController := controllers.NewScrapeController(extractor)
	api.POST("/scrape", authRequired, scrapeController.Scrape)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, "Route not found")
	})

	return r
}
