package main

import (
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/jobboard/config"
	"github.com/cppla/jobboard/models"
	"github.com/cppla/jobboard/routes"
	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/store"
	"github.com/cppla/jobboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := openDatabase(cfg)
	rc := utils.GetRedis()

	app := routes.App{
		States:      utils.NewStateStore(rc, 0),
		Revocations: utils.NewTokenRevocationList(rc),
	}

	tab, err := store.Open(store.Options{
		Driver:       cfg.StoreDriver,
		SheetBaseURL: cfg.SheetBaseURL,
		SheetToken:   cfg.SheetToken,
		RedisPrefix:  cfg.RedisPrefix,
		DB:           db,
		Redis:        rc,
	})
	if err != nil {
		utils.Logger.Warn("tabular store unavailable, tracking and alerts disabled", zap.Error(err))
	}

	var mailer services.Mailer
	if m := utils.NewSMTPMailer(cfg); m != nil {
		mailer = m
	}

	var gateway services.PaymentGateway
	if g := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret); g != nil {
		gateway = g
		app.Payments = true
	}
	app.Checkouts = services.NewCheckoutService(gateway, services.CheckoutConfig{
		FeaturedPriceID: cfg.FeaturedPriceID,
		AlertPriceID:    cfg.AlertPriceID,
		SuccessURL:      cfg.CheckoutSuccessURL,
		CancelURL:       cfg.CheckoutCancelURL,
	})

	if tab != nil {
		var cache services.Cache
		if c := utils.NewRedisCache(rc, cfg.RedisPrefix); c != nil {
			cache = c
		}
		app.Counter = services.NewCounterService(tab, services.CounterOptions{
			JobsTable:               cfg.JobsTable,
			DailyStatsTable:         cfg.DailyStatsTable,
			DisableAtomicIncrements: cfg.DisableAtomicIncrements,
			Logger:                  utils.Logger.Named("counter"),
			Cache:                   cache,
		})
		utils.Logger.Info("counter ready",
			zap.String("store", cfg.StoreDriver),
			zap.Bool("atomic_increments", app.Counter.Atomic()))

		opts := services.AlertOptions{
			Mailer:  mailer,
			BaseURL: cfg.PublicBaseURL,
			Logger:  utils.Logger.Named("alerts"),
		}
		if gateway != nil {
			opts.Payments = app.Checkouts
		}
		app.Alerts = services.NewAlertService(services.NewTableAlertRepository(tab, models.JobAlertsTable), opts)
		app.Webhook = services.NewPaymentWebhook(gateway, tab, cfg.JobsTable, app.Alerts, utils.Logger.Named("payments"))
	}

	if db != nil {
		app.Directory = services.NewLocalDirectory(db, cfg.ResetBaseURL)
		app.Resets = services.NewPasswordResetService(app.Directory, mailer, app.Revocations, utils.Logger.Named("identity"))
	}
	app.LinkedIn = services.NewLinkedInProvider(cfg.LinkedInClientID, cfg.LinkedInClientSecret, cfg.LinkedInRedirectURL)
	app.Extractor = services.NewListingExtractor(cfg.InferenceURL, cfg.InferenceToken)

	r := routes.SetupRouter(cfg, app)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// openDatabase connects MySQL when the mysql store driver or a DSN is configured.
// Users always live in MySQL; jobs, daily stats and alerts only with the mysql driver.
func openDatabase(cfg config.AppConfig) *gorm.DB {
	mysqlStore := strings.EqualFold(cfg.StoreDriver, "mysql")
	if !mysqlStore && cfg.DatabaseURI == "" && cfg.DBPassword == "" {
		utils.Logger.Info("mysql not configured, identity endpoints disabled")
		return nil
	}
	db, err := config.InitDatabase(&models.User{})
	if err != nil {
		utils.Logger.Warn("mysql unavailable, identity endpoints disabled", zap.Error(err))
		return nil
	}
	if mysqlStore {
		tables := []struct {
			name  string
			model any
		}{
			{cfg.JobsTable, &models.Job{}},
			{cfg.DailyStatsTable, &models.DailyStat{}},
			{models.JobAlertsTable, &models.JobAlert{}},
		}
		for _, t := range tables {
			if db.Migrator().HasTable(t.name) {
				continue
			}
			if err := db.Table(t.name).AutoMigrate(t.model); err != nil {
				utils.Logger.Error("auto migration failed", zap.String("table", t.name), zap.Error(err))
			}
		}
	}
	return db
}
