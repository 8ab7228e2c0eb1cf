package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Secrets never get defaults in code and must come from config.json or the environment.
type AppConfig struct {
	AppPort        string
	AppEnv         string
	JWTSecret      string
	PublicBaseURL  string
	AllowedOrigins []string
	// Requests per minute per client IP on public endpoints
	RateLimitPerMinute int
	GinMode            string
	GinPath            string
	// Tabular store (jobs / dailyStats)
	StoreDriver string
	// Forces the read-then-write counter path even on stores with atomic increments
	DisableAtomicIncrements bool
	JobsTable               string
	DailyStatsTable         string
	SheetBaseURL            string
	SheetToken              string
	// MySQL
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	RedisPrefix   string
	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	FeaturedPriceID     string
	AlertPriceID        string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	// LinkedIn OAuth
	LinkedInClientID     string
	LinkedInClientSecret string
	LinkedInRedirectURL  string
	// Inference API used by the listing scraper
	InferenceURL   string
	InferenceToken string
	// Password reset
	ResetBaseURL string
	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool
	// Logging
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("ignoring invalid config/config.json: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration. Tests use it to avoid touching the environment.
func Set(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// IsProduction reports whether error responses must hide internals.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped sections from path into out. A missing file is not an error.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.AppEnv = getString(app, "AppEnv")
		out.JWTSecret = getString(app, "JWTSecret")
		out.PublicBaseURL = getString(app, "PublicBaseURL")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
	}

	if st, ok := raw["store"].(map[string]any); ok {
		out.StoreDriver = getString(st, "Driver")
		out.JobsTable = getString(st, "JobsTable")
		out.DailyStatsTable = getString(st, "DailyStatsTable")
		out.DisableAtomicIncrements = getBool(st, "DisableAtomicIncrements")
	}

	if sh, ok := raw["sheet"].(map[string]any); ok {
		out.SheetBaseURL = getString(sh, "BaseURL")
		out.SheetToken = getString(sh, "Token")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
		out.RedisPrefix = getString(rds, "Prefix")
	}

	if sp, ok := raw["stripe"].(map[string]any); ok {
		out.StripeSecretKey = getString(sp, "SecretKey")
		out.StripeWebhookSecret = getString(sp, "WebhookSecret")
		out.FeaturedPriceID = getString(sp, "FeaturedPriceID")
		out.AlertPriceID = getString(sp, "AlertPriceID")
		out.CheckoutSuccessURL = getString(sp, "SuccessURL")
		out.CheckoutCancelURL = getString(sp, "CancelURL")
	}

	if li, ok := raw["linkedin"].(map[string]any); ok {
		out.LinkedInClientID = getString(li, "ClientID")
		out.LinkedInClientSecret = getString(li, "ClientSecret")
		out.LinkedInRedirectURL = getString(li, "RedirectURL")
	}

	if inf, ok := raw["inference"].(map[string]any); ok {
		out.InferenceURL = getString(inf, "URL")
		out.InferenceToken = getString(inf, "Token")
	}

	if sm, ok := raw["smtp"].(map[string]any); ok {
		out.SMTPHost = getString(sm, "SMTPHost")
		out.SMTPPort = getInt(sm, "SMTPPort")
		out.SMTPUsername = getString(sm, "SMTPUsername")
		out.SMTPPassword = getString(sm, "SMTPPassword")
		out.SMTPFrom = getString(sm, "SMTPFrom")
		out.SMTPFromName = getString(sm, "SMTPFromName")
		out.SMTPTLS = getBool(sm, "SMTPTLS")
		out.ResetBaseURL = getString(sm, "ResetBaseURL")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.GinMode = getString(lg, "GinMode")
		out.GinPath = getString(lg, "GinPath")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.AppEnv == "" {
		c.AppEnv = "development"
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:8080"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.StoreDriver == "" {
		c.StoreDriver = "sheet"
	}
	if c.JobsTable == "" {
		c.JobsTable = "jobs"
	}
	if c.DailyStatsTable == "" {
		c.DailyStatsTable = "dailyStats"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "jobboard"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = "jobboard"
	}
	if c.CheckoutSuccessURL == "" {
		c.CheckoutSuccessURL = c.PublicBaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	}
	if c.CheckoutCancelURL == "" {
		c.CheckoutCancelURL = c.PublicBaseURL + "/checkout/cancel"
	}
	if c.LinkedInRedirectURL == "" {
		c.LinkedInRedirectURL = c.PublicBaseURL + "/api/v1/auth/linkedin/callback"
	}
	if c.ResetBaseURL == "" {
		c.ResetBaseURL = c.PublicBaseURL + "/reset-password"
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("APP_ENV", ""); v != "" {
		c.AppEnv = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("PUBLIC_BASE_URL", ""); v != "" {
		c.PublicBaseURL = v
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("STORE_DRIVER", ""); v != "" {
		c.StoreDriver = strings.ToLower(v)
	}
	if v := getEnv("STORE_DISABLE_ATOMIC_INCREMENTS", ""); v != "" {
		c.DisableAtomicIncrements = v == "true"
	}
	if v := getEnv("JOBS_TABLE", ""); v != "" {
		c.JobsTable = v
	}
	if v := getEnv("DAILY_STATS_TABLE", ""); v != "" {
		c.DailyStatsTable = v
	}
	if v := getEnv("SHEET_BASE_URL", ""); v != "" {
		c.SheetBaseURL = v
	}
	if v := getEnv("SHEET_TOKEN", ""); v != "" {
		c.SheetToken = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("STRIPE_SECRET_KEY", ""); v != "" {
		c.StripeSecretKey = v
	}
	if v := getEnv("STRIPE_WEBHOOK_SECRET", ""); v != "" {
		c.StripeWebhookSecret = v
	}
	if v := getEnv("STRIPE_FEATURED_PRICE_ID", ""); v != "" {
		c.FeaturedPriceID = v
	}
	if v := getEnv("STRIPE_ALERT_PRICE_ID", ""); v != "" {
		c.AlertPriceID = v
	}
	if v := getEnv("LINKEDIN_CLIENT_ID", ""); v != "" {
		c.LinkedInClientID = v
	}
	if v := getEnv("LINKEDIN_CLIENT_SECRET", ""); v != "" {
		c.LinkedInClientSecret = v
	}
	if v := getEnv("LINKEDIN_REDIRECT_URL", ""); v != "" {
		c.LinkedInRedirectURL = v
	}
	if v := getEnv("INFERENCE_URL", ""); v != "" {
		c.InferenceURL = v
	}
	if v := getEnv("INFERENCE_TOKEN", ""); v != "" {
		c.InferenceToken = v
	}
	if v := getEnv("RESET_BASE_URL", ""); v != "" {
		c.ResetBaseURL = v
	}
	if v := getEnv("SMTP_HOST", ""); v != "" {
		c.SMTPHost = v
	}
	if v := getEnv("SMTP_PORT", ""); v != "" {
		c.SMTPPort = mustParseInt(v)
	}
	if v := getEnv("SMTP_USERNAME", ""); v != "" {
		c.SMTPUsername = v
	}
	if v := getEnv("SMTP_PASSWORD", ""); v != "" {
		c.SMTPPassword = v
	}
	if v := getEnv("SMTP_FROM", ""); v != "" {
		c.SMTPFrom = v
	}
	if v := getEnv("SMTP_FROM_NAME", ""); v != "" {
		c.SMTPFromName = v
	}
	if v := getEnv("SMTP_TLS", ""); v != "" {
		c.SMTPTLS = v == "true"
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
