package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Telegram transport modes.
const (
	TelegramPolling = "polling"
	TelegramWebhook = "webhook"
	TelegramOff     = "off"
)

// Snapshot store drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// AppConfig holds environment driven configuration values.
// Secrets have no defaults in code and must come from the environment, .env or config.json.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Telegram transport
	TelegramBotToken      string
	TelegramMode          string
	TelegramWebhookSecret string
	TelegramAPIBase       string
	// AllowedChatIDs restricts which groups are served. Empty means setup mode:
	// every group is accepted and nothing is scheduled.
	AllowedChatIDs []int64
	Timezone       string
	// Schedule
	ReportTimes        []string
	AwardsDelayMinutes int
	ContentTime        string
	ContentPath        string
	BatchWindowSeconds int
	// Snapshot storage
	StoreDriver  string
	StatePath    string
	RotationPath string
	DatabaseURI  string
	// Redis for the shared batch window
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// RabbitMQ event intake
	RabbitMQURL   string
	RabbitMQQueue string
	// Logging configuration
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
	c, err := LoadFrom(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return c
}

// LoadFrom loads configuration from an explicit config.json path and caches it.
// Unlike Load it reports an invalid configuration instead of exiting.
func LoadFrom(path string) (AppConfig, error) {
	// .env is optional; real environment variables still win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring unreadable .env: %v", err)
	}
	c, err := loadFrom(path)
	if err != nil {
		return c, err
	}
	Set(c)
	return c, nil
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration. Used by tests and the CLI.
func Set(c AppConfig) {
	cfg = c
	loaded = true
}

// loadFrom applies the precedence config.json -> defaults -> environment and validates the result.
func loadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	applyDefaults(&c)
	if err := applyEnvOverrides(&c); err != nil {
		return c, err
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Location returns the configured time zone. The zone was checked during Load.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SetupMode reports whether no allow-list is configured.
func (c AppConfig) SetupMode() bool {
	return len(c.AllowedChatIDs) == 0
}

// Allowed reports whether events from the group are served.
func (c AppConfig) Allowed(group int64) bool {
	if c.SetupMode() {
		return true
	}
	for _, id := range c.AllowedChatIDs {
		if id == group {
			return true
		}
	}
	return false
}

// BatchWindow is how long a transport batch id is remembered.
func (c AppConfig) BatchWindow() time.Duration {
	return time.Duration(c.BatchWindowSeconds) * time.Second
}

// AwardsDelay is how long after each report the awards are posted.
func (c AppConfig) AwardsDelay() time.Duration {
	return time.Duration(c.AwardsDelayMinutes) * time.Minute
}

// RequireJWTSecret fails when operator tokens cannot be signed or verified.
func (c AppConfig) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set in environment variables")
	}
	return nil
}

func (c AppConfig) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	for _, t := range c.ReportTimes {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("REPORT_TIMES entry %q is not HH:MM", t)
		}
	}
	if c.ContentTime != "" {
		if _, err := time.Parse("15:04", c.ContentTime); err != nil {
			return fmt.Errorf("CONTENT_TIME %q is not HH:MM", c.ContentTime)
		}
	}
	switch c.TelegramMode {
	case TelegramPolling, TelegramWebhook, TelegramOff:
	default:
		return fmt.Errorf("TELEGRAM_MODE %q: want polling, webhook or off", c.TelegramMode)
	}
	switch c.StoreDriver {
	case DriverFile:
	case DriverSQLite, DriverMySQL, DriverPostgres:
		if c.DatabaseURI == "" {
			return fmt.Errorf("STORE_DRIVER %s requires DATABASE_URI", c.StoreDriver)
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q: want file, sqlite, mysql or postgres", c.StoreDriver)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped sections into out if the file is present.
// Returns an error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if f, ok := m[key].(float64); ok {
			return int(f)
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
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
		out.JWTSecret = getString(app, "JWTSecret")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.Timezone = getString(app, "Timezone")
	}

	if tg, ok := raw["telegram"].(map[string]any); ok {
		out.TelegramBotToken = getString(tg, "BotToken")
		out.TelegramMode = getString(tg, "Mode")
		out.TelegramWebhookSecret = getString(tg, "WebhookSecret")
		out.TelegramAPIBase = getString(tg, "APIBase")
		if arr, ok := tg["AllowedChatIDs"].([]any); ok {
			for _, it := range arr {
				if f, ok := it.(float64); ok && f != 0 {
					out.AllowedChatIDs = append(out.AllowedChatIDs, int64(f))
				}
			}
		}
	}

	if sc, ok := raw["schedule"].(map[string]any); ok {
		out.ReportTimes = getStringSlice(sc, "ReportTimes")
		out.AwardsDelayMinutes = getInt(sc, "AwardsDelayMinutes")
		out.ContentTime = getString(sc, "ContentTime")
		out.ContentPath = getString(sc, "ContentPath")
		out.BatchWindowSeconds = getInt(sc, "BatchWindowSeconds")
	}

	if st, ok := raw["store"].(map[string]any); ok {
		out.StoreDriver = getString(st, "Driver")
		out.StatePath = getString(st, "StatePath")
		out.RotationPath = getString(st, "RotationPath")
		out.DatabaseURI = getString(st, "DatabaseURI")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if mq, ok := raw["rabbitmq"].(map[string]any); ok {
		out.RabbitMQURL = getString(mq, "URL")
		out.RabbitMQQueue = getString(mq, "Queue")
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
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.TelegramMode == "" {
		c.TelegramMode = TelegramPolling
	}
	if c.TelegramAPIBase == "" {
		c.TelegramAPIBase = "https://api.telegram.org"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Kolkata"
	}
	if len(c.ReportTimes) == 0 {
		c.ReportTimes = []string{"10:00", "14:00", "18:00"}
	}
	if c.AwardsDelayMinutes == 0 {
		c.AwardsDelayMinutes = 2
	}
	if c.ContentTime == "" {
		c.ContentTime = "08:00"
	}
	if c.ContentPath == "" {
		c.ContentPath = "content.yaml"
	}
	if c.BatchWindowSeconds == 0 {
		c.BatchWindowSeconds = 600
	}
	if c.StoreDriver == "" {
		c.StoreDriver = DriverFile
	}
	if c.StatePath == "" {
		c.StatePath = "data/bot_state.json"
	}
	if c.RotationPath == "" {
		c.RotationPath = "data/rotation_index.json"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.RabbitMQQueue == "" {
		c.RabbitMQQueue = "rollcall.events"
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
func applyEnvOverrides(c *AppConfig) error {
	var errs []error
	atoi := func(key, val string) int {
		i, err := strconv.Atoi(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, val))
		}
		return i
	}

	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = atoi("RATE_LIMIT_PER_MINUTE", v)
	}
	c.AllowedOrigins = readListEnv("ALLOWED_ORIGINS", c.AllowedOrigins)

	if v := getEnv("TELEGRAM_BOT_TOKEN", ""); v != "" {
		c.TelegramBotToken = v
	}
	if v := getEnv("TELEGRAM_MODE", ""); v != "" {
		c.TelegramMode = strings.ToLower(v)
	}
	if v := getEnv("TELEGRAM_WEBHOOK_SECRET", ""); v != "" {
		c.TelegramWebhookSecret = v
	}
	if v := getEnv("TELEGRAM_API_BASE", ""); v != "" {
		c.TelegramAPIBase = strings.TrimRight(v, "/")
	}
	// ALLOWED_CHAT_IDS wins; ALLOWED_CHAT_ID is the older single-group key.
	ids := getEnv("ALLOWED_CHAT_IDS", getEnv("ALLOWED_CHAT_ID", ""))
	if ids != "" {
		parsed, err := parseChatIDs(ids)
		if err != nil {
			errs = append(errs, err)
		}
		c.AllowedChatIDs = parsed
	}
	if v := getEnv("TIMEZONE", ""); v != "" {
		c.Timezone = v
	}

	c.ReportTimes = readListEnv("REPORT_TIMES", c.ReportTimes)
	if v := getEnv("AWARDS_DELAY_MINUTES", ""); v != "" {
		c.AwardsDelayMinutes = atoi("AWARDS_DELAY_MINUTES", v)
	}
	if v := getEnv("CONTENT_TIME", ""); v != "" {
		c.ContentTime = v
	}
	if v := getEnv("CONTENT_PATH", ""); v != "" {
		c.ContentPath = v
	}
	if v := getEnv("BATCH_WINDOW_SECONDS", ""); v != "" {
		c.BatchWindowSeconds = atoi("BATCH_WINDOW_SECONDS", v)
	}

	if v := getEnv("STORE_DRIVER", ""); v != "" {
		c.StoreDriver = strings.ToLower(v)
	}
	if v := getEnv("STATE_PATH", ""); v != "" {
		c.StatePath = v
	}
	if v := getEnv("ROTATION_PATH", ""); v != "" {
		c.RotationPath = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}

	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = atoi("REDIS_PORT", v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = atoi("REDIS_DB", v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("RABBITMQ_URL", ""); v != "" {
		c.RabbitMQURL = v
	}
	if v := getEnv("RABBITMQ_QUEUE", ""); v != "" {
		c.RabbitMQQueue = v
	}

	// Logging env overrides
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = atoi("LOG_MAX_SIZE_MB", v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = atoi("LOG_MAX_BACKUPS", v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = atoi("LOG_MAX_AGE_DAYS", v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	return errors.Join(errs...)
}

func parseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, item := range splitAndTrim(raw) {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ALLOWED_CHAT_IDS: invalid chat id %q", item)
		}
		// 0 is the old "not configured yet" placeholder, never a real chat
		if id == 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
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
