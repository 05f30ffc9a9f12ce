package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Admin    AdminConfig
	Portal   PortalConfig
	Tracker  TrackerConfig
	Booking  BookingConfig
	Notify   NotifyConfig
	Audit    AuditConfig
	Exports  ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdminConfig holds the single operator account used to guard the API.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

// PortalConfig points at the upstream appointment portal.
type PortalConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// TrackerConfig tunes the background schedule polling loop.
type TrackerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// BookingConfig carries speciality alias groups and the referral whitelist.
type BookingConfig struct {
	// AliasGroups maps a speciality code to every code treated as the same
	// speciality, e.g. "69:69|602,602:69|602".
	AliasGroups       map[string][]string
	ReferralWhitelist []string
}

// NotifyConfig configures the Telegram notification sink.
type NotifyConfig struct {
	Enabled  bool
	BotToken string
	APIBase  string
}

// AuditConfig tunes audit listing cache behaviour.
type AuditConfig struct {
	CacheTTL time.Duration
}

// ExportsConfig controls audit export generation and storage.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Admin = AdminConfig{
		Username:     v.GetString("ADMIN_USERNAME"),
		PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
	}

	cfg.Portal = PortalConfig{
		BaseURL:   v.GetString("PORTAL_BASE_URL"),
		Timeout:   parseDuration(v.GetString("PORTAL_TIMEOUT"), 10*time.Second),
		UserAgent: v.GetString("PORTAL_USER_AGENT"),
	}

	cfg.Tracker = TrackerConfig{
		Enabled:  v.GetBool("ENABLE_TRACKER"),
		Interval: parseDuration(v.GetString("TRACKER_INTERVAL"), time.Minute),
	}

	cfg.Booking = BookingConfig{
		AliasGroups:       parseAliasGroups(v.GetString("SPECIALITY_ALIAS_GROUPS")),
		ReferralWhitelist: splitAndTrim(v.GetString("REFERRAL_WHITELIST")),
	}

	cfg.Notify = NotifyConfig{
		Enabled:  v.GetBool("ENABLE_NOTIFICATIONS"),
		BotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
		APIBase:  v.GetString("TELEGRAM_API_BASE"),
	}

	cfg.Audit = AuditConfig{
		CacheTTL: parseDuration(v.GetString("AUDIT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "emias_tracker")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")

	v.SetDefault("PORTAL_BASE_URL", "https://emias.info")
	v.SetDefault("PORTAL_TIMEOUT", "10s")
	v.SetDefault("PORTAL_USER_AGENT", "emias-tracker/1.0")

	v.SetDefault("ENABLE_TRACKER", true)
	v.SetDefault("TRACKER_INTERVAL", "60s")

	v.SetDefault("SPECIALITY_ALIAS_GROUPS", "69:69|602,602:69|602")
	v.SetDefault("REFERRAL_WHITELIST", "600034")

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_API_BASE", "https://api.telegram.org")

	v.SetDefault("AUDIT_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseAliasGroups reads "code:alias|alias,code:alias|alias" definitions.
func parseAliasGroups(raw string) map[string][]string {
	groups := make(map[string][]string)
	for _, entry := range splitAndTrim(raw) {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		code := strings.TrimSpace(parts[0])
		if code == "" {
			continue
		}
		aliases := make([]string, 0, 2)
		for _, alias := range strings.Split(parts[1], "|") {
			alias = strings.TrimSpace(alias)
			if alias != "" {
				aliases = append(aliases, alias)
			}
		}
		if len(aliases) > 0 {
			groups[code] = aliases
		}
	}
	return groups
}
