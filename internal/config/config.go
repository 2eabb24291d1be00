package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/suPer8Hu/sitechat/internal/logger"
	"github.com/suPer8Hu/sitechat/internal/settings"
)

type Config struct {
	HTTPAddr string
	GinMode  string

	DBDriver string
	DBDSN    string

	TokenSecret string
	TokenTTL    time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisSettingsKey string

	// completion settings; only seed the runtime settings store
	ChatbotAPIKey     string
	ChatbotModel      string
	ChatbotEndpoint   string
	CompletionTimeout time.Duration

	// session cookie
	SessionCookieName string
	SessionTTL        time.Duration
	CookieSecure      string

	SiteName     string
	BotName      string
	SiteTimezone string

	CORSAllowedOrigins []string

	AdminUser         string
	AdminPasswordHash string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		logger.Log.Debug("no .env file loaded")
	}
	// .env may carry LOG_LEVEL, which the logger could not see at init
	logger.SetLevel(os.Getenv("LOG_LEVEL"))

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/sitechat?charset=utf8mb4&parseTime=true&loc=Local
	driver := strings.ToLower(getEnv("DB_DRIVER", "mysql"))
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		if driver == "sqlite" {
			dsn = "sitechat.db"
		} else {
			dsn = "app:apppass@tcp(127.0.0.1:3306)/sitechat?charset=utf8mb4&parseTime=true&loc=Local"
		}
	}

	secret := os.Getenv("TOKEN_SECRET")
	if secret == "" {
		logger.Log.Warn("TOKEN_SECRET not set, using development secret")
		secret = "dev-secret-change-me"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GinMode:  getEnv("GIN_MODE", "release"),

		DBDriver: driver,
		DBDSN:    dsn,

		TokenSecret: secret,
		TokenTTL:    getDuration("TOKEN_TTL", 12*time.Hour),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,
		RedisSettingsKey: getEnv("REDIS_SETTINGS_KEY", "sitechat:settings"),

		ChatbotAPIKey:     os.Getenv("CHATBOT_API_KEY"),
		ChatbotModel:      getEnv("CHATBOT_MODEL", settings.DefaultModel),
		ChatbotEndpoint:   getEnv("CHATBOT_ENDPOINT", settings.DefaultEndpoint),
		CompletionTimeout: getDuration("COMPLETION_TIMEOUT", 15*time.Second),

		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "chatbot_session_id"),
		SessionTTL:        getDuration("SESSION_TTL", 24*time.Hour),
		CookieSecure:      strings.ToLower(getEnv("COOKIE_SECURE", "auto")),

		SiteName:     getEnv("SITE_NAME", "Third Wave BBQ"),
		BotName:      getEnv("BOT_NAME", "Amy"),
		SiteTimezone: os.Getenv("SITE_TIMEZONE"),

		CORSAllowedOrigins: origins,

		AdminUser:         getEnv("ADMIN_USER", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}
}

// Location resolves SiteTimezone, falling back to the process local zone.
func (c Config) Location() *time.Location {
	if c.SiteTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.SiteTimezone)
	if err != nil {
		logger.Log.WithError(err).WithField("tz", c.SiteTimezone).Warn("invalid SITE_TIMEZONE, using local time")
		return time.Local
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Log.WithField("key", key).Warn("invalid duration, using default")
		return def
	}
	return d
}
