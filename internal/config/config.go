package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	LogLevel string

	// X/Twitter OAuth2 app credentials.
	TwitterClientID     string
	TwitterClientSecret string
	TwitterCallbackURL  string

	// Worker pool.
	WorkerCount  int
	PollInterval time.Duration

	// Default recurring schedule for daily updates.
	DefaultCron     string
	DefaultTimezone string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",

		JWTSecret: mustGetenv("JWT_SECRET"),

		LogLevel: getenv("LOG_LEVEL", "info"),

		TwitterClientID:     mustGetenv("TWITTER_CLIENT_ID"),
		TwitterClientSecret: mustGetenv("TWITTER_CLIENT_SECRET"),
		TwitterCallbackURL:  mustGetenv("TWITTER_CALLBACK_URL"),

		WorkerCount:  getenvInt("WORKER_COUNT", 4),
		PollInterval: getenvDuration("POLL_INTERVAL", 800*time.Millisecond),

		DefaultCron:     getenv("DEFAULT_CRON", "0 0 * * *"),
		DefaultTimezone: getenv("DEFAULT_TIMEZONE", "Asia/Kolkata"),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}
