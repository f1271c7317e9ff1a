// Package config собирает конфигурацию сервера из дефолтов,
// переменных окружения и флагов командной строки.
// Приоритет: флаги > env > дефолты.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config содержит настройки сервера taskkeeper
type Config struct {
	Address      string // адрес и порт HTTP сервера
	DatabasePath string // путь к файлу SQLite
	JWTSecret    string // HMAC секрет для подписи access token (HS256)

	AccessTokenTTL  time.Duration // время жизни access token
	RefreshTokenTTL time.Duration // время жизни refresh token

	// Лимиты admission control
	AuthRateLimit    int           // запросов на register/login за окно (per-IP)
	RefreshRateLimit int           // запросов на refresh за окно (per-IP)
	AuthRateWindow   time.Duration // окно для auth endpoints
	TaskRateLimit    int           // запросов на task endpoints за окно (per-user)
	TaskRateWindow   time.Duration // окно для task endpoints
}

// Default возвращает конфигурацию с дефолтами для разработки.
// JWT секрет по умолчанию небезопасен и должен быть переопределен в проде.
func Default() *Config {
	return &Config{
		Address:          ":8080",
		DatabasePath:     "taskkeeper.db",
		JWTSecret:        "dev-secret-change-me",
		AccessTokenTTL:   60 * time.Minute,
		RefreshTokenTTL:  168 * time.Hour,
		AuthRateLimit:    10,
		RefreshRateLimit: 30,
		AuthRateWindow:   time.Minute,
		TaskRateLimit:    120,
		TaskRateWindow:   time.Minute,
	}
}

// Load строит конфигурацию из дефолтов, env и переданных аргументов
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("taskkeeper-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Address, "a", envString("TASKKEEPER_ADDRESS", cfg.Address), "address and port to run server")
	fs.StringVar(&cfg.DatabasePath, "d", envString("TASKKEEPER_DATABASE", cfg.DatabasePath), "path to SQLite database")
	fs.StringVar(&cfg.JWTSecret, "s", envString("TASKKEEPER_JWT_SECRET", cfg.JWTSecret), "JWT HMAC secret key")
	fs.DurationVar(&cfg.AccessTokenTTL, "access-ttl", envDuration("TASKKEEPER_ACCESS_TTL", cfg.AccessTokenTTL), "access token lifetime")
	fs.DurationVar(&cfg.RefreshTokenTTL, "refresh-ttl", envDuration("TASKKEEPER_REFRESH_TTL", cfg.RefreshTokenTTL), "refresh token lifetime")
	fs.IntVar(&cfg.AuthRateLimit, "auth-rate", envInt("TASKKEEPER_AUTH_RATE", cfg.AuthRateLimit), "auth requests per window per IP")
	fs.IntVar(&cfg.RefreshRateLimit, "refresh-rate", envInt("TASKKEEPER_REFRESH_RATE", cfg.RefreshRateLimit), "refresh requests per window per IP")
	fs.DurationVar(&cfg.AuthRateWindow, "auth-window", envDuration("TASKKEEPER_AUTH_WINDOW", cfg.AuthRateWindow), "auth rate limit window")
	fs.IntVar(&cfg.TaskRateLimit, "task-rate", envInt("TASKKEEPER_TASK_RATE", cfg.TaskRateLimit), "task requests per window per user")
	fs.DurationVar(&cfg.TaskRateWindow, "task-window", envDuration("TASKKEEPER_TASK_WINDOW", cfg.TaskRateWindow), "task rate limit window")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envString возвращает значение переменной окружения или fallback
func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// envDuration парсит duration из окружения, при ошибке возвращает fallback
func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envInt парсит int из окружения, при ошибке возвращает fallback
func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
