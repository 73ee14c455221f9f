package config

import (
	"errors"
	"os"
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

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Solver     SolverConfig
	RunHistory RunHistoryConfig
	Cache      ResultCacheConfig
	Async      AsyncSolveConfig
	Exports    ExportsConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SolverConfig tunes the backtracking search.
type SolverConfig struct {
	DefaultTotalSlots int
	TooBusyRatio      float64
	MorningCutoff     int
	MaxNodes          int64
	Timeout           time.Duration
	MaxTotalSlots     int
	MaxCourses        int
}

// RunHistoryConfig toggles persistence of solve runs in Postgres.
type RunHistoryConfig struct {
	Enabled bool
}

// ResultCacheConfig controls the Redis-backed solve result cache.
type ResultCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// AsyncSolveConfig configures the background solve worker. Requires run history.
type AsyncSolveConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
	QueueSize         int
}

// ExportsConfig configures schedule exports and their signed download links.
type ExportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	totalSlots := v.GetInt("SOLVER_DEFAULT_TOTAL_SLOTS")
	if totalSlots <= 0 {
		totalSlots = 48
	}
	ratio := v.GetFloat64("SOLVER_TOO_BUSY_RATIO")
	if ratio <= 0 || ratio > 1 {
		ratio = 0.8
	}
	maxSlots := v.GetInt("SOLVER_MAX_TOTAL_SLOTS")
	if maxSlots <= 0 {
		maxSlots = 2016
	}
	cfg.Solver = SolverConfig{
		DefaultTotalSlots: totalSlots,
		TooBusyRatio:      ratio,
		MorningCutoff:     v.GetInt("SOLVER_MORNING_CUTOFF"),
		MaxNodes:          v.GetInt64("SOLVER_MAX_NODES"),
		Timeout:           parseDuration(v.GetString("SOLVER_TIMEOUT"), 0),
		MaxTotalSlots:     maxSlots,
		MaxCourses:        v.GetInt("SOLVER_MAX_COURSES"),
	}

	cfg.RunHistory = RunHistoryConfig{
		Enabled: v.GetBool("ENABLE_RUN_HISTORY"),
	}

	cfg.Cache = ResultCacheConfig{
		Enabled: v.GetBool("ENABLE_RESULT_CACHE"),
		TTL:     parseDuration(v.GetString("RESULT_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Async = AsyncSolveConfig{
		Enabled:           v.GetBool("ENABLE_ASYNC_SOLVE") && cfg.RunHistory.Enabled,
		WorkerConcurrency: v.GetInt("SOLVE_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("SOLVE_WORKER_RETRIES"),
		QueueSize:         v.GetInt("SOLVE_QUEUE_SIZE"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:         v.GetBool("ENABLE_EXPORTS") && cfg.RunHistory.Enabled,
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable_solver")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOLVER_DEFAULT_TOTAL_SLOTS", 48)
	v.SetDefault("SOLVER_TOO_BUSY_RATIO", 0.8)
	v.SetDefault("SOLVER_MORNING_CUTOFF", 24)
	v.SetDefault("SOLVER_MAX_NODES", 0)
	v.SetDefault("SOLVER_TIMEOUT", "")
	v.SetDefault("SOLVER_MAX_TOTAL_SLOTS", 2016)
	v.SetDefault("SOLVER_MAX_COURSES", 0)

	v.SetDefault("ENABLE_RUN_HISTORY", false)
	v.SetDefault("ENABLE_RESULT_CACHE", false)
	v.SetDefault("RESULT_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_ASYNC_SOLVE", false)
	v.SetDefault("SOLVE_WORKER_CONCURRENCY", 2)
	v.SetDefault("SOLVE_WORKER_RETRIES", 1)
	v.SetDefault("SOLVE_QUEUE_SIZE", 64)

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
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
