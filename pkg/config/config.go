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
	// TrustedProxies lists proxy addresses or CIDRs whose forwarding headers
	// are believed. Empty means the peer address is the client address.
	TrustedProxies []string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Attendance AttendanceConfig
	Photos     PhotoConfig
	Holidays   HolidayConfig
	RateLimit  RateLimitConfig
	Reports    ReportsConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig carries the admission thresholds and the wall clock zone
// used to evaluate allowed hours and weekdays.
type AttendanceConfig struct {
	Timezone                 string
	PrecisionThresholdMeters float64
	SuspiciousAccuracyMeters float64
	MaxTravelSpeedMps        float64
	MinTravelDistanceMeters  float64
}

// PhotoConfig controls secondary verification photo storage.
type PhotoConfig struct {
	StorageDir      string
	MaxBytes        int64
	MaxDimension    int
	ThumbnailSize   int
	SignedURLSecret string
	SignedURLTTL    time.Duration
	Workers         int
	WorkerRetries   int
}

// HolidayConfig points at the institution calendar file.
type HolidayConfig struct {
	File string
}

// RateLimitConfig bounds mark-attendance submissions per student.
type RateLimitConfig struct {
	Enabled   bool
	PerMinute int
}

// ReportsConfig governs report caching.
type ReportsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	MaxRangeDays int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}
	cfg.TrustedProxies = splitAndTrim(v.GetString("TRUSTED_PROXIES"))

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Attendance = AttendanceConfig{
		Timezone:                 v.GetString("ATTENDANCE_TIMEZONE"),
		PrecisionThresholdMeters: v.GetFloat64("ATTENDANCE_PRECISION_THRESHOLD_METERS"),
		SuspiciousAccuracyMeters: v.GetFloat64("ATTENDANCE_SUSPICIOUS_ACCURACY_METERS"),
		MaxTravelSpeedMps:        v.GetFloat64("ATTENDANCE_MAX_TRAVEL_SPEED_MPS"),
		MinTravelDistanceMeters:  v.GetFloat64("ATTENDANCE_MIN_TRAVEL_DISTANCE_METERS"),
	}

	maxPhoto := v.GetInt64("PHOTOS_MAX_BYTES")
	if maxPhoto <= 0 {
		maxPhoto = 5 * 1024 * 1024
	}
	cfg.Photos = PhotoConfig{
		StorageDir:      v.GetString("PHOTOS_STORAGE_DIR"),
		MaxBytes:        maxPhoto,
		MaxDimension:    v.GetInt("PHOTOS_MAX_DIMENSION"),
		ThumbnailSize:   v.GetInt("PHOTOS_THUMBNAIL_SIZE"),
		SignedURLSecret: v.GetString("PHOTOS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("PHOTOS_SIGNED_URL_TTL"), 30*time.Minute),
		Workers:         v.GetInt("PHOTOS_WORKERS"),
		WorkerRetries:   v.GetInt("PHOTOS_WORKER_RETRIES"),
	}

	cfg.Holidays = HolidayConfig{File: v.GetString("HOLIDAYS_FILE")}

	cfg.RateLimit = RateLimitConfig{
		Enabled:   v.GetBool("ENABLE_RATE_LIMIT"),
		PerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
	}

	cfg.Reports = ReportsConfig{
		CacheEnabled: v.GetBool("ENABLE_REPORT_CACHE"),
		CacheTTL:     parseDuration(v.GetString("REPORT_CACHE_TTL"), time.Minute),
		MaxRangeDays: v.GetInt("REPORT_MAX_RANGE_DAYS"),
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
	v.SetDefault("DB_NAME", "placement_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("ATTENDANCE_PRECISION_THRESHOLD_METERS", 100)
	v.SetDefault("ATTENDANCE_SUSPICIOUS_ACCURACY_METERS", 250)
	v.SetDefault("ATTENDANCE_MAX_TRAVEL_SPEED_MPS", 42)
	v.SetDefault("ATTENDANCE_MIN_TRAVEL_DISTANCE_METERS", 500)

	v.SetDefault("PHOTOS_STORAGE_DIR", "./photos")
	v.SetDefault("PHOTOS_MAX_BYTES", 5*1024*1024)
	v.SetDefault("PHOTOS_MAX_DIMENSION", 1280)
	v.SetDefault("PHOTOS_THUMBNAIL_SIZE", 240)
	v.SetDefault("PHOTOS_SIGNED_URL_SECRET", "dev_photos_secret")
	v.SetDefault("PHOTOS_SIGNED_URL_TTL", "30m")
	v.SetDefault("PHOTOS_WORKERS", 2)
	v.SetDefault("PHOTOS_WORKER_RETRIES", 3)

	v.SetDefault("HOLIDAYS_FILE", "./config/holidays.yaml")

	v.SetDefault("ENABLE_RATE_LIMIT", true)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 6)

	v.SetDefault("ENABLE_REPORT_CACHE", false)
	v.SetDefault("REPORT_CACHE_TTL", "1m")
	v.SetDefault("REPORT_MAX_RANGE_DAYS", 366)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
