package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the platevision notification engine.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redis_db"`

	VehicleChannel  string `json:"vehicle_channel"`
	DeadlineChannel string `json:"deadline_channel"`
	ActiveSetKey    string `json:"active_set_key"`

	FirestoreProjectID     string `json:"firestore_project_id"`
	RegistrationCollection string `json:"registration_collection"`

	FCMServerKey string `json:"-"`
	FCMEndpoint  string `json:"fcm_endpoint"`

	// DatabaseURL is optional; empty disables the delivery history.
	DatabaseURL    string `json:"database_url"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`

	HTTPAddr string `json:"http_addr"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	// TickInterval is the deadline evaluation cadence. The 30-minute warning
	// check works at whole-minute granularity; keep this at 1m.
	TickInterval    time.Duration `json:"-"`
	TickIntervalStr string        `json:"tick_interval"`

	// TZOffsetHours is the fixed civil-zone offset for expiry and deadline
	// arithmetic.
	TZOffsetHours int `json:"tz_offset_hours"`

	FeedBufferSize int `json:"feed_buffer_size"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	JanitorEnabled      bool          `json:"janitor_enabled"`
	JanitorSchedule     string        `json:"janitor_schedule"`
	JanitorRetention    time.Duration `json:"-"`
	JanitorRetentionStr string        `json:"janitor_retention"`
	JanitorBatchSize    int           `json:"janitor_batch_size"`

	AnalyticsEnabled      bool          `json:"analytics_enabled"`
	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		VehicleChannel:         os.Getenv("VEHICLE_CHANNEL"),
		DeadlineChannel:        os.Getenv("DEADLINE_CHANNEL"),
		ActiveSetKey:           os.Getenv("ACTIVE_SET_KEY"),
		FirestoreProjectID:     os.Getenv("FIRESTORE_PROJECT_ID"),
		RegistrationCollection: os.Getenv("REGISTRATION_COLLECTION"),
		FCMServerKey:           os.Getenv("FCM_SERVER_KEY"),
		FCMEndpoint:            os.Getenv("FCM_ENDPOINT"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
		TickIntervalStr:        os.Getenv("TICK_INTERVAL"),
		JanitorEnabled:         os.Getenv("JANITOR_ENABLED") == "true",
		JanitorSchedule:        os.Getenv("JANITOR_SCHEDULE"),
		JanitorRetentionStr:    os.Getenv("JANITOR_RETENTION"),
		AnalyticsEnabled:       os.Getenv("ANALYTICS_ENABLED") == "true",
		AnalyticsRetentionStr:  os.Getenv("ANALYTICS_RETENTION"),
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := parseInt(dbStr); err == nil {
			cfg.RedisDB = n
		} else {
			log.Printf("config: invalid REDIS_DB %q (must be a non-negative integer), using default 0", dbStr)
		}
	}

	if bufStr := os.Getenv("FEED_BUFFER_SIZE"); bufStr != "" {
		if n, err := parseInt(bufStr); err == nil && n > 0 {
			cfg.FeedBufferSize = n
		} else {
			log.Printf("config: invalid FEED_BUFFER_SIZE %q (must be a positive integer), using default 100", bufStr)
		}
	}
	if cfg.FeedBufferSize == 0 {
		cfg.FeedBufferSize = 100
	}

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", cbThreshStr)
		}
	}
	if cfg.CircuitBreakerThreshold == 0 && os.Getenv("CIRCUIT_BREAKER_THRESHOLD") == "" {
		cfg.CircuitBreakerThreshold = 5
	}
	cfg.CircuitBreakerCooldownStr = os.Getenv("CIRCUIT_BREAKER_COOLDOWN")

	if offsetStr := os.Getenv("TZ_OFFSET_HOURS"); offsetStr != "" {
		if n, err := parseInt(offsetStr); err == nil {
			cfg.TZOffsetHours = n
		} else {
			log.Printf("config: invalid TZ_OFFSET_HOURS %q (must be an integer), using default 7", offsetStr)
		}
	}
	if cfg.TZOffsetHours == 0 && os.Getenv("TZ_OFFSET_HOURS") == "" {
		cfg.TZOffsetHours = 7
	}

	if batchStr := os.Getenv("JANITOR_BATCH_SIZE"); batchStr != "" {
		if n, err := parseInt(batchStr); err == nil && n > 0 {
			cfg.JanitorBatchSize = n
		}
	}
	if cfg.JanitorBatchSize == 0 {
		cfg.JanitorBatchSize = 500
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 10
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.VehicleChannel == "" {
		cfg.VehicleChannel = "platevision:vehicles"
	}
	if cfg.DeadlineChannel == "" {
		cfg.DeadlineChannel = "platevision:deadline"
	}
	if cfg.ActiveSetKey == "" {
		cfg.ActiveSetKey = "platevision:active"
	}
	if cfg.RegistrationCollection == "" {
		cfg.RegistrationCollection = "thongtindangky"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.TickIntervalStr == "" {
		cfg.TickIntervalStr = "1m"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}
	if cfg.JanitorSchedule == "" {
		cfg.JanitorSchedule = "0 3 * * *"
	}
	if cfg.JanitorRetentionStr == "" {
		cfg.JanitorRetentionStr = "720h"
	}
	if cfg.AnalyticsRetentionStr == "" {
		cfg.AnalyticsRetentionStr = "168h"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.TickIntervalStr); err == nil {
		cfg.TickInterval = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.JanitorRetentionStr); err == nil {
		cfg.JanitorRetention = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsRetentionStr); err == nil {
		cfg.AnalyticsRetention = d
	}

	return cfg
}

// Location returns the configured fixed civil zone.
func (c Config) Location() *time.Location {
	offset := c.TZOffsetHours
	name := "UTC"
	switch {
	case offset > 0:
		name = "UTC+" + itoa(offset)
	case offset < 0:
		name = "UTC-" + itoa(-offset)
	}
	return time.FixedZone(name, offset*60*60)
}

// HistoryEnabled reports whether the Postgres delivery history is configured.
func (c Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		RedisAddr               string `json:"redis_addr"`
		RedisPassword           string `json:"redis_password"`
		RedisDB                 int    `json:"redis_db"`
		VehicleChannel          string `json:"vehicle_channel"`
		DeadlineChannel         string `json:"deadline_channel"`
		ActiveSetKey            string `json:"active_set_key"`
		FirestoreProjectID      string `json:"firestore_project_id"`
		RegistrationCollection  string `json:"registration_collection"`
		FCMServerKey            string `json:"fcm_server_key"`
		FCMEndpoint             string `json:"fcm_endpoint,omitempty"`
		DatabaseURL             string `json:"database_url,omitempty"`
		DBMaxOpenConns          int    `json:"db_max_open_conns"`
		DBMaxIdleConns          int    `json:"db_max_idle_conns"`
		HTTPAddr                string `json:"http_addr"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsPath             string `json:"metrics_path"`
		TickInterval            string `json:"tick_interval"`
		TZOffsetHours           int    `json:"tz_offset_hours"`
		FeedBufferSize          int    `json:"feed_buffer_size"`
		CircuitBreakerThreshold int    `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string `json:"circuit_breaker_cooldown"`
		JanitorEnabled          bool   `json:"janitor_enabled"`
		JanitorSchedule         string `json:"janitor_schedule"`
		JanitorRetention        string `json:"janitor_retention"`
		JanitorBatchSize        int    `json:"janitor_batch_size"`
		AnalyticsEnabled        bool   `json:"analytics_enabled"`
		AnalyticsRetention      string `json:"analytics_retention"`
	}{
		RedisAddr:               c.RedisAddr,
		RedisPassword:           maskSecret(c.RedisPassword),
		RedisDB:                 c.RedisDB,
		VehicleChannel:          c.VehicleChannel,
		DeadlineChannel:         c.DeadlineChannel,
		ActiveSetKey:            c.ActiveSetKey,
		FirestoreProjectID:      c.FirestoreProjectID,
		RegistrationCollection:  c.RegistrationCollection,
		FCMServerKey:            maskSecret(c.FCMServerKey),
		FCMEndpoint:             c.FCMEndpoint,
		DatabaseURL:             maskSecret(c.DatabaseURL),
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		HTTPAddr:                c.HTTPAddr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		TickInterval:            c.TickIntervalStr,
		TZOffsetHours:           c.TZOffsetHours,
		FeedBufferSize:          c.FeedBufferSize,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
		JanitorEnabled:          c.JanitorEnabled,
		JanitorSchedule:         c.JanitorSchedule,
		JanitorRetention:        c.JanitorRetentionStr,
		JanitorBatchSize:        c.JanitorBatchSize,
		AnalyticsEnabled:        c.AnalyticsEnabled,
		AnalyticsRetention:      c.AnalyticsRetentionStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
