package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr      string
		Password  string
		DB        int
		ReportTTL time.Duration
	}
	Telegram struct {
		BotToken       string
		ResidentChatID int64
		BoardChatID    int64
		RatePerSecond  int
	}
	API struct {
		Port     string
		BasePath string
	}
	Detection struct {
		BurstRatePerHour   float64
		DripFloorPerHour   float64
		WindowSize         int
		GuardianMultiplier float64
		GuardianLookback   time.Duration
		GuardianMinHistory time.Duration
	}
	Alerts struct {
		StaleAfter time.Duration
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Redis settings
	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.Redis.DB = n
	}
	cfg.Redis.ReportTTL = durationEnv("REDIS_REPORT_TTL", 6*time.Hour)

	// Telegram settings
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_RESIDENT_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ResidentChatID = id
	}
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_BOARD_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.BoardChatID = id
	}
	if r, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_PER_SECOND")); err == nil {
		cfg.Telegram.RatePerSecond = r
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Detection thresholds
	cfg.Detection.BurstRatePerHour = floatEnv("DETECT_BURST_RATE_PER_HOUR", 500)
	cfg.Detection.DripFloorPerHour = floatEnv("DETECT_DRIP_FLOOR_PER_HOUR", 2)
	cfg.Detection.WindowSize = intEnv("DETECT_WINDOW_SIZE", 5)
	cfg.Detection.GuardianMultiplier = floatEnv("DETECT_GUARDIAN_MULTIPLIER", 3)
	cfg.Detection.GuardianLookback = durationEnv("DETECT_GUARDIAN_LOOKBACK", 30*24*time.Hour)
	cfg.Detection.GuardianMinHistory = durationEnv("DETECT_GUARDIAN_MIN_HISTORY", 7*24*time.Hour)

	// Alert escalation settings
	cfg.Alerts.StaleAfter = durationEnv("ALERT_STALE_AFTER", 48*time.Hour)

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "meter_readings"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "metering-service"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Telegram.RatePerSecond == 0 {
		cfg.Telegram.RatePerSecond = 20
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

func floatEnv(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
