package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot. It is built once at
// startup and passed into the orchestrators by value; nothing mutates it.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Gateway  GatewayConfig
	Hours    HoursConfig
	HTTP     HTTPConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name string
	Env  string
	Host string
	Port string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// GatewayConfig holds messaging gateway parameters: the bot credential, the
// operator workspace channel where client threads live, and the operator
// allow-list.
type GatewayConfig struct {
	BotToken       string
	SupportChatID  int64
	PollTimeoutSec int
	Operators      []int64
}

// HoursConfig defines the working-hours window used for off-hours notices.
type HoursConfig struct {
	Timezone  string
	StartHour int
	EndHour   int
	WorkDays  []int // 1=Monday .. 7=Sunday
}

// HTTPConfig guards the operator read API.
type HTTPConfig struct {
	JWTSecret string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	supportChatID, err := strconv.ParseInt(getEnv("SUPPORT_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SUPPORT_CHAT_ID: %w", err)
	}

	operators, err := parseInt64List(os.Getenv("OPERATORS"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATORS: %w", err)
	}

	workDays, err := parseIntList(getEnv("WORK_DAYS", "1,2,3,4,5"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORK_DAYS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "support-bot"),
			Env:  getEnv("APP_ENV", "development"),
			Host: getEnv("APP_HOST", "0.0.0.0"),
			Port: getEnv("APP_PORT", "8080"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Gateway: GatewayConfig{
			BotToken:       os.Getenv("BOT_TOKEN"),
			SupportChatID:  supportChatID,
			PollTimeoutSec: getEnvAsInt("GATEWAY_POLL_TIMEOUT_SECONDS", 30),
			Operators:      operators,
		},
		Hours: HoursConfig{
			Timezone:  getEnv("TIMEZONE", "Europe/Moscow"),
			StartHour: getEnvAsInt("WORK_START_HOUR", 10),
			EndHour:   getEnvAsInt("WORK_END_HOUR", 19),
			WorkDays:  workDays,
		},
		HTTP: HTTPConfig{
			JWTSecret: getEnv("HTTP_JWT_SECRET", "dev-secret"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// PollTimeout returns the gateway long-poll timeout duration.
func (g GatewayConfig) PollTimeout() time.Duration {
	if g.PollTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.PollTimeoutSec) * time.Second
}

// IsOperator reports whether the given user is on the operator allow-list.
func (g GatewayConfig) IsOperator(userID int64) bool {
	for _, id := range g.Operators {
		if id == userID {
			return true
		}
	}
	return false
}

func parseInt64List(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func parseIntList(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
