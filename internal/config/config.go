package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	AllowedOrigins []string

	// StoreProvider selects the persistence backend: postgres, mongodb or memory.
	StoreProvider        string
	DatabaseURL          string
	DBDriver             string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int
	MongoURI             string
	MongoDatabase        string

	RedisURL      string
	RedisPassword string

	NatsURL  string
	NatsUser string
	NatsPass string

	PresenceInterval time.Duration
	TickTimeout      time.Duration
	AliveWindow      time.Duration

	JWTSecret string
	NodeID    int64
	LogLevel  string
	LogDev    bool
}

func LoadConfig() *Config {
	port := GetEnv("PORT", "8080")

	// CORS
	allowedOrigins := []string{"http://localhost:5173"}
	if extras := GetEnv("ALLOWED_ORIGINS", ""); extras != "" {
		for _, origin := range strings.Split(extras, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
	}

	// Database Config
	dbDriver := GetEnv("DB_DRIVER", "pgx")
	dbURL := GetEnv("DATABASE_URL", GetEnv("DATABASE_URI", ""))
	if dbURL != "" && dbDriver == "pgx" {
		// simple_protocol keeps pgx working behind PgBouncer
		if u, err := url.Parse(dbURL); err == nil {
			q := u.Query()
			if q.Get("default_query_exec_mode") == "" {
				q.Set("default_query_exec_mode", "simple_protocol")
				u.RawQuery = q.Encode()
				dbURL = u.String()
			}
		}
	}

	return &Config{
		Port:           port,
		AllowedOrigins: allowedOrigins,

		StoreProvider:        strings.ToLower(GetEnv("STORE_PROVIDER", "postgres")),
		DatabaseURL:          dbURL,
		DBDriver:             dbDriver,
		DBMaxOpenConns:       GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       GetEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetimeMin: GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),
		MongoURI:             GetEnv("MONGO_URI", ""),
		MongoDatabase:        GetEnv("MONGO_DATABASE", "chat"),

		RedisURL:      GetEnv("REDIS_URL", ""),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),

		NatsURL:  GetEnv("NATS_URL", ""),
		NatsUser: GetEnv("NATS_USER", ""),
		NatsPass: GetEnv("NATS_PASS", ""),

		PresenceInterval: GetEnvAsDuration("PRESENCE_INTERVAL", time.Minute),
		TickTimeout:      GetEnvAsDuration("PRESENCE_TICK_TIMEOUT", 50*time.Second),
		AliveWindow:      GetEnvAsDuration("WS_ALIVE_WINDOW", 90*time.Second),

		JWTSecret: GetEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		NodeID:    int64(GetEnvAsInt("NODE_ID", 1)),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogDev:    GetEnvAsBool("LOG_DEV", false),
	}
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsDuration accepts Go duration strings ("90s", "1m") or a bare
// number of seconds.
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	log.Printf("Invalid duration value for %s: %s, using default: %s", key, valueStr, defaultValue)
	return defaultValue
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
