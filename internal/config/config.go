package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	RelayLocal = "local"
	RelayRedis = "redis"
)

type Config struct {
	Port                  string        `validate:"required,numeric"`
	StoreDriver           string        `validate:"oneof=mongo memory"`
	MongoURI              string        `validate:"required_if=StoreDriver mongo"`
	MongoDatabase         string        `validate:"required_if=StoreDriver mongo"`
	RedisURI              string        `validate:"required_if=RealtimeRelay redis"`
	RealtimeRelay         string        `validate:"oneof=local redis"`
	JWTSecret             string        `validate:"required"`
	JWTIssuer             string
	CORSAllowedOrigins    string
	RequestTimeout        time.Duration `validate:"gt=0"`
	ActiveSessionCacheTTL time.Duration `validate:"gte=0"`
	StudentEmailDomains   []string
}

// Load reads .env (when present) and then the environment
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	return &Config{
		Port:                  getEnv("PORT", "5000"),
		StoreDriver:           strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		MongoURI:              getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase:         getEnv("MONGO_DATABASE", "vidyavichar"),
		RedisURI:              getEnv("REDIS_URI", ""),
		RealtimeRelay:         strings.ToLower(getEnv("REALTIME_RELAY", RelayLocal)),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		JWTIssuer:             getEnv("JWT_ISSUER", "vidyavichar"),
		CORSAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		RequestTimeout:        getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		ActiveSessionCacheTTL: getEnvDuration("ACTIVE_SESSION_CACHE_TTL", 10*time.Minute),
		StudentEmailDomains:   getEnvList("STUDENT_EMAIL_DOMAINS", []string{"students.iiit.ac.in", "student.iiit.ac.in"}),
	}
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.RedisEnabled() {
		if _, err := c.RedisOptions(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// RedisEnabled reports whether a Redis URI was configured
func (c *Config) RedisEnabled() bool {
	return c.RedisURI != ""
}

// RedisOptions parses REDIS_URI. A bare host:port is read as redis://host:port;
// credentials, database number and rediss:// TLS come from the URL.
func (c *Config) RedisOptions() (*redis.Options, error) {
	uri := c.RedisURI
	if !strings.Contains(uri, "://") {
		uri = "redis://" + uri
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URI: %w", err)
	}
	return opts, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		log.Printf("config: %s=%q is not a duration, using %s", key, val, defaultVal)
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
