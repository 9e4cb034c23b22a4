package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr           string
	APIKey         string
	DocstoreDriver string
	DatabaseURL    string
	Redis          RedisConfig
	Audit          AuditConfig
}

// RedisConfig holds connection settings for the Redis document store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig holds Kafka settings for the audit trail. Empty Brokers
// disables publishing.
type AuditConfig struct {
	Brokers []string
	Topic   string
}

// Validate rejects configurations the server must not start with. The API
// key guards every write endpoint, so an empty key fails startup instead of
// falling back to an open door.
func (s Server) Validate() error {
	if s.APIKey == "" {
		return errors.New("ONPAKU_API_KEY must be set")
	}
	return nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("ONPAKU_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	driver := os.Getenv("ONPAKU_DOCSTORE_DRIVER")
	if driver == "" {
		driver = "memory"
	}

	var brokers []string
	if raw := os.Getenv("ONPAKU_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("ONPAKU_AUDIT_TOPIC")
	if topic == "" {
		topic = "onpaku.audit"
	}

	return Server{
		Addr:           addr,
		APIKey:         os.Getenv("ONPAKU_API_KEY"),
		DocstoreDriver: driver,
		DatabaseURL:    os.Getenv("ONPAKU_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("ONPAKU_REDIS_URL"),
			PoolSize:     getEnvInt("ONPAKU_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("ONPAKU_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("ONPAKU_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("ONPAKU_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("ONPAKU_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
