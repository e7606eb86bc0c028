package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config carries every runtime setting the composition root needs. Values
// come from the environment, optionally seeded from a .env file.
type Config struct {
	Port  string
	Env   string
	Debug bool

	DBPath string

	JWTSecret       string
	InternalWSToken string

	AuthWSURL      string
	CatalogueWSURL string

	DecayInterval     time.Duration
	ReconnectInterval time.Duration
	RPCTimeout        time.Duration

	EventBuffer int
}

// Load reads the environment. A missing .env file is not an error; explicit
// environment variables always win.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	return &Config{
		Port:              getEnv("PORT", "8084"),
		Env:               getEnv("ENV", "development"),
		Debug:             getEnv("DEBUG", "") == "true",
		DBPath:            getEnv("DB_PATH", "auction.db"),
		JWTSecret:         getEnv("JWT_SECRET", "finalcall-secret-key"),
		InternalWSToken:   getEnv("INTERNAL_WS_TOKEN", "auction-internal-token"),
		AuthWSURL:         getEnv("AUTH_WS_URL", "ws://localhost:8081/ws/internal"),
		CatalogueWSURL:    getEnv("CATALOGUE_WS_URL", "ws://localhost:8082/ws/internal"),
		DecayInterval:     getDuration("DECAY_INTERVAL", time.Minute),
		ReconnectInterval: getDuration("RECONNECT_INTERVAL", 30*time.Second),
		RPCTimeout:        getDuration("RPC_TIMEOUT", 10*time.Second),
		EventBuffer:       getInt("EVENT_BUFFER", 256),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
		return fallback
	}
	return n
}
