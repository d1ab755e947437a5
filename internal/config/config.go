package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AppEnv        string // development | production
	DatabaseURL   string // empty = in-memory registry
	RedisAddr     string // empty = in-process broadcast
	RedisPassword string
	RoomTTL       time.Duration
	SweepInterval time.Duration
}

// Load reads .env if present, then the environment. Missing values fall
// back to dev defaults.
func Load() Config {
	_ = godotenv.Load() // env-only deployments have no .env file

	return Config{
		Port:          getenv("PORT", "8080"),
		AppEnv:        getenv("APP_ENV", "development"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RoomTTL:       getduration("ROOM_TTL", 2*time.Hour),
		SweepInterval: getduration("SWEEP_INTERVAL", 10*time.Minute),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
