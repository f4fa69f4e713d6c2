// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	RedisURL    string
	DatabaseURL string

	// PollWait is the server-side long-poll budget. Clients hold their
	// request timeout above this value.
	PollWait time.Duration

	// SendLimit / SendWindow bound per-IP traffic on the send path.
	SendLimit  int
	SendWindow time.Duration
}

func Load() *Config {
	return &Config{
		Addr:        getEnv("CHAT_ADDR", "0.0.0.0:8080"),
		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DB_URL", ""),
		PollWait:    getEnvDuration("CHAT_POLL_WAIT", 30*time.Second),
		SendLimit:   getEnvInt("CHAT_SEND_LIMIT", 30),
		SendWindow:  getEnvDuration("CHAT_SEND_WINDOW", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
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
