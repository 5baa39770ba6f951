// Package config reads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MongoURI  string
	MongoDB   string
	RedisAddr string
	Addr      string
	LogLevel  string

	// Assignment and loading.
	BatchSize     int
	MinConfidence float64

	// Stats API response cache.
	StatsCacheTTL time.Duration
	StatsCacheMem int

	// Tile downloads.
	FetchRetries int
	FetchBackoff time.Duration
	DataDir      string
}

func FromEnv() Config {
	batch := getint("BATCH_SIZE", 1000)
	if batch < 1 {
		batch = 1
	}

	return Config{
		MongoURI:      getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getenv("MONGO_DB", "cadastre"),
		RedisAddr:     getenv("REDIS_ADDR", ""),
		Addr:          getenv("ADDR", ":8090"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		BatchSize:     batch,
		MinConfidence: getfloat("MIN_CONFIDENCE", 0),
		StatsCacheTTL: getduration("STATS_CACHE_TTL", 5*time.Minute),
		StatsCacheMem: getint("STATS_CACHE_MEM", 256),
		FetchRetries:  getint("FETCH_RETRIES", 3),
		FetchBackoff:  getduration("FETCH_BACKOFF", 2*time.Second),
		DataDir:       getenv("DATA_DIR", "data"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
