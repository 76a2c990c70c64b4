package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// envFile is loaded into the process environment when present.
var envFile = ".env"

// parseEnv overlays Config with PROMPTVAULT_* environment variables.
// A .env file in the working directory is loaded first; variables already
// set in the environment win over the file. Malformed numbers panic.
func parseEnv(cfg *Config) {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	}

	envString(&cfg.ListenAddr, "PROMPTVAULT_LISTEN_ADDR")
	envString(&cfg.Backend, "PROMPTVAULT_BACKEND")
	envString(&cfg.DatabaseDSN, "PROMPTVAULT_DATABASE_DSN")
	envString(&cfg.SecretKey, "PROMPTVAULT_SECRET_KEY")
	envString(&cfg.S3RootUser, "PROMPTVAULT_S3_ROOT_USER")
	envString(&cfg.S3RootPassword, "PROMPTVAULT_S3_ROOT_PASSWORD")
	envString(&cfg.S3Bucket, "PROMPTVAULT_S3_BUCKET")
	envString(&cfg.S3Region, "PROMPTVAULT_S3_REGION")
	envString(&cfg.S3BaseEndpoint, "PROMPTVAULT_S3_BASE_ENDPOINT")
	envString(&cfg.TelegramToken, "PROMPTVAULT_TELEGRAM_TOKEN")
	envString(&cfg.TelegramChatID, "PROMPTVAULT_TELEGRAM_CHAT_ID")
	envString(&cfg.LogLevel, "PROMPTVAULT_LOG_LEVEL")

	envDuration(&cfg.TokenValidity, "PROMPTVAULT_TOKEN_VALIDITY")
	envDuration(&cfg.CacheTTL, "PROMPTVAULT_CACHE_TTL")
	envDuration(&cfg.NotifyEvery, "PROMPTVAULT_NOTIFY_EVERY")

	if v, ok := os.LookupEnv("PROMPTVAULT_MAX_BODY_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		cfg.MaxBodySize = n
	}
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
