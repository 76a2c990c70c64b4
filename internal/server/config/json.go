package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/flagx"
	"github.com/dmitrijs2005/promptvault/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Durations accept "1s" strings or integer nanoseconds. Absent keys
// leave the corresponding Config field unchanged.
type JsonConfig struct {
	ListenAddr     *string         `json:"listen_addr"`
	Backend        *string         `json:"backend"`
	DatabaseDSN    *string         `json:"database_dsn"`
	SecretKey      *string         `json:"secret_key"`
	TokenValidity  *timex.Duration `json:"token_validity"`
	S3RootUser     *string         `json:"s3_root_user"`
	S3RootPassword *string         `json:"s3_root_password"`
	S3Bucket       *string         `json:"s3_bucket"`
	S3Region       *string         `json:"s3_region"`
	S3BaseEndpoint *string         `json:"s3_base_endpoint"`
	CacheTTL       *timex.Duration `json:"cache_ttl"`
	TelegramToken  *string         `json:"telegram_token"`
	TelegramChatID *string         `json:"telegram_chat_id"`
	NotifyEvery    *timex.Duration `json:"notify_every"`
	MaxBodySize    *int            `json:"max_body_size"`
	LogLevel       *string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file given by the -c
// or -config flag. If the file cannot be read or contains invalid JSON,
// the function panics.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ListenAddr, jc.ListenAddr)
	setString(&cfg.Backend, jc.Backend)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.SecretKey, jc.SecretKey)
	setString(&cfg.S3RootUser, jc.S3RootUser)
	setString(&cfg.S3RootPassword, jc.S3RootPassword)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.TelegramToken, jc.TelegramToken)
	setString(&cfg.TelegramChatID, jc.TelegramChatID)
	setString(&cfg.LogLevel, jc.LogLevel)

	setDuration(&cfg.TokenValidity, jc.TokenValidity)
	setDuration(&cfg.CacheTTL, jc.CacheTTL)
	setDuration(&cfg.NotifyEvery, jc.NotifyEvery)

	if jc.MaxBodySize != nil {
		cfg.MaxBodySize = *jc.MaxBodySize
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
