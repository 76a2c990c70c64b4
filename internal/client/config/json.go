package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/flagx"
	"github.com/dmitrijs2005/promptvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent keys
// leave the corresponding Config field unchanged.
type JsonConfig struct {
	RemoteURL           *string         `json:"remote_url"`
	AccessToken         *string         `json:"access_token"`
	User                *string         `json:"user"`
	Role                *string         `json:"role"`
	NotifyURL           *string         `json:"notify_url"`
	NotifyEvery         *timex.Duration `json:"notify_every"`
	DataDir             *string         `json:"data_dir"`
	InboxDir            *string         `json:"inbox_dir"`
	FlushInterval       *timex.Duration `json:"flush_interval"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	NoticeTTL           *timex.Duration `json:"notice_ttl"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file given by
// -c or -config. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
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

	setString(&cfg.RemoteURL, jc.RemoteURL)
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.User, jc.User)
	setString(&cfg.Role, jc.Role)
	setString(&cfg.NotifyURL, jc.NotifyURL)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.InboxDir, jc.InboxDir)
	setString(&cfg.LogLevel, jc.LogLevel)

	setDuration(&cfg.NotifyEvery, jc.NotifyEvery)
	setDuration(&cfg.FlushInterval, jc.FlushInterval)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.NoticeTTL, jc.NoticeTTL)
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
