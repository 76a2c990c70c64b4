package config

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	RoleAdmin       = "admin"
	RoleContributor = "contributor"
)

// Config holds runtime settings for the catalog client.
//
// RemoteURL empty means no remote snapshot store: the catalog lives in the
// local store only. NotifyURL defaults to the notify endpoint of RemoteURL.
type Config struct {
	RemoteURL           string
	AccessToken         string
	User                string
	Role                string
	NotifyURL           string
	NotifyEvery         time.Duration
	DataDir             string
	InboxDir            string
	FlushInterval       time.Duration
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	NoticeTTL           time.Duration
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Role = RoleContributor
	c.NotifyEvery = time.Minute
	c.DataDir = ".promptvault"
	c.FlushInterval = 30 * time.Second
	c.OnlineCheckInterval = 5 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.NoticeTTL = 10 * time.Second
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// Privileged reports whether the session may overwrite the primary snapshot.
func (c *Config) Privileged() bool {
	return strings.EqualFold(c.Role, RoleAdmin)
}

// DatabasePath is the SQLite file of the local store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// DraftDir holds the create-form draft.
func (c *Config) DraftDir() string {
	return filepath.Join(c.DataDir, "drafts")
}

// NotifyEndpoint resolves the administrator notification URL.
func (c *Config) NotifyEndpoint() string {
	if c.NotifyURL != "" || c.RemoteURL == "" {
		return c.NotifyURL
	}
	return strings.TrimRight(c.RemoteURL, "/") + "/api/notify"
}
