// Package config loads runtime configuration for the catalog client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	{
//	  "remote_url": "https://vault.example.com",
//	  "access_token": "eyJ...",
//	  "user": "alice",
//	  "role": "contributor",
//	  "data_dir": "/home/alice/.promptvault",
//	  "inbox_dir": "/home/alice/prompt-inbox",
//	  "flush_interval": "30s",
//	  "online_check_interval": "5s"
//	}
package config
