package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   remote snapshot service URL
//	-t string   access token
//	-u string   user name
//	-r string   role: admin or contributor
//	-n string   notification URL
//	-d string   data directory
//	-in string  import inbox directory
//	-f int      flush interval (seconds)
//	-i int      online check interval (seconds)
//	-l string   log level
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-u", "-r", "-n", "-d", "-in", "-f", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RemoteURL, "a", cfg.RemoteURL, "remote snapshot service URL")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.User, "u", cfg.User, "user name")
	fs.StringVar(&cfg.Role, "r", cfg.Role, "role (admin|contributor)")
	fs.StringVar(&cfg.NotifyURL, "n", cfg.NotifyURL, "notification URL")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.InboxDir, "in", cfg.InboxDir, "import inbox directory")
	flushInterval := fs.Int("f", int(cfg.FlushInterval.Seconds()), "flush interval (in seconds)")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.FlushInterval = time.Duration(*flushInterval) * time.Second
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
