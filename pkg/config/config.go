package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Options holds every tunable of the client. The retry limit and the poll
// interval are deliberately configuration, not constants: the defaults (5
// attempts, 10s) match the production values but carry no special meaning.
type Options struct {
	ServerURL     string
	DataDir       string
	DatabaseFile  string
	MigrationsDir string
	SyncInfoFile  string
	LogFile       string
	Token         string
	Passphrase    string
	RetryLimit    int
	PollInterval  time.Duration
	ProbeInterval time.Duration
}

// Default returns the options with their built-in defaults. The data
// directory is created under the user's home if it does not exist yet.
func Default() (*Options, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dataDir := filepath.Join(home, "loadsheet")
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		if err := os.Mkdir(dataDir, 0755); err != nil {
			return nil, err
		}
	}

	return &Options{
		ServerURL:     "http://localhost:8080",
		DataDir:       dataDir,
		DatabaseFile:  filepath.Join(dataDir, "loadsheet.db"),
		MigrationsDir: "migrations",
		SyncInfoFile:  filepath.Join(dataDir, "lastsync"),
		LogFile:       filepath.Join(dataDir, "log.txt"),
		RetryLimit:    5,
		PollInterval:  10 * time.Second,
		ProbeInterval: 5 * time.Second,
	}, nil
}

// RegisterFlags binds the options to a command's flag set so each one can be
// overridden on the command line.
func (o *Options) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ServerURL, "serverURL", o.ServerURL, "server URL")
	fs.StringVar(&o.DatabaseFile, "databaseFile", o.DatabaseFile, "local SQLite database file")
	fs.StringVar(&o.MigrationsDir, "migrationsDir", o.MigrationsDir, "goose migrations directory")
	fs.StringVar(&o.SyncInfoFile, "syncInfoFile", o.SyncInfoFile, "last-sync bookkeeping file")
	fs.StringVar(&o.LogFile, "logFile", o.LogFile, "log file")
	fs.StringVar(&o.Token, "token", o.Token, "API bearer token")
	fs.StringVar(&o.Passphrase, "passphrase", o.Passphrase, "passphrase enabling queue-at-rest encryption")
	fs.IntVar(&o.RetryLimit, "retryLimit", o.RetryLimit, "replay attempts before a queued mutation is dropped")
	fs.DurationVar(&o.PollInterval, "pollInterval", o.PollInterval, "fallback sync poll interval")
	fs.DurationVar(&o.ProbeInterval, "probeInterval", o.ProbeInterval, "connectivity probe interval")
}

// ApplyEnv overrides the options from environment variables when present.
func (o *Options) ApplyEnv() {
	if v, exists := os.LookupEnv("SERVER_URL"); exists {
		o.ServerURL = v
	}
	if v, exists := os.LookupEnv("DATABASE_FILE"); exists {
		o.DatabaseFile = v
	}
	if v, exists := os.LookupEnv("MIGRATIONS_DIR"); exists {
		o.MigrationsDir = v
	}
	if v, exists := os.LookupEnv("SYNC_INFO_FILE"); exists {
		o.SyncInfoFile = v
	}
	if v, exists := os.LookupEnv("LOG_FILE"); exists {
		o.LogFile = v
	}
	if v, exists := os.LookupEnv("API_TOKEN"); exists {
		o.Token = v
	}
	if v, exists := os.LookupEnv("QUEUE_PASSPHRASE"); exists {
		o.Passphrase = v
	}
	if v, exists := os.LookupEnv("RETRY_LIMIT"); exists {
		if value, err := strconv.Atoi(v); err == nil {
			o.RetryLimit = value
		}
	}
	if v, exists := os.LookupEnv("POLL_INTERVAL"); exists {
		if value, err := time.ParseDuration(v); err == nil {
			o.PollInterval = value
		}
	}
	if v, exists := os.LookupEnv("PROBE_INTERVAL"); exists {
		if value, err := time.ParseDuration(v); err == nil {
			o.ProbeInterval = value
		}
	}
}
