// Package config loads runtime settings from the environment, an optional
// .env file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// Config holds everything the server needs to start.
type Config struct {
	Addr    string
	Store   string
	DBPath  string
	LogPath string

	MongoURI          string
	MongoDB           string
	MongoTransactions bool

	// TokenSecret enables signature verification of bearer tokens. Empty
	// means tokens are trusted as already verified upstream.
	TokenSecret string

	DemoEnabled      bool
	DemoUser         string
	DemoPasswordHash string

	OperatorToken string
	SecureCookies bool

	CleanupInterval time.Duration
	Retention       time.Duration
	MatchCacheTTL   time.Duration
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Addr:            ":8080",
		Store:           StoreSQLite,
		DBPath:          "lostfound.sqlite3",
		MongoDB:         "lostfound",
		DemoEnabled:     true,
		CleanupInterval: time.Hour,
		Retention:       7 * 24 * time.Hour,
		MatchCacheTTL:   time.Minute,
	}
}

// ErrHelp is returned when -h or -help was passed.
var ErrHelp = flag.ErrHelp

// Load reads .env (if present) into the process environment, then builds a
// Config from the environment and args.
func Load(args []string, usage io.Writer) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("reading .env: %w", err)
	}
	return Parse(args, os.Getenv, usage)
}

// Parse builds a Config from getenv and args without touching the process
// environment.
func Parse(args []string, getenv func(string) string, usage io.Writer) (Config, error) {
	cfg := Defaults()
	if err := fromEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("lostfound", flag.ContinueOnError)
	fs.SetOutput(usage)

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "")
	fs.StringVar(&cfg.Store, "s", cfg.Store, "")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "")
	fs.BoolVar(&cfg.DemoEnabled, "demo", cfg.DemoEnabled, "")
	fs.DurationVar(&cfg.Retention, "retention", cfg.Retention, "")
	fs.DurationVar(&cfg.Retention, "r", cfg.Retention, "")
	fs.DurationVar(&cfg.CleanupInterval, "cleanup-interval", cfg.CleanupInterval, "")

	fs.Usage = func() {
		fmt.Fprint(usage, `Usage: lostfound [command] [flags]

Commands:
  serve                    run the HTTP server (default)
  sweep                    run one cleanup pass and exit
  hash-password <password> print a bcrypt hash for DEMO_PASSWORD_HASH
  token <user-id> [email]  print a signed bearer token (needs LOSTFOUND_TOKEN_SECRET)

Flags:
  -a, -addr <host:port>        listen address (default: :8080)
  -s, -store <sqlite|mongo>    storage backend (default: sqlite)
  -d, -db <path>               SQLite database path (default: lostfound.sqlite3)
  -l, -log <path>              log file path (default: stdout/stderr only)
  -mongo-uri <uri>             MongoDB connection string
  -demo                        accept demo credentials (default: true)
  -r, -retention <duration>    keep received items this long (default: 168h)
  -cleanup-interval <duration> time between cleanup passes (default: 1h)
  -h, -help                    show this help and exit

Flags override LOSTFOUND_* and MONGODB_* environment variables and .env.
`)
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return cfg, cfg.Validate()
}

func fromEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("LOSTFOUND_ADDR", &cfg.Addr)
	str("LOSTFOUND_STORE", &cfg.Store)
	str("LOSTFOUND_DB", &cfg.DBPath)
	str("LOSTFOUND_LOG", &cfg.LogPath)
	str("MONGODB_URI", &cfg.MongoURI)
	str("MONGODB_DB", &cfg.MongoDB)
	str("LOSTFOUND_TOKEN_SECRET", &cfg.TokenSecret)
	str("DEMO_USER", &cfg.DemoUser)
	str("DEMO_PASSWORD_HASH", &cfg.DemoPasswordHash)
	str("LOSTFOUND_OPERATOR_TOKEN", &cfg.OperatorToken)

	for key, dst := range map[string]*bool{
		"MONGODB_TRANSACTIONS":     &cfg.MongoTransactions,
		"LOSTFOUND_DEMO":           &cfg.DemoEnabled,
		"LOSTFOUND_SECURE_COOKIES": &cfg.SecureCookies,
	} {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	for key, dst := range map[string]*time.Duration{
		"LOSTFOUND_CLEANUP_INTERVAL": &cfg.CleanupInterval,
		"LOSTFOUND_RETENTION":        &cfg.Retention,
		"LOSTFOUND_MATCH_CACHE_TTL":  &cfg.MatchCacheTTL,
	} {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return errors.New("sqlite store needs a database path")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("mongo store needs MONGODB_URI")
		}
		if c.MongoDB == "" {
			return errors.New("mongo store needs MONGODB_DB")
		}
	default:
		return fmt.Errorf("unknown store %q (want sqlite or mongo)", c.Store)
	}
	if c.Addr == "" {
		return errors.New("listen address required")
	}
	if c.Retention <= 0 {
		return errors.New("retention must be positive")
	}
	if c.CleanupInterval <= 0 {
		return errors.New("cleanup interval must be positive")
	}
	if c.MatchCacheTTL < 0 {
		return errors.New("match cache ttl cannot be negative")
	}
	if (c.DemoUser == "") != (c.DemoPasswordHash == "") {
		return errors.New("DEMO_USER and DEMO_PASSWORD_HASH must be set together")
	}
	return nil
}
