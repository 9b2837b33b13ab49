// Package config provides functionality for managing configuration options
// for the portal server and the map client.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultClientID is the OAuth client id registered out of the box. It
// matches the client id the map client uses by default.
const DefaultClientID = "rcZBgF9nL5gosV7C"

// Options holds the configuration values for the portal server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string
	// Driver is the database/sql driver: postgres or sqlite3.
	Driver string
	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string
	// Config is the path to the Config file.
	Config string
	// JWTSecret signs access tokens. A random one is used when empty.
	JWTSecret string
	// Issuer is the issuer written to access tokens.
	Issuer string
	// TokenTTL caps the lifetime of access tokens.
	TokenTTL time.Duration
	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string
	TLSKey  string
	// CleanupInterval is how often soft-deleted items are purged.
	CleanupInterval time.Duration
	// Retention is how long soft-deleted items are kept.
	Retention time.Duration
	// OAuthClients maps client ids to their allowed redirect URI prefix.
	OAuthClients map[string]string
	// LogLevel is the zap level name.
	LogLevel string
}

// fileOptions mirrors Options in the JSON config file. Durations are strings
// such as "1h".
type fileOptions struct {
	Port            string            `json:"port"`
	Driver          string            `json:"driver"`
	DatabaseDSN     string            `json:"database_dsn"`
	JWTSecret       string            `json:"jwt_secret"`
	Issuer          string            `json:"issuer"`
	TokenTTL        string            `json:"token_ttl"`
	TLSCert         string            `json:"tls_cert"`
	TLSKey          string            `json:"tls_key"`
	CleanupInterval string            `json:"cleanup_interval"`
	Retention       string            `json:"retention"`
	OAuthClients    map[string]string `json:"oauth_clients"`
	LogLevel        string            `json:"log_level"`
}

func defaults() *Options {
	return &Options{
		Port:            "localhost:8080",
		Driver:          "postgres",
		Config:          "config.json",
		Issuer:          "gophmaps-portal",
		TokenTTL:        2 * time.Hour,
		CleanupInterval: time.Hour,
		Retention:       30 * 24 * time.Hour,
		OAuthClients:    map[string]string{DefaultClientID: "http://localhost:"},
		LogLevel:        "info",
	}
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It exits the process on invalid configuration.
func Parse() *Options {
	opts, err := ParseArgs(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

// ParseArgs resolves options from defaults, the config file, flags and the
// environment, each overriding the previous.
func ParseArgs(fs *flag.FlagSet, args []string, getenv func(string) string) (*Options, error) {
	options := defaults()
	flagged := &Options{}
	var clients []string

	fs.StringVar(&flagged.Port, "a", options.Port, "run on ip:port server")
	fs.StringVar(&flagged.Driver, "driver", options.Driver, "database driver: postgres | sqlite3")
	fs.StringVar(&flagged.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&flagged.Config, "config", options.Config, "path to config file")
	fs.StringVar(&flagged.Config, "c", options.Config, "path to config file (shorthand)")
	fs.StringVar(&flagged.JWTSecret, "jwt-secret", "", "secret used to sign access tokens")
	fs.StringVar(&flagged.Issuer, "issuer", options.Issuer, "access token issuer")
	fs.DurationVar(&flagged.TokenTTL, "token-ttl", options.TokenTTL, "maximum access token lifetime")
	fs.StringVar(&flagged.TLSCert, "tls-cert", "", "server certificate (enables HTTPS)")
	fs.StringVar(&flagged.TLSKey, "tls-key", "", "server private key")
	fs.DurationVar(&flagged.CleanupInterval, "cleanup-interval", options.CleanupInterval, "how often deleted items are purged")
	fs.DurationVar(&flagged.Retention, "retention", options.Retention, "how long deleted items are kept")
	fs.StringVar(&flagged.LogLevel, "log-level", options.LogLevel, "log level")
	fs.Func("client", "register an OAuth client as id=redirect-prefix (repeatable)", func(v string) error {
		if _, _, ok := strings.Cut(v, "="); !ok {
			return errors.New("expected id=redirect-prefix")
		}
		clients = append(clients, v)
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Override flags with environment variables if set
	options.Config = flagged.Config
	if configPath := getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			if err := loadFile(options.Config, options); err != nil {
				return nil, err
			}
		} else if set["config"] || set["c"] || getenv("CONFIG") != "" {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	apply := map[string]func(){
		"a":                func() { options.Port = flagged.Port },
		"driver":           func() { options.Driver = flagged.Driver },
		"d":                func() { options.DatabaseDSN = flagged.DatabaseDSN },
		"jwt-secret":       func() { options.JWTSecret = flagged.JWTSecret },
		"issuer":           func() { options.Issuer = flagged.Issuer },
		"token-ttl":        func() { options.TokenTTL = flagged.TokenTTL },
		"tls-cert":         func() { options.TLSCert = flagged.TLSCert },
		"tls-key":          func() { options.TLSKey = flagged.TLSKey },
		"cleanup-interval": func() { options.CleanupInterval = flagged.CleanupInterval },
		"retention":        func() { options.Retention = flagged.Retention },
		"log-level":        func() { options.LogLevel = flagged.LogLevel },
	}
	for name := range set {
		if f, ok := apply[name]; ok {
			f()
		}
	}
	for _, c := range clients {
		id, prefix, _ := strings.Cut(c, "=")
		options.OAuthClients[id] = prefix
	}

	if serverAddress := getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if driver := getenv("DATABASE_DRIVER"); driver != "" {
		options.Driver = driver
	}
	if secret := getenv("JWT_SECRET"); secret != "" {
		options.JWTSecret = secret
	}

	return options, options.validate()
}

func loadFile(path string, options *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	var f fileOptions
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&options.Port, f.Port)
	setString(&options.Driver, f.Driver)
	setString(&options.DatabaseDSN, f.DatabaseDSN)
	setString(&options.JWTSecret, f.JWTSecret)
	setString(&options.Issuer, f.Issuer)
	setString(&options.TLSCert, f.TLSCert)
	setString(&options.TLSKey, f.TLSKey)
	setString(&options.LogLevel, f.LogLevel)

	for name, pair := range map[string]struct {
		dst *time.Duration
		v   string
	}{
		"token_ttl":        {&options.TokenTTL, f.TokenTTL},
		"cleanup_interval": {&options.CleanupInterval, f.CleanupInterval},
		"retention":        {&options.Retention, f.Retention},
	} {
		if pair.v == "" {
			continue
		}
		d, err := time.ParseDuration(pair.v)
		if err != nil {
			return fmt.Errorf("config file %s: %w", name, err)
		}
		*pair.dst = d
	}
	for id, prefix := range f.OAuthClients {
		options.OAuthClients[id] = prefix
	}
	return nil
}

func (o *Options) validate() error {
	switch o.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported driver %q", o.Driver)
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return errors.New("tls-cert and tls-key must be set together")
	}
	if o.TokenTTL <= 0 || o.CleanupInterval <= 0 || o.Retention < 0 {
		return errors.New("durations must be positive")
	}
	return nil
}
