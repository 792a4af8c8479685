// Package config loads server settings from command-line flags and an optional YAML file.
//
// The file is applied over the defaults, then every flag set explicitly on the
// command line is applied over the file.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the server configuration.
type Config struct {
	Addr    string        `yaml:"addr"`
	Dev     bool          `yaml:"dev"`
	Store   StoreConfig   `yaml:"store"`
	TLS     TLSConfig     `yaml:"tls"`
	Auth    AuthConfig    `yaml:"auth"`
	Limiter LimiterConfig `yaml:"limiter"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend         string `yaml:"backend"`
	Name            string `yaml:"name"`
	Dir             string `yaml:"dir"`
	DSN             string `yaml:"dsn"`
	CreateIfMissing bool   `yaml:"create_if_missing"`
	Migrate         bool   `yaml:"migrate"`
}

// TLSConfig holds the server certificate; Insecure serves plaintext (dev only).
type TLSConfig struct {
	Cert     string `yaml:"cert"`
	Key      string `yaml:"key"`
	Insecure bool   `yaml:"insecure"`
}

// AuthConfig lists accepted client tokens and the optional JWT signing key.
type AuthConfig struct {
	Tokens    []string      `yaml:"tokens"`
	JWTKey    string        `yaml:"jwt_key"`
	JWTLeeway time.Duration `yaml:"jwt_leeway"`
}

// LimiterConfig controls lockout after failed authentications.
type LimiterConfig struct {
	Window   time.Duration `yaml:"window"`
	MaxFails int           `yaml:"max_fails"`
	BlockFor time.Duration `yaml:"block_for"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr: ":8443",
		Store: StoreConfig{
			Backend:         BackendSQLite,
			Name:            "monitor.sqlite",
			Dir:             ".",
			CreateIfMissing: true,
			Migrate:         true,
		},
		TLS:     TLSConfig{Cert: "cert.pem", Key: "key.pem"},
		Auth:    AuthConfig{JWTLeeway: 30 * time.Second},
		Limiter: LimiterConfig{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute},
	}
}

// Load parses args (without the program name) and the file named by -config.
func Load(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fv := Default()

	configPath := fs.String("config", "", "YAML config file")
	fs.StringVar(&fv.Addr, "addr", fv.Addr, "listen address")
	fs.BoolVar(&fv.Dev, "dev", fv.Dev, "development mode: reflection and console logging")
	fs.StringVar(&fv.Store.Backend, "store", fv.Store.Backend, "store backend: sqlite, postgres or memory")
	fs.StringVar(&fv.Store.Name, "store-name", fv.Store.Name, "store name (sqlite file name or postgres namespace)")
	fs.StringVar(&fv.Store.Dir, "store-dir", fv.Store.Dir, "directory for sqlite store files")
	fs.StringVar(&fv.Store.DSN, "dsn", fv.Store.DSN, "PostgreSQL DSN")
	fs.BoolVar(&fv.Store.CreateIfMissing, "create-if-missing", fv.Store.CreateIfMissing, "create the store if it does not exist")
	fs.BoolVar(&fv.Store.Migrate, "migrate", fv.Store.Migrate, "apply PostgreSQL migrations on startup")
	fs.StringVar(&fv.TLS.Cert, "tls-cert", fv.TLS.Cert, "TLS certificate (PEM)")
	fs.StringVar(&fv.TLS.Key, "tls-key", fv.TLS.Key, "TLS private key (PEM)")
	fs.BoolVar(&fv.TLS.Insecure, "insecure", fv.TLS.Insecure, "serve without TLS (dev only)")
	fs.Func("tokens", "comma-separated client tokens", func(s string) error {
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				fv.Auth.Tokens = append(fv.Auth.Tokens, t)
			}
		}
		return nil
	})
	fs.StringVar(&fv.Auth.JWTKey, "jwt-key", fv.Auth.JWTKey, "HS256 key for signed client tokens")
	fs.DurationVar(&fv.Auth.JWTLeeway, "jwt-leeway", fv.Auth.JWTLeeway, "allowed clock skew for signed tokens")
	fs.DurationVar(&fv.Limiter.Window, "auth-window", fv.Limiter.Window, "window for counting failed authentications")
	fs.IntVar(&fv.Limiter.MaxFails, "auth-max-fails", fv.Limiter.MaxFails, "failed authentications before lockout")
	fs.DurationVar(&fv.Limiter.BlockFor, "auth-block", fv.Limiter.BlockFor, "lockout duration")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return nil, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply(&cfg, &fv)
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var overrides = map[string]func(dst, src *Config){
	"addr":              func(d, s *Config) { d.Addr = s.Addr },
	"dev":               func(d, s *Config) { d.Dev = s.Dev },
	"store":             func(d, s *Config) { d.Store.Backend = s.Store.Backend },
	"store-name":        func(d, s *Config) { d.Store.Name = s.Store.Name },
	"store-dir":         func(d, s *Config) { d.Store.Dir = s.Store.Dir },
	"dsn":               func(d, s *Config) { d.Store.DSN = s.Store.DSN },
	"create-if-missing": func(d, s *Config) { d.Store.CreateIfMissing = s.Store.CreateIfMissing },
	"migrate":           func(d, s *Config) { d.Store.Migrate = s.Store.Migrate },
	"tls-cert":          func(d, s *Config) { d.TLS.Cert = s.TLS.Cert },
	"tls-key":           func(d, s *Config) { d.TLS.Key = s.TLS.Key },
	"insecure":          func(d, s *Config) { d.TLS.Insecure = s.TLS.Insecure },
	"tokens":            func(d, s *Config) { d.Auth.Tokens = s.Auth.Tokens },
	"jwt-key":           func(d, s *Config) { d.Auth.JWTKey = s.Auth.JWTKey },
	"jwt-leeway":        func(d, s *Config) { d.Auth.JWTLeeway = s.Auth.JWTLeeway },
	"auth-window":       func(d, s *Config) { d.Limiter.Window = s.Limiter.Window },
	"auth-max-fails":    func(d, s *Config) { d.Limiter.MaxFails = s.Limiter.MaxFails },
	"auth-block":        func(d, s *Config) { d.Limiter.BlockFor = s.Limiter.BlockFor },
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for contradictions and missing values.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.Store.Name == "" {
		errs = append(errs, errors.New("store name is required"))
	}
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("sqlite store needs a directory"))
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("postgres store needs a dsn"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if !c.TLS.Insecure && (c.TLS.Cert == "" || c.TLS.Key == "") {
		errs = append(errs, errors.New("tls cert and key are required unless insecure"))
	}
	if len(c.Auth.Tokens) == 0 && c.Auth.JWTKey == "" {
		errs = append(errs, errors.New("no client tokens and no jwt key: nobody could authenticate"))
	}
	if c.Auth.JWTLeeway < 0 {
		errs = append(errs, errors.New("jwt leeway must not be negative"))
	}
	if c.Limiter.MaxFails <= 0 || c.Limiter.Window <= 0 || c.Limiter.BlockFor <= 0 {
		errs = append(errs, errors.New("limiter window, max fails and block duration must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
