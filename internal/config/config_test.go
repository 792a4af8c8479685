package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "monitor.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_FlagsOnly(t *testing.T) {
	cfg, err := Load("monitor", []string{"-tokens", "a, b,,c", "-store", "memory", "-insecure"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, cfg.Auth.Tokens)
	require.Equal(t, BackendMemory, cfg.Store.Backend)
	require.True(t, cfg.TLS.Insecure)
	require.Equal(t, ":8443", cfg.Addr)
	require.Equal(t, 5, cfg.Limiter.MaxFails)
}

func TestLoad_FileThenFlags(t *testing.T) {
	p := writeFile(t, `
addr: ":9000"
store:
  backend: postgres
  dsn: postgres://u:p@db/monitor
  name: monitor
auth:
  tokens: [t1, t2]
  jwt_leeway: 1m
limiter:
  max_fails: 3
tls:
  insecure: true
`)
	cfg, err := Load("monitor", []string{"-config", p, "-addr", ":9100", "-auth-max-fails", "7"})
	require.NoError(t, err)

	require.Equal(t, ":9100", cfg.Addr, "explicit flag wins over file")
	require.Equal(t, 7, cfg.Limiter.MaxFails)
	require.Equal(t, BackendPostgres, cfg.Store.Backend, "file wins over flag default")
	require.Equal(t, "postgres://u:p@db/monitor", cfg.Store.DSN)
	require.Equal(t, []string{"t1", "t2"}, cfg.Auth.Tokens)
	require.Equal(t, time.Minute, cfg.Auth.JWTLeeway)
	require.Equal(t, 15*time.Minute, cfg.Limiter.Window, "unset file keys keep defaults")
	require.True(t, cfg.Store.CreateIfMissing)
}

func TestLoad_UnknownFileKey(t *testing.T) {
	p := writeFile(t, "adr: \":1\"\n")
	_, err := Load("monitor", []string{"-config", p, "-tokens", "t"})
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("monitor", []string{"-config", filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	p := writeFile(t, "")
	cfg, err := Load("monitor", []string{"-config", p, "-jwt-key", "k"})
	require.NoError(t, err)
	require.Equal(t, "k", cfg.Auth.JWTKey)
}

func TestLoad_BadFlag(t *testing.T) {
	_, err := Load("monitor", []string{"-no-such-flag"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Auth.Tokens = []string{"t"}
		return c
	}
	c := valid()
	require.NoError(t, c.Validate())

	cases := map[string]func(*Config){
		"no auth":          func(c *Config) { c.Auth.Tokens = nil },
		"unknown backend":  func(c *Config) { c.Store.Backend = "redis" },
		"postgres no dsn":  func(c *Config) { c.Store.Backend = BackendPostgres },
		"sqlite no dir":    func(c *Config) { c.Store.Dir = "" },
		"no store name":    func(c *Config) { c.Store.Name = "" },
		"tls without cert": func(c *Config) { c.TLS.Cert = "" },
		"zero max fails":   func(c *Config) { c.Limiter.MaxFails = 0 },
		"negative leeway":  func(c *Config) { c.Auth.JWTLeeway = -time.Second },
		"no addr":          func(c *Config) { c.Addr = "" },
	}
	for name, mutate := range cases {
		c := valid()
		mutate(&c)
		require.Error(t, c.Validate(), name)
	}

	c = valid()
	c.Auth.Tokens = nil
	c.Auth.JWTKey = "k"
	require.NoError(t, c.Validate(), "jwt key alone is enough")
}
