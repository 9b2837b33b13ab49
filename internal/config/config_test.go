package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestParseArgs_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	opts, err := ParseArgs(newFlagSet(), nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", opts.Port)
	assert.Equal(t, "postgres", opts.Driver)
	assert.Equal(t, 2*time.Hour, opts.TokenTTL)
	assert.Equal(t, "http://localhost:", opts.OAuthClients[DefaultClientID])
}

func TestParseArgs_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": "file:1",
		"driver": "sqlite3",
		"database_dsn": "file.db",
		"token_ttl": "30m",
		"retention": "48h",
		"oauth_clients": {"web": "https://maps.example/"}
	}`), 0o600))

	opts, err := ParseArgs(newFlagSet(),
		[]string{"-c", path, "-a", "flag:2", "-client", "cli=http://127.0.0.1:"},
		env(map[string]string{"JWT_SECRET": "s3cret", "DATABASE_DSN": "env.db"}))
	require.NoError(t, err)

	assert.Equal(t, "flag:2", opts.Port, "flag beats file")
	assert.Equal(t, "sqlite3", opts.Driver, "file beats default")
	assert.Equal(t, "env.db", opts.DatabaseDSN, "env beats file")
	assert.Equal(t, "s3cret", opts.JWTSecret)
	assert.Equal(t, 30*time.Minute, opts.TokenTTL)
	assert.Equal(t, 48*time.Hour, opts.Retention)
	assert.Equal(t, "https://maps.example/", opts.OAuthClients["web"])
	assert.Equal(t, "http://127.0.0.1:", opts.OAuthClients["cli"])
	assert.Contains(t, opts.OAuthClients, DefaultClientID)

	opts, err = ParseArgs(newFlagSet(), []string{"-c", path}, env(map[string]string{"SERVER_ADDRESS": "env:3"}))
	require.NoError(t, err)
	assert.Equal(t, "env:3", opts.Port)
}

func TestParseArgs_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"token_ttl": "soon"}`), 0o600))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0o600))

	cases := map[string][]string{
		"missing explicit file": {"-c", filepath.Join(dir, "none.json")},
		"bad duration":          {"-c", bad},
		"bad json":              {"-c", broken},
		"bad driver":            {"-c", "", "-driver", "mysql"},
		"half tls":              {"-c", "", "-tls-cert", "server.crt"},
		"bad client flag":       {"-c", "", "-client", "nope"},
	}
	for name, args := range cases {
		_, err := ParseArgs(newFlagSet(), args, env(nil))
		assert.Error(t, err, name)
	}
}

func TestLoadClient(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
portal_url: https://portal.example/sharing/rest/
client_id: abc
tutorial: 1
state_dir: /tmp/gm
token_expiration: 45m
`), 0o600))

	c, err := LoadClient(path, true, env(map[string]string{"GOPHMAPS_LOG_LEVEL": "debug"}))
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example/sharing/rest", c.PortalURL)
	assert.Equal(t, "abc", c.ClientID)
	assert.Equal(t, 45*time.Minute, c.TokenExpiration)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "http://localhost:8765/oauth/callback", c.RedirectURL, "default kept")
	assert.Equal(t, filepath.Join("/tmp/gm", "state-1.json"), c.StatePath())

	p, err := c.Profile()
	require.NoError(t, err)
	assert.False(t, p.SaveEnabled)
	assert.Equal(t, 8, p.Catalog.Len())
}

func TestLoadClient_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")

	c, err := LoadClient(missing, false, env(map[string]string{"GOPHMAPS_TUTORIAL": "2"}))
	require.NoError(t, err)
	assert.Equal(t, DefaultClientID, c.ClientID)

	_, err = LoadClient(missing, true, env(nil))
	assert.Error(t, err)
}

func TestLoadClient_Invalid(t *testing.T) {
	_, err := LoadClient("", false, env(map[string]string{"GOPHMAPS_TUTORIAL": "3"}))
	assert.Error(t, err)
	_, err = LoadClient("", false, env(map[string]string{"GOPHMAPS_TUTORIAL": "two"}))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tutorial: [1"), 0o600))
	_, err = LoadClient(path, true, env(nil))
	assert.Error(t, err)
}

func TestClientProfile(t *testing.T) {
	p, err := Client{Tutorial: 2}.Profile()
	require.NoError(t, err)
	assert.True(t, p.SaveEnabled)
	assert.Equal(t, 6, p.Catalog.Len())
	assert.Equal(t, "Streets Vector", p.Start.String())
	assert.Equal(t, "Light Gray Canvas Vector", p.Reset.String())
}
