package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/imgbackfill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const morayConfig = `{
    "port": 8080,
    "databaseType": "moray",
    "mode": "dc",
    "moray": {
        "host": "10.99.99.17",
        "port": 2020,
        "connectTimeout": 500,
        "retry": {"minTimeout": 2000, "maxTimeout": 8000}
    },
    "storage": {
        "local": {"archiveDir": "/var/tmp/archive"}
    }
}`

func TestParseMorayJSON(t *testing.T) {
	cfg, err := Parse([]byte(morayConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	backend, err := cfg.Backend()
	require.NoError(t, err)
	assert.Equal(t, types.DatabaseMoray, backend)
	assert.True(t, cfg.OwnershipRestricted())
	assert.Equal(t, "/var/tmp/archive", cfg.Storage.Local.ArchiveDir)
	assert.Equal(t, "/data/imgapi/manifests", cfg.Database.Dir)
	assert.Equal(t, "imgapi_images", cfg.Moray.Bucket)

	cc := cfg.MorayClientConfig()
	assert.Equal(t, "passthrough:///10.99.99.17:2020", cc.Address)
	assert.Equal(t, 500*time.Millisecond, cc.ConnectTimeout)
	require.NotNil(t, cc.Retry)
	assert.Equal(t, 2*time.Second, cc.Retry.MinTimeout)
	assert.Equal(t, 8*time.Second, cc.Retry.MaxTimeout)
}

func TestParseRetryDisabled(t *testing.T) {
	cfg, err := Parse([]byte(`{"databaseType": "moray", "moray": {"host": "h", "port": 1, "retry": false}}`))
	require.NoError(t, err)
	assert.True(t, cfg.Moray.Retry.Disabled)
	assert.Nil(t, cfg.MorayClientConfig().Retry)
}

func TestParseRetryDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{"databaseType": "moray", "moray": {"host": "h", "port": 1}}`))
	require.NoError(t, err)
	cc := cfg.MorayClientConfig()
	require.NotNil(t, cc.Retry)
	assert.Equal(t, time.Second, cc.Retry.MinTimeout)
	assert.Equal(t, 16*time.Second, cc.Retry.MaxTimeout)
	assert.Equal(t, 200*time.Millisecond, cc.ConnectTimeout)
}

func TestParseYAMLAndDefaults(t *testing.T) {
	cfg, err := Parse([]byte("databaseType: local\ndatabase:\n  dir: /tmp/manifests\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/tmp/manifests", cfg.Database.Dir)
	assert.Equal(t, "/data/imgapi/archive", cfg.Storage.Local.ArchiveDir)
	assert.False(t, cfg.OwnershipRestricted())

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "local", empty.DatabaseType)
}

func TestParseJSONEscapedSlashes(t *testing.T) {
	cfg, err := Parse([]byte(`{"storage":{"local":{"archiveDir":"\/data\/imgapi\/archive"}},` +
		`"database":{"dir":"\/var\/tmp\/manifests"}}`))
	require.NoError(t, err)
	assert.Equal(t, "/data/imgapi/archive", cfg.Storage.Local.ArchiveDir)
	assert.Equal(t, "/var/tmp/manifests", cfg.Database.Dir)
}

func TestParseJSONRetryNull(t *testing.T) {
	cfg, err := Parse([]byte("\n\t{\"moray\": {\"host\": \"h\", \"port\": 1, \"retry\": null}}"))
	require.NoError(t, err)
	assert.False(t, cfg.Moray.Retry.Disabled)
	assert.NotNil(t, cfg.MorayClientConfig().Retry)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte(`{"moray": {"retry": "sometimes"}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfig))

	_, err = Parse([]byte("moray: [unclosed"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfig))
}

func TestBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    types.DatabaseType
		wantErr bool
	}{
		{in: "moray", want: types.DatabaseMoray},
		{in: "moray-like", want: types.DatabaseMoray},
		{in: "local", want: types.DatabaseLocal},
		{in: " Local ", want: types.DatabaseLocal},
		{in: "postgres", wantErr: true},
	}
	for _, tt := range tests {
		cfg := &Config{DatabaseType: tt.in}
		got, err := cfg.Backend()
		if tt.wantErr {
			assert.True(t, errors.Is(err, types.ErrConfig), tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"moray without host", func(c *Config) { c.DatabaseType = "moray"; c.Moray.Port = 2020 }, "moray.host"},
		{"moray bad port", func(c *Config) { c.DatabaseType = "moray"; c.Moray.Host = "h" }, "moray.port"},
		{"moray inverted retry", func(c *Config) {
			c.DatabaseType = "moray"
			c.Moray.Host = "h"
			c.Moray.Port = 1
			c.Moray.Retry = RetryConfig{MinTimeout: 5000, MaxTimeout: 1000}
		}, "moray.retry"},
		{"local without dir", func(c *Config) { c.Database.Dir = "" }, "database.dir"},
		{"no archive dir", func(c *Config) { c.Storage.Local.ArchiveDir = "" }, "storage.local.archiveDir"},
		{"bad type", func(c *Config) { c.DatabaseType = "ldap" }, "databaseType"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrConfig))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestOwnershipOverride(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeDC
	off := false
	cfg.RestrictOwnership = &off
	assert.False(t, cfg.OwnershipRestricted())

	cfg.Mode = "public"
	on := true
	cfg.RestrictOwnership = &on
	assert.True(t, cfg.OwnershipRestricted())
}

func TestLoadAndResolvePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "etc", "imgapi.config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`{"databaseType": "local", "mode": "public"}`), 0644))

	assert.Equal(t, "/explicit.json", ResolvePath("/explicit.json", dir))
	if _, err := os.Stat(DefaultConfigPath); os.IsNotExist(err) {
		assert.Equal(t, path, ResolvePath("", dir))
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "public", cfg.Mode)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
