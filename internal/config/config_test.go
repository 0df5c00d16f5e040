package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "ams.yaml", []byte(
		"url: https://example.smartabase.com/site\n"+
			"username: coach\n"+
			"password: pw\n"+
			"max_retries: 5\n"), 0o644))

	cfg, err := Load(fs, "ams.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://example.smartabase.com/site", cfg.URL)
	assert.Equal(t, uint64(5), cfg.MaxRetries)

	cc := cfg.ClientConfig()
	assert.Equal(t, "coach", cc.Username)
}

func TestEnvOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "ams.yaml", []byte(
		"url: https://example.smartabase.com/site\nusername: coach\npassword: pw\n"), 0o644))
	t.Setenv(EnvURL, "https://other.smartabase.com/site")
	t.Setenv(EnvPassword, "secret")

	cfg, err := Load(fs, "ams.yaml")
	require.NoError(t, err)
	assert.Equal(t, "https://other.smartabase.com/site", cfg.URL)
	assert.Equal(t, "coach", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
}

func TestEnvOnly(t *testing.T) {
	t.Setenv(EnvURL, "https://example.smartabase.com/site")
	t.Setenv(EnvUsername, "coach")
	t.Setenv(EnvPassword, "pw")

	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestValidateMissing(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMS_URL")
}
