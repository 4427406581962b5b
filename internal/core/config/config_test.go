package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("APP_JWT_ACCESSSECRET", "a-secret")
	t.Setenv("APP_JWT_REFRESHSECRET", "r-secret")
	t.Setenv("APP_AUTH_BOOTSTRAPTOKEN", "boot")

	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "a-secret", c.JWT.AccessSecret)
	assert.Equal(t, "boot", c.Auth.BootstrapToken)
	assert.Equal(t, 8080, c.App.HTTP.Port)
	assert.True(t, c.Content.HonorSchedule)
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.Equal(t, 15*60, int(c.JWT.AccessTTL().Seconds()))
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: production
  http:
    port: 9000
jwt:
  accessSecret: from-file-a
  refreshSecret: from-file-r
auth:
  allowRegistration: false
`), 0o600))
	t.Setenv("APP_APP_HTTP_PORT", "9100")

	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.App.IsProduction())
	assert.Equal(t, 9100, c.App.HTTP.Port)
	assert.Equal(t, "from-file-a", c.JWT.AccessSecret)
	assert.False(t, c.Auth.AllowRegistration)
}

func TestValidateSecrets(t *testing.T) {
	c := &Config{}
	assert.Error(t, c.Validate())
	c.JWT = JWT{AccessSecret: "same", RefreshSecret: "same"}
	assert.ErrorContains(t, c.Validate(), "must differ")
	c.JWT.RefreshSecret = "other"
	assert.NoError(t, c.Validate())
}
