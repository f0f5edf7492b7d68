package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "ownership.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 1000, cfg.ServiceNow.PageSize)
	assert.Equal(t, 30, cfg.ServiceNow.TimeoutSecs)
	assert.InDelta(t, 10, cfg.ServiceNow.RatePerSec, 0.001)
	assert.Equal(t, 3, cfg.ServiceNow.MaxRetries)
	assert.Zero(t, cfg.ServiceNow.MaxRecords.Audit)
	assert.Equal(t, 8, cfg.Scan.Concurrency)
	assert.Equal(t, 90, cfg.Scan.UserAuditLookbackDays)
	assert.Empty(t, cfg.Scan.Schedule)
	assert.Equal(t, 1, cfg.Notify.CriticalThreshold)
	assert.False(t, cfg.Notify.Enabled())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
servicenow:
  instance_url: https://dev1234.service-now.com
  username: admin
  max_records:
    audit: 5000
store:
  driver: postgres
  database_url: postgres://localhost/ownership
log:
  level: debug
  format: console
server:
  port: 9090
scan:
  schedule: "0 6 * * *"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://dev1234.service-now.com", cfg.ServiceNow.InstanceURL)
	assert.Equal(t, "admin", cfg.ServiceNow.Username)
	assert.Equal(t, 5000, cfg.ServiceNow.MaxRecords.Audit)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0 6 * * *", cfg.Scan.Schedule)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.ServiceNow.PageSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("OWNERSHIP_STORE_DRIVER", "postgres")
	t.Setenv("OWNERSHIP_LOG_LEVEL", "warn")
	t.Setenv("OWNERSHIP_SERVICENOW_PASSWORD", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.ServiceNow.Password)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("OWNERSHIP_SERVER_PORT", "3000")
	t.Setenv("OWNERSHIP_NOTIFY_SLACK_TOKEN", "xoxb-1")
	t.Setenv("OWNERSHIP_NOTIFY_SLACK_CHANNEL", "#cmdb")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Notify.Enabled())
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ownership.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  database_url: /var/lib/ownership/cmdb.db\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ownership/cmdb.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.ServiceNow.PageSize = 1000
	cfg.ServiceNow.RatePerSec = 10
	cfg.Scan.Concurrency = 8
	cfg.Scan.UserAuditLookbackDays = 90
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "ownership.db"
	cfg.Server.Port = 8000
	cfg.Notify.CriticalThreshold = 1
	return cfg
}

func withServiceNow(cfg *Config) *Config {
	cfg.ServiceNow.InstanceURL = "https://dev1234.service-now.com"
	cfg.ServiceNow.Username = "admin"
	cfg.ServiceNow.Password = "pw"
	return cfg
}

func TestValidateScan_NoCredentialsNeeded(t *testing.T) {
	assert.NoError(t, validDefaults().Validate(ModeScan))
	assert.NoError(t, validDefaults().Validate(ModeHistory))
}

func TestValidateFetch_AllPresent(t *testing.T) {
	assert.NoError(t, withServiceNow(validDefaults()).Validate(ModeFetch))
}

func TestValidateFetch_MissingFields(t *testing.T) {
	err := validDefaults().Validate(ModeFetch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servicenow.instance_url is required")
	assert.Contains(t, err.Error(), "servicenow.username is required")
	assert.Contains(t, err.Error(), "servicenow.password is required")
}

func TestValidateFetch_BadURL(t *testing.T) {
	cfg := withServiceNow(validDefaults())
	cfg.ServiceNow.InstanceURL = "dev1234.service-now.com"

	err := cfg.Validate(ModeAssign)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with http:// or https://")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := withServiceNow(validDefaults())
	cfg.Server.Port = 0

	err := cfg.Validate(ModeServe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_Schedule(t *testing.T) {
	cfg := withServiceNow(validDefaults())
	cfg.Scan.Schedule = "0 6 * * *"
	assert.NoError(t, cfg.Validate(ModeServe))

	cfg.Scan.Schedule = "every morning"
	err := cfg.Validate(ModeServe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan.schedule is invalid")
}

func TestValidateServe_NoCredentials(t *testing.T) {
	assert.NoError(t, validDefaults().Validate(ModeServe))

	cfg := validDefaults()
	cfg.Scan.Schedule = "0 6 * * *"
	err := cfg.Validate(ModeServe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servicenow.instance_url is required")
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate(ModeScan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Scan.Concurrency = 0
	err := cfg.Validate(ModeScan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan.concurrency must be between 1 and 64")

	cfg.Scan.Concurrency = 65
	assert.Error(t, cfg.Validate(ModeScan))

	cfg.Scan.Concurrency = 64
	assert.NoError(t, cfg.Validate(ModeScan))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
