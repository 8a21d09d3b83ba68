package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "opticom.cfg.json"), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"scan": { "maxDistance": 80.0 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 80.0, viper.GetFloat64("scan.maxDistance"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./opticomlogs", viper.GetString("logsDir"))
	assert.Equal(t, 5.0, viper.GetFloat64("scan.stepSize"))
	assert.Equal(t, 10.0, viper.GetFloat64("scan.minDistance"))
	assert.Equal(t, 60.0, viper.GetFloat64("scan.maxDistance"))
	assert.Equal(t, 10.0, viper.GetFloat64("scan.searchRadius"))
	assert.Equal(t, 45.0, viper.GetFloat64("scan.headingThreshold"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "opticom", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("broadcast.enabled"))
	assert.Equal(t, "ws://localhost:5001/ingest", viper.GetString("broadcast.url"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "az-opticom", viper.GetString("otel.serviceName"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetScanConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	sc := GetScanConfig()
	assert.Equal(t, 5.0, sc.StepSize)
	assert.Equal(t, 10.0, sc.MinDistance)
	assert.Equal(t, 60.0, sc.MaxDistance)
	assert.Equal(t, 10.0, sc.SearchRadius)
	assert.Equal(t, 45.0, sc.HeadingThreshold)
	assert.Contains(t, sc.LightKinds, "prop_traffic_01a")
	assert.Len(t, sc.LightKinds, 7)
}

func TestGetScanConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"scan": {
			"stepSize": 2.5,
			"maxDistance": 100.0,
			"lightKinds": ["prop_traffic_rural"]
		}
	}`)))

	sc := GetScanConfig()
	assert.Equal(t, 2.5, sc.StepSize)
	assert.Equal(t, 100.0, sc.MaxDistance)
	assert.Equal(t, []string{"prop_traffic_rural"}, sc.LightKinds)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10.0, sc.MinDistance)
}

func TestGetGateConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	gc := GetGateConfig()
	assert.Equal(t, 100*time.Millisecond, gc.MinScanInterval)
	assert.Equal(t, 7.5, gc.RescanDistance)
	assert.Equal(t, 30.0, gc.RescanHeading)
}

func TestGetControlConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cc := GetControlConfig()
	assert.Equal(t, 50*time.Millisecond, cc.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cc.IdleInterval)
	assert.Equal(t, time.Second, cc.RefreshMargin)
}

func TestGetLeaseConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	lc := GetLeaseConfig()
	assert.Equal(t, 5*time.Second, lc.GreenDuration)
	assert.Equal(t, 250*time.Millisecond, lc.SweepInterval)
}

func TestGetLeaseConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"lease": { "greenDurationMs": 8000, "sweepIntervalMs": 500 }
	}`)))

	lc := GetLeaseConfig()
	assert.Equal(t, 8*time.Second, lc.GreenDuration)
	assert.Equal(t, 500*time.Millisecond, lc.SweepInterval)
}

func TestGetNotifyCooldown(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, 5*time.Second, GetNotifyCooldown())
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeoutMs": 30000,
			"endpoint": "localhost:4317",
			"insecure": true
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, true, oc.Insecure)
}

func TestGetBroadcastConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"broadcast": { "enabled": true, "url": "ws://hud:9000/events", "secret": "hunter2" }
	}`)))

	bc := GetBroadcastConfig()
	assert.Equal(t, true, bc.Enabled)
	assert.Equal(t, "ws://hud:9000/events", bc.URL)
	assert.Equal(t, "hunter2", bc.Secret)
}
