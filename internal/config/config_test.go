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
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"vision": { "policy": "angle" },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "angle", viper.GetString("vision.policy"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./stalkerlogs", viper.GetString("logsDir"))
	assert.Equal(t, "occlusion", viper.GetString("vision.policy"))
	assert.Equal(t, 0.02, viper.GetFloat64("sim.dt"))
	assert.Equal(t, 500, viper.GetInt("sim.ticks"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "stalker", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./recordings", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "stalker", viper.GetString("otel.serviceName"))
	assert.Equal(t, 5*time.Second, GetDuration("monitor.interval"))
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

func TestGetPursuitConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		require.NoError(t, Load(writeConfig(t, `{}`)))

		pc := GetPursuitConfig()
		assert.Equal(t, 20.0, pc.Settings.DetectionRadius)
		assert.Equal(t, 60.0, pc.Settings.FieldOfView)
		assert.Equal(t, 1.5, pc.Settings.StopDistance)
		assert.Equal(t, 3.5, pc.Settings.MoveSpeed)
		assert.Equal(t, 0, pc.Settings.DebounceTicks)
		assert.Equal(t, "occlusion", pc.Policy)
	})

	t.Run("override", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		require.NoError(t, Load(writeConfig(t, `{
			"pursuit": { "detectionRadius": 12.5, "fieldOfView": 90, "debounceTicks": 4 },
			"vision": { "policy": "angle" }
		}`)))

		pc := GetPursuitConfig()
		assert.Equal(t, 12.5, pc.Settings.DetectionRadius)
		assert.Equal(t, 90.0, pc.Settings.FieldOfView)
		assert.Equal(t, 4, pc.Settings.DebounceTicks)
		assert.Equal(t, 1.5, pc.Settings.StopDistance)
		assert.Equal(t, "angle", pc.Policy)
	})
}

func TestGetSimConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"sim": {"dt": 0.1, "ticks": 30, "realtime": true}}`)))

	sc := GetSimConfig()
	assert.Equal(t, 0.1, sc.Dt)
	assert.Equal(t, 30, sc.Ticks)
	assert.True(t, sc.Realtime)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "./recordings/stalker.db", cfg.SQLite.DumpPath)
	assert.Equal(t, "ws://localhost:5000/ingest", cfg.Websocket.URL)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m" },
			"websocket": { "url": "ws://example:9000/ws", "secret": "s3cret" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "ws://example:9000/ws", sc.Websocket.URL)
	assert.Equal(t, "s3cret", sc.Websocket.Secret)
}

func TestGetDBConfig_DSN(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"db": {"host": "db", "password": "pw"}}`)))

	dsn := GetDBConfig().DSN()
	assert.Equal(t, "host=db port=5432 user=postgres password=pw dbname=stalker sslmode=disable", dsn)
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"influx": {"enabled": true, "host": "influx"}}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "http://influx:8086", ic.URL())
	assert.Equal(t, "stalker-metrics", ic.Org)
	assert.Equal(t, "pursuit", ic.Bucket)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "stalker", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.ExportInterval)
	assert.Equal(t, "", cfg.OutputFile)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"exportInterval": "30s",
			"outputFile": "/tmp/metrics.json"
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.ExportInterval)
	assert.Equal(t, "/tmp/metrics.json", oc.OutputFile)
}

func TestGetGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"graylog": {"enabled": true, "address": "gl:12201"}}`)))

	gc := GetGraylogConfig()
	assert.True(t, gc.Enabled)
	assert.Equal(t, "gl:12201", gc.Address)
}

func TestGetAPIConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"api": {"serverUrl": "http://viewer:5000", "upload": true}}`)))

	ac := GetAPIConfig()
	assert.Equal(t, "http://viewer:5000", ac.ServerURL)
	assert.True(t, ac.Upload)
	assert.Equal(t, "", ac.APIKey)
	assert.Equal(t, "", ac.Tag)
}
