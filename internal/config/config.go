package config

import (
	"fmt"
	"time"

	"github.com/dontlook/stalker/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "stalker.cfg.json"

// PursuitConfig holds pursuer tuning and the visibility policy.
type PursuitConfig struct {
	Settings core.PursuerSettings
	Policy   string
}

// SimConfig holds the fixed-step loop settings.
type SimConfig struct {
	Dt       float64
	Ticks    int
	Realtime bool
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite backend settings.
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpPath     string
}

// WebsocketConfig holds the streaming backend settings.
type WebsocketConfig struct {
	URL    string
	Secret string
}

// StorageConfig selects and configures the recording backend.
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	Websocket WebsocketConfig
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN returns the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled   bool
	Protocol  string
	Host      string
	Port      string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// URL returns the InfluxDB server URL.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds GELF output settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// APIConfig holds the replay viewer settings.
type APIConfig struct {
	ServerURL string
	APIKey    string
	// Upload sends every exported session to the viewer.
	Upload bool
	Tag    string
}

// OTelConfig holds metrics settings.
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	ExportInterval time.Duration
	OutputFile     string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; tools that run
// without a config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./stalkerlogs")

	viper.SetDefault("pursuit.detectionRadius", core.DefaultDetectionRadius)
	viper.SetDefault("pursuit.fieldOfView", core.DefaultFieldOfView)
	viper.SetDefault("pursuit.stopDistance", core.DefaultStopDistance)
	viper.SetDefault("pursuit.moveSpeed", core.DefaultMoveSpeed)
	viper.SetDefault("pursuit.debounceTicks", 0)
	viper.SetDefault("vision.policy", "occlusion")

	viper.SetDefault("sim.dt", 0.02)
	viper.SetDefault("sim.ticks", 500)
	viper.SetDefault("sim.realtime", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./recordings/stalker.db")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/ingest")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "stalker")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "stalker-metrics")
	viper.SetDefault("influx.bucket", "pursuit")
	viper.SetDefault("influx.backupDir", "./recordings")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "stalker")
	viper.SetDefault("otel.exportInterval", "5s")
	viper.SetDefault("otel.outputFile", "")

	viper.SetDefault("monitor.interval", "5s")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)
	viper.SetDefault("api.tag", "")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetPursuitConfig returns the pursuer defaults and vision policy.
func GetPursuitConfig() PursuitConfig {
	return PursuitConfig{
		Settings: core.PursuerSettings{
			DetectionRadius: viper.GetFloat64("pursuit.detectionRadius"),
			FieldOfView:     viper.GetFloat64("pursuit.fieldOfView"),
			StopDistance:    viper.GetFloat64("pursuit.stopDistance"),
			MoveSpeed:       viper.GetFloat64("pursuit.moveSpeed"),
			DebounceTicks:   viper.GetInt("pursuit.debounceTicks"),
		},
		Policy: viper.GetString("vision.policy"),
	}
}

// GetSimConfig returns the loop settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		Dt:       viper.GetFloat64("sim.dt"),
		Ticks:    viper.GetInt("sim.ticks"),
		Realtime: viper.GetBool("sim.realtime"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Websocket: WebsocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetDBConfig returns the Postgres settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Protocol:  viper.GetString("influx.protocol"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetGraylogConfig returns the GELF output settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the metrics settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
		OutputFile:     viper.GetString("otel.outputFile"),
	}
}

// GetAPIConfig returns the replay viewer settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Upload:    viper.GetBool("api.upload"),
		Tag:       viper.GetString("api.tag"),
	}
}
