package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "handoff.cfg.json"

// LoopConfig holds the producer/consumer loop settings
type LoopConfig struct {
	Exchange         string
	Start            int
	ProducerInterval time.Duration
	ConsumerInterval time.Duration
	Jitter           time.Duration
	Count            int
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings.
// An empty Path keeps the database in memory; DumpPath then receives
// periodic VACUUM INTO snapshots.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebsocketConfig holds streaming storage backend settings
type WebsocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageConfig selects and configures the event history backend
type StorageConfig struct {
	Type          string
	FlushInterval time.Duration
	QueueLimit    int
	Memory        MemoryConfig
	SQLite        SQLiteConfig
	Websocket     WebsocketConfig
	DB            DBConfig
}

// InfluxConfig holds InfluxDB metrics settings
type InfluxConfig struct {
	Enabled    bool
	Host       string
	Port       string
	Protocol   string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// StatusConfig holds status file settings
type StatusConfig struct {
	Enabled  bool
	Path     string
	Interval time.Duration
}

// SetDefaults registers default values for every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("exchange.kind", "monitor")
	viper.SetDefault("producer.start", 1)
	viper.SetDefault("producer.interval", "200ms")
	viper.SetDefault("consumer.interval", "1s")
	viper.SetDefault("loop.jitter", "0s")
	viper.SetDefault("loop.count", 0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "1s")
	viper.SetDefault("storage.queueLimit", 100000)
	viper.SetDefault("storage.memory.outputDir", "./history")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "30s")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/handoff")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "handoff")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "handoff")
	viper.SetDefault("influx.bucket", "handoff_events")
	viper.SetDefault("influx.backupPath", "./influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "handoff")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("status.enabled", false)
	viper.SetDefault("status.path", "./status.json")
	viper.SetDefault("status.interval", "1s")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
// Defaults stay in effect when the file cannot be read.
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

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"count":     "loop.count",
	"exchange":  "exchange.kind",
	"log-level": "logLevel",
}

// BindFlags lets explicitly set command line flags override file values.
func BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// GetLoopConfig returns the producer/consumer loop configuration.
func GetLoopConfig() LoopConfig {
	return LoopConfig{
		Exchange:         viper.GetString("exchange.kind"),
		Start:            viper.GetInt("producer.start"),
		ProducerInterval: viper.GetDuration("producer.interval"),
		ConsumerInterval: viper.GetDuration("consumer.interval"),
		Jitter:           viper.GetDuration("loop.jitter"),
		Count:            viper.GetInt("loop.count"),
	}
}

// SessionSettings is the run configuration recorded with each history
// session. It carries no credentials.
type SessionSettings struct {
	Exchange         string `json:"exchange"`
	Start            int    `json:"start"`
	ProducerInterval string `json:"producerInterval"`
	ConsumerInterval string `json:"consumerInterval"`
	Jitter           string `json:"jitter"`
	Count            int    `json:"count"`
	Storage          string `json:"storage"`
	FlushInterval    string `json:"flushInterval"`
	QueueLimit       int    `json:"queueLimit"`
}

// GetSessionSettings returns the settings stored alongside a session.
func GetSessionSettings() SessionSettings {
	loop := GetLoopConfig()
	return SessionSettings{
		Exchange:         loop.Exchange,
		Start:            loop.Start,
		ProducerInterval: loop.ProducerInterval.String(),
		ConsumerInterval: loop.ConsumerInterval.String(),
		Jitter:           loop.Jitter.String(),
		Count:            loop.Count,
		Storage:          viper.GetString("storage.type"),
		FlushInterval:    viper.GetDuration("storage.flushInterval").String(),
		QueueLimit:       viper.GetInt("storage.queueLimit"),
	}
}

// GetStorageConfig returns the event history configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		QueueLimit:    viper.GetInt("storage.queueLimit"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Websocket: WebsocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetGraylogConfig returns the GELF configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetStatusConfig returns the status file configuration.
func GetStatusConfig() StatusConfig {
	return StatusConfig{
		Enabled:  viper.GetBool("status.enabled"),
		Path:     viper.GetString("status.path"),
		Interval: viper.GetDuration("status.interval"),
	}
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
