package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Dolphin.
//
// Secrets and connection endpoints come exclusively from environment
// variables. An optional YAML file (pointed to by DOLPHIN_CONFIG) carries
// non-secret tunables such as task periods and pool sizes. Loading order:
//
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	SMS      SMSConfig      `yaml:"sms"`
	Alert    AlertConfig    `yaml:"alert"`
	DocStore DocStoreConfig `yaml:"docstore"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	// Host is the broker host (MQTT_HOST). The client connects to
	// mqtt://{Host}.
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`

	// ReconnectDelay is the backoff between connect attempts, in seconds.
	ReconnectDelay int `yaml:"reconnect_delay"`
}

// DatabaseConfig contains MariaDB connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// MaxOpenConns limits the connection pool size.
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// SMSConfig selects and configures the outbound SMS provider.
type SMSConfig struct {
	// Provider is "ncp" or "biz".
	Provider string       `yaml:"provider"`
	NCP      NCPSMSConfig `yaml:"ncp"`
	Biz      BizSMSConfig `yaml:"biz"`
}

// NCPSMSConfig contains Naver Cloud Platform SENS credentials.
type NCPSMSConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	ServiceID string `yaml:"service_id"`
	From      string `yaml:"from"`

	// PollInterval is the delay between delivery-status polls, in seconds.
	PollInterval int `yaml:"poll_interval"`

	// MaxPollAttempts bounds delivery-status polling. 0 disables polling.
	MaxPollAttempts int `yaml:"max_poll_attempts"`
}

// BizSMSConfig contains Bizppurio credentials for the alternate SMS path.
type BizSMSConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccountID string `yaml:"account_id"`
	SecretKey string `yaml:"secret_key"`
	From      string `yaml:"from"`
}

// AlertConfig controls alert fan-out.
type AlertConfig struct {
	// Numbers is the recipient list (ALERT_NUMBERS, comma-separated).
	Numbers []string `yaml:"numbers"`

	// ExcludeDevices lists canonical device ids (e.g. "AGL12") whose
	// classification alerts are suppressed (EXCLUDE_DEVICES).
	ExcludeDevices []string `yaml:"exclude_devices"`

	// QueueSize bounds the alert queue; alerts beyond it are dropped.
	QueueSize int `yaml:"queue_size"`

	// Workers is the number of concurrent alert senders.
	Workers int `yaml:"workers"`

	// DedupeWindow suppresses identical messages within this many seconds.
	DedupeWindow int `yaml:"dedupe_window"`
}

// DocStoreConfig contains Firestore settings for the display-device mirror.
type DocStoreConfig struct {
	Enabled         bool   `yaml:"enabled"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	Collection      string `yaml:"collection"`
}

// InfluxDBConfig contains settings for the optional telemetry mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PipelineConfig contains periods and pool sizes for the ingest pipeline.
type PipelineConfig struct {
	// Workers is the size of the message-processing pool.
	Workers int `yaml:"workers"`

	// QueueSize bounds the pending-message queue.
	QueueSize int `yaml:"queue_size"`

	// BaselineRefreshMinutes is the baseline cache refresh period.
	BaselineRefreshMinutes int `yaml:"baseline_refresh_minutes"`

	// LivenessSweepMinutes is the silent-device sweep period.
	LivenessSweepMinutes int `yaml:"liveness_sweep_minutes"`

	// HeartbeatMinutes is the timestamp/beacon publish period.
	HeartbeatMinutes int `yaml:"heartbeat_minutes"`
}

// requiredEnv maps environment variables that must be present to the
// config field they populate. Missing keys abort startup.
var requiredEnv = []string{
	"MQTT_HOST",
	"MARIADB_HOST",
	"MARIADB_USER",
	"MARIADB_PASSWORD",
	"MARIADB_DATABASE",
}

// Load builds the configuration from defaults, the optional YAML file named
// by DOLPHIN_CONFIG, and environment variables, in that order.
//
// Load does not fail on missing required environment variables; call
// MissingRequired and report usage from main so the process can exit with
// the documented code.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("DOLPHIN_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			QoS:            0,
			ReconnectDelay: 10,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 8,
			MaxIdleConns: 2,
		},
		SMS: SMSConfig{
			Provider: "biz",
			NCP: NCPSMSConfig{
				Endpoint:        "https://sens.apigw.ntruss.com",
				From:            "0415889816",
				PollInterval:    10,
				MaxPollAttempts: 30,
			},
			Biz: BizSMSConfig{
				Endpoint: "https://api.bizppurio.com",
			},
		},
		Alert: AlertConfig{
			QueueSize:    64,
			Workers:      2,
			DedupeWindow: 60,
		},
		DocStore: DocStoreConfig{
			Enabled:         true,
			ProjectID:       "dash-demo-7f5f3",
			CredentialsFile: "/app/firebase.json",
			Collection:      "mqtt_db",
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Pipeline: PipelineConfig{
			Workers:                4,
			QueueSize:              256,
			BaselineRefreshMinutes: 60,
			LivenessSweepMinutes:   5,
			HeartbeatMinutes:       5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables always win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if v := os.Getenv("MARIADB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("MARIADB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("MARIADB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("MARIADB_DATABASE"); v != "" {
		cfg.Database.Database = v
	}

	if v := os.Getenv("NCP_ACCESS_KEY"); v != "" {
		cfg.SMS.NCP.AccessKey = v
	}
	if v := os.Getenv("NCP_SECRET_KEY"); v != "" {
		cfg.SMS.NCP.SecretKey = v
	}
	if v := os.Getenv("NCP_SMS_ID"); v != "" {
		cfg.SMS.NCP.ServiceID = v
	}

	if v := os.Getenv("BIZ_SMS_ACCOUNT_ID"); v != "" {
		cfg.SMS.Biz.AccountID = v
	}
	if v := os.Getenv("BIZ_SMS_SECRET_KEY"); v != "" {
		cfg.SMS.Biz.SecretKey = v
	}
	if v := os.Getenv("BIZ_SMS_FROM"); v != "" {
		cfg.SMS.Biz.From = v
	}

	if v := os.Getenv("ALERT_NUMBERS"); v != "" {
		cfg.Alert.Numbers = splitCommaList(v)
	}
	if v := os.Getenv("EXCLUDE_DEVICES"); v != "" {
		cfg.Alert.ExcludeDevices = splitCommaList(v)
	}
}

// MissingRequired returns the names of required environment variables that
// are absent from the environment, in declaration order.
func MissingRequired() []string {
	var missing []string
	for _, key := range requiredEnv {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// splitCommaList splits a comma-separated value, trimming whitespace
// around each entry.
func splitCommaList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
