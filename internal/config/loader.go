package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

// Load reads configuration from a TOML file using viper.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = "./config.toml"
	}

	if !fileExists(configFile) {
		return nil, fmt.Errorf("configuration file not found: %s", configFile)
	}

	viper.SetConfigFile(configFile)
	viper.SetConfigType("toml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	applyDefaults(&conf)

	log.Infof("Configuration loaded from %s", configFile)
	return &conf, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	conf := &Config{}
	applyDefaults(conf)
	return conf
}

func applyDefaults(conf *Config) {
	if conf.Server.ListenAddress == "" {
		conf.Server.ListenAddress = "8080"
	}
	if conf.Server.StoragePath == "" {
		conf.Server.StoragePath = "./uploads"
	}
	if conf.Server.SharedPath == "" {
		conf.Server.SharedPath = "./shared"
	}
	if conf.Server.UsersFile == "" {
		conf.Server.UsersFile = "./users.json"
	}
	if conf.Server.MaxUploadSize == "" {
		conf.Server.MaxUploadSize = "100MB"
	}
	if conf.Server.MinFreeBytes == "" {
		conf.Server.MinFreeBytes = "100MB"
	}
	if conf.Server.MetricsPort == "" {
		conf.Server.MetricsPort = "9090"
	}
	if conf.Server.PIDFilePath == "" {
		conf.Server.PIDFilePath = "/var/run/fileshare-server.pid"
	}

	if conf.Session.Expiry == "" {
		conf.Session.Expiry = "24h"
	}
	if conf.Notify.ReapInterval == "" {
		conf.Notify.ReapInterval = "30s"
	}

	if conf.Logging.Level == "" {
		conf.Logging.Level = "info"
	}
	if conf.Logging.MaxSize == 0 {
		conf.Logging.MaxSize = 100
	}
	if conf.Logging.MaxBackups == 0 {
		conf.Logging.MaxBackups = 7
	}
	if conf.Logging.MaxAge == 0 {
		conf.Logging.MaxAge = 30
	}

	if conf.Timeouts.Read == "" {
		conf.Timeouts.Read = "600s"
	}
	if conf.Timeouts.Write == "" {
		conf.Timeouts.Write = "600s"
	}
	if conf.Timeouts.Idle == "" {
		conf.Timeouts.Idle = "600s"
	}
	if conf.Timeouts.Shutdown == "" {
		conf.Timeouts.Shutdown = "30s"
	}

	if conf.Workers.NumWorkers == 0 {
		conf.Workers.NumWorkers = 4
	}
	if conf.Workers.QueueSize == 0 {
		conf.Workers.QueueSize = 50
	}

	if conf.History.DBPath == "" {
		conf.History.DBPath = "./data/history.db"
	}
	if conf.Thumbnails.MaxEdge == 0 {
		conf.Thumbnails.MaxEdge = 256
	}

	if conf.Build.Version == "" {
		conf.Build.Version = "1.2.0"
	}
}

// Validate performs basic configuration validation.
func Validate(c *Config) error {
	if c.Server.ListenAddress == "" {
		return errors.New("server.listen_address is required")
	}
	if c.Server.UsersFile == "" {
		return errors.New("server.users_file is required")
	}

	if _, err := time.ParseDuration(c.Session.Expiry); err != nil {
		return fmt.Errorf("invalid session.expiry: %v", err)
	}
	if _, err := time.ParseDuration(c.Notify.ReapInterval); err != nil {
		return fmt.Errorf("invalid notify.reap_interval: %v", err)
	}

	if _, err := time.ParseDuration(c.Timeouts.Read); err != nil {
		return fmt.Errorf("invalid timeouts.read: %v", err)
	}
	if _, err := time.ParseDuration(c.Timeouts.Write); err != nil {
		return fmt.Errorf("invalid timeouts.write: %v", err)
	}
	if _, err := time.ParseDuration(c.Timeouts.Idle); err != nil {
		return fmt.Errorf("invalid timeouts.idle: %v", err)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return errors.New("history.db_path is required when history.enabled is true")
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GenerateMinimalConfig returns a minimal example configuration string.
func GenerateMinimalConfig() string {
	return `# Fileshare Server - Minimal Configuration
# For all options see the documentation.

[server]
listen_address = "8080"
bind_ip = "0.0.0.0"
storage_path = "./uploads"
shared_path = "./shared"
users_file = "./users.json"
max_upload_size = "100MB"
min_free_bytes = "100MB"
metricsenabled = true
metricsport = "9090"
pidfilepath = "/var/run/fileshare-server.pid"

[session]
expiry = "24h"

[notify]
reap_interval = "30s"

[logging]
level = "info"
file = "/var/log/fileshare-server.log"
max_size = 100
max_backups = 7
max_age = 30
compress = true

[timeouts]
readtimeout = "600s"
writetimeout = "600s"
idletimeout = "600s"

[workers]
numworkers = 4
queuesize = 50

[history]
enabled = true
db_path = "./data/history.db"

[thumbnails]
enabled = true
max_edge = 256

[build]
version = "1.2.0"
`
}

// CreateMinimalConfig writes a minimal config.toml to disk.
func CreateMinimalConfig() error {
	content := GenerateMinimalConfig()
	f, err := os.Create("config.toml")
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	_, err = fmt.Fprint(w, content)
	if err != nil {
		return err
	}
	return w.Flush()
}
