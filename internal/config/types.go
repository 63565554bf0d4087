// Package config contains all configuration types and loading logic.
package config

// ServerConfig holds server-level configuration.
type ServerConfig struct {
	ListenAddress  string `toml:"listen_address" mapstructure:"listen_address"`
	BindIP         string `toml:"bind_ip" mapstructure:"bind_ip"`
	StoragePath    string `toml:"storage_path" mapstructure:"storage_path"`
	SharedPath     string `toml:"shared_path" mapstructure:"shared_path"`
	UsersFile      string `toml:"users_file" mapstructure:"users_file"`
	MaxUploadSize  string `toml:"max_upload_size" mapstructure:"max_upload_size"`
	MinFreeBytes   string `toml:"min_free_bytes" mapstructure:"min_free_bytes"`
	MetricsEnabled bool   `toml:"metricsenabled" mapstructure:"metricsenabled"`
	MetricsPort    string `toml:"metricsport" mapstructure:"metricsport"`
	PIDFilePath    string `toml:"pidfilepath" mapstructure:"pidfilepath"`
}

// SessionConfig holds session lifecycle configuration.
type SessionConfig struct {
	Expiry string `toml:"expiry" mapstructure:"expiry"`
}

// NotifyConfig holds realtime notification configuration.
type NotifyConfig struct {
	ReapInterval string `toml:"reap_interval" mapstructure:"reap_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// TimeoutConfig holds timeout configuration.
type TimeoutConfig struct {
	Read     string `mapstructure:"readtimeout" toml:"readtimeout"`
	Write    string `mapstructure:"writetimeout" toml:"writetimeout"`
	Idle     string `mapstructure:"idletimeout" toml:"idletimeout"`
	Shutdown string `mapstructure:"shutdown" toml:"shutdown"`
}

// WorkersConfig holds worker pool configuration.
type WorkersConfig struct {
	NumWorkers int `toml:"numworkers" mapstructure:"numworkers"`
	QueueSize  int `toml:"queuesize" mapstructure:"queuesize"`
}

// HistoryConfig holds transfer history store configuration.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	DBPath  string `toml:"db_path" mapstructure:"db_path"`
}

// ThumbnailsConfig holds thumbnail generation configuration.
type ThumbnailsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
	MaxEdge int  `toml:"max_edge" mapstructure:"max_edge"`
}

// BuildConfig holds build information.
type BuildConfig struct {
	Version string `mapstructure:"version" toml:"version"`
}

// Config holds the complete server configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Session    SessionConfig    `mapstructure:"session"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Timeouts   TimeoutConfig    `mapstructure:"timeouts"`
	Workers    WorkersConfig    `mapstructure:"workers"`
	History    HistoryConfig    `mapstructure:"history"`
	Thumbnails ThumbnailsConfig `mapstructure:"thumbnails"`
	Build      BuildConfig      `mapstructure:"build"`
}
