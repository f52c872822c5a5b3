package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/amoylab/hublink/pkg/helper"
)

type (
	// RealtimeConfig represents the realtime session configuration
	RealtimeConfig struct {
		Transport TransportConfig `yaml:"transport" toml:"transport"`
		Logger    LoggerConfig    `yaml:"logger" toml:"logger"`
		Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
		Typing    TypingConfig    `yaml:"typing" toml:"typing"`
		Channels  ChannelsConfig  `yaml:"channels" toml:"channels"`
		Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	}

	// TransportConfig describes the message-bus connection
	TransportConfig struct {
		Types             []string      `yaml:"types" toml:"types"`                           // preferred transports in fallback order
		Endpoint          string        `yaml:"endpoint" toml:"endpoint"`                     // e.g. ws://localhost:5000
		Path              string        `yaml:"path" toml:"path"`                             // e.g. /socket
		ReconnectAttempts int           `yaml:"reconnect_attempts" toml:"reconnect_attempts"` // 0 uses the default, ReconnectDisabled turns it off
		ReconnectDelay    time.Duration `yaml:"reconnect_delay" toml:"reconnect_delay"`       // fixed delay between attempts
		PingInterval      time.Duration `yaml:"ping_interval" toml:"ping_interval"`
		HandshakeTimeout  time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
		Redis             RedisConfig   `yaml:"redis" toml:"redis"`
	}

	// RedisConfig represents the Redis pub/sub transport configuration
	RedisConfig struct {
		Addr     string `yaml:"addr" toml:"addr"`
		Username string `yaml:"username" toml:"username"`
		Password string `yaml:"password" toml:"password"`
		DB       int    `yaml:"db" toml:"db"`
		Prefix   string `yaml:"prefix" toml:"prefix"` // channel namespace, default "realtime"
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level" toml:"level"`             // debug, info, warn, error
		Format     string `yaml:"format" toml:"format"`           // json, console
		Output     string `yaml:"output" toml:"output"`           // stdout, file
		FilePath   string `yaml:"file_path" toml:"file_path"`     // path to log file when output is file
		MaxSize    int    `yaml:"max_size" toml:"max_size"`       // max size of log file in MB
		MaxBackups int    `yaml:"max_backups" toml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age" toml:"max_age"`         // max age of backup files in days
		Compress   bool   `yaml:"compress" toml:"compress"`       // whether to compress backup files
		Color      bool   `yaml:"color" toml:"color"`             // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace" toml:"stacktrace"`   // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone" toml:"time_zone"`     // time zone for log timestamps, default is local
		TimeFormat string `yaml:"time_format" toml:"time_format"` // default is "2006-01-02 15:04:05"
	}

	// MetricsConfig represents the prometheus metrics configuration
	MetricsConfig struct {
		Enabled   bool   `yaml:"enabled" toml:"enabled"`
		Addr      string `yaml:"addr" toml:"addr"` // listen address of the /metrics endpoint
		Namespace string `yaml:"namespace" toml:"namespace"`
	}

	// TypingConfig controls the caller-side typing debounce
	TypingConfig struct {
		StopTimeout time.Duration `yaml:"stop_timeout" toml:"stop_timeout"`
		Shape       string        `yaml:"shape" toml:"shape"` // toggle or start_stop
	}

	// ChannelsConfig selects when listeners of each inbound channel attach to the transport
	ChannelsConfig struct {
		// Deferred lists channels whose listeners attach only once connected.
		// Nil keeps the default (notification only).
		Deferred []string `yaml:"deferred" toml:"deferred"`
	}

	// AuthConfig represents the credential configuration
	AuthConfig struct {
		Token         string `yaml:"token" toml:"token"`                   // static bearer token
		IdentityClaim string `yaml:"identity_claim" toml:"identity_claim"` // JWT claim holding the user id
	}
)

// Reconnection attempt settings.
const (
	DefaultReconnectAttempts = 5
	ReconnectDisabled        = -1
)

// Typing shapes.
const (
	TypingShapeToggle    = "toggle"
	TypingShapeStartStop = "start_stop"
)

// LoadConfig loads configuration from a YAML or TOML file with environment variable support
func LoadConfig(filename string) (*RealtimeConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg RealtimeConfig
	if strings.EqualFold(filepath.Ext(cfgPath), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, cfgPath, err
	}

	SetDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, cfgPath, err
	}
	return &cfg, cfgPath, nil
}

// SetDefaults fills the zero values a usable session needs
func SetDefaults(cfg *RealtimeConfig) {
	if len(cfg.Transport.Types) == 0 {
		cfg.Transport.Types = []string{"websocket"}
	}
	if cfg.Transport.ReconnectAttempts == 0 {
		cfg.Transport.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cfg.Transport.ReconnectDelay <= 0 {
		cfg.Transport.ReconnectDelay = time.Second
	}
	if cfg.Transport.PingInterval <= 0 {
		cfg.Transport.PingInterval = 25 * time.Second
	}
	if cfg.Transport.HandshakeTimeout <= 0 {
		cfg.Transport.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Transport.Redis.Prefix == "" {
		cfg.Transport.Redis.Prefix = "realtime"
	}
	if cfg.Typing.StopTimeout <= 0 {
		cfg.Typing.StopTimeout = 2 * time.Second
	}
	if cfg.Typing.Shape == "" {
		cfg.Typing.Shape = TypingShapeToggle
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "realtime"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9464"
	}
	if cfg.Auth.IdentityClaim == "" {
		cfg.Auth.IdentityClaim = "sub"
	}
}

// resolveEnv replaces environment variable placeholders in config content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
