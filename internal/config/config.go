package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty" yaml:"log_pretty"`

	// MaxClients caps the number of concurrently registered sessions.
	MaxClients int `mapstructure:"max_clients" yaml:"max_clients"`
	// MaxClientsPerChannel caps the roster of one chat channel.
	MaxClientsPerChannel int `mapstructure:"max_clients_per_channel" yaml:"max_clients_per_channel"`
	// LobbyChannels is the number of pooled lobby chat channels, indexed from 1.
	LobbyChannels int `mapstructure:"lobby_channels" yaml:"lobby_channels"`
	// MaxMessagesPerMinute caps one connection's inbound requests per minute.
	// Zero disables the limit.
	MaxMessagesPerMinute int `mapstructure:"max_messages_per_minute" yaml:"max_messages_per_minute"`

	// RequireAllReady gates the room owner's start on every other member
	// having toggled ready. Off by default.
	RequireAllReady bool `mapstructure:"require_all_ready" yaml:"require_all_ready"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		ReadHeaderTimeout:    5 * time.Second,
		ShutdownTimeout:      5 * time.Second,
		DatabasePath:         "skyarena.db",
		JWTSecret:            "dev-secret-change-me",
		JWTIssuer:            "skyarena",
		JWTAudience:          "skyarena-client",
		LogLevel:             "info",
		LogPretty:            true,
		MaxClients:           512,
		MaxClientsPerChannel: 40,
		LobbyChannels:        8,
		MaxMessagesPerMinute: 600,
		RequireAllReady:      false,
	}
}
