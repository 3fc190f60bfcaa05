// Package config provides configuration management for the LeapLedger CLI
// and server. Configuration is layered: defaults, then leapledger.yaml, then
// LEAPLEDGER_* environment variables, then CLI flags.
package config

// ServerConfig holds configuration for the HTTP API server.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Config holds all CLI configuration options.
type Config struct {
	StatePath    string        `koanf:"state_path"`
	Caller       string        `koanf:"caller"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`
	Server       *ServerConfig `koanf:"server"`
}

// GetServerConfig returns the server config with defaults applied for any
// unset values.
func (c *Config) GetServerConfig() *ServerConfig {
	if c.Server == nil {
		return &ServerConfig{Host: DefaultServerHost, Port: DefaultServerPort}
	}
	srv := c.Server
	if srv.Host == "" {
		srv.Host = DefaultServerHost
	}
	if srv.Port == 0 {
		srv.Port = DefaultServerPort
	}
	return srv
}

// Default configuration values.
const (
	DefaultStateFile  = ".leapledger/ledger.db"
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=json
	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8547
)
