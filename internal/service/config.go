package service

import "time"

const (
	// DefaultBindAddress keeps the service reachable from this machine only.
	DefaultBindAddress = "127.0.0.1"
	// DefaultBindPort is the port the desktop shell expects.
	DefaultBindPort = 3030
	// EphemeralPort asks the OS for a free port. Tests only.
	EphemeralPort = -1
)

// Config configures the embedded service runner.
type Config struct {
	// BindAddress is the listen host. Default: 127.0.0.1
	BindAddress string

	// BindPort is the listen port. Default: 3030
	BindPort int

	// ShutdownTimeout bounds the graceful drain. Zero waits for in-flight
	// requests indefinitely.
	ShutdownTimeout time.Duration

	// UseStore enables the database-backed /hello response.
	UseStore bool
}

// applyDefaults fills in zero values.
func (c *Config) applyDefaults() {
	if c.BindAddress == "" {
		c.BindAddress = DefaultBindAddress
	}
	if c.BindPort == 0 {
		c.BindPort = DefaultBindPort
	}
}

func (c Config) listenPort() int {
	if c.BindPort == EphemeralPort {
		return 0
	}
	return c.BindPort
}
