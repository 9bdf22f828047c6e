package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lynxoskar/fileServe200/internal/retention"
)

type Config struct {
	Port        int
	Root        string
	JournalPath string
	Retention   retention.Config

	// Registry receives the server's collectors. Nil means a fresh registry.
	Registry *prometheus.Registry
}

func DefaultConfig() Config {
	return Config{
		Port:      8080,
		Root:      "./data",
		Retention: retention.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root directory is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return c.Retention.Validate()
}
