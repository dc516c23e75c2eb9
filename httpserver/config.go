package httpserver

import (
	"fmt"
	"net"
)

// Config for the optional status server. An empty Addr disables it.
type Config struct {
	Addr string `koanf:"addr"`
}

func (cfg *Config) Enabled() bool {
	return cfg.Addr != ""
}

func (cfg *Config) Validate() error {
	if !cfg.Enabled() {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("http.addr '%s' is not a valid listen address: %w", cfg.Addr, err)
	}
	return nil
}
