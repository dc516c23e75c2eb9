package db_store

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

const DEFAULT_MIGRATIONS_PATH = "./db_store/sql"

type DBConfig struct {
	Addr     string `koanf:"addr"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Db       string `koanf:"db"`
	Port     string `koanf:"port"`

	MaxPool int `koanf:"max_pool"`

	// empty skips migrations.
	MigrationsPath string `koanf:"migrations_path"`
}

func (cfg *DBConfig) SetFromUri(uri *url.URL) error {
	if ui := uri.User; ui != nil {
		cfg.User = ui.Username()
		cfg.Password, _ = ui.Password()
	}
	cfg.Addr = uri.Hostname()
	if port := uri.Port(); port != "" {
		cfg.Port = port
	}
	cfg.Db = uri.Path
	for len(cfg.Db) > 0 && cfg.Db[0] == '/' {
		cfg.Db = cfg.Db[1:]
	}
	if cfg.Db == "" {
		return errors.New("no database name in uri path")
	}
	return nil
}

// AsDSN returns the go-sql-driver/mysql DSN. Addr may carry its own
// port, which takes precedence over Port.
func (cfg *DBConfig) AsDSN() string {
	addr := cfg.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		port := cfg.Port
		if port == "" {
			port = "3306"
		}
		addr = net.JoinHostPort(addr, port)
	}
	return fmt.Sprintf("%s:%s@(%s)/%s", cfg.User, cfg.Password, addr, cfg.Db)
}

func (cfg *DBConfig) Validate() error {
	if cfg.Addr == "" {
		return errors.New("no db 'addr' configured")
	}
	if cfg.Db == "" {
		return errors.New("no db 'db' (database name) configured")
	}
	if cfg.MaxPool < 0 {
		return errors.New("db 'max_pool' must be >= 0")
	}
	return nil
}

func GetDefaultDBConfig() DBConfig {
	return DBConfig{
		Addr:           "127.0.0.1",
		Port:           "3306",
		Db:             "isochroner",
		MigrationsPath: DEFAULT_MIGRATIONS_PATH,
	}
}
