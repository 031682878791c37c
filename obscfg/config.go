// Package obscfg loads the driver's YAML configuration: where the ledger
// lives, where evidence files are read from, and how query sessions are
// bounded.
package obscfg

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of the driver's configuration file.
type Config struct {
	Ledger   LedgerConfig   `yaml:"ledger"`
	Engine   EngineConfig   `yaml:"engine"`
	Evidence EvidenceConfig `yaml:"evidence"`
}

// LedgerConfig describes the Postgres-backed audit ledger connection.
type LedgerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Database       string `yaml:"database"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN renders the libpq connection string for this ledger.
func (c LedgerConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// EngineConfig bounds a single control run's analytical session.
type EngineConfig struct {
	WorkspaceDir       string `yaml:"workspace_dir"`
	MemoryLimitMB      int    `yaml:"memory_limit_mb"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	MaxExceptionSample int    `yaml:"max_exception_sample"`
}

// EvidenceConfig locates the columnar evidence files and manifests a
// control run is compiled against.
type EvidenceConfig struct {
	RootDir      string `yaml:"root_dir"`
	ManifestGlob string `yaml:"manifest_glob"`
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("obscfg: read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("obscfg: parse config: %w", err)
	}
	return &cfg, nil
}
