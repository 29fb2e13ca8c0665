package conf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"mimestream/internal/blobstorage"
)

// Config holds the configuration of the ingestion tools.
type Config struct {
	Ingest      IngestConfig       `yaml:"ingest"`
	Database    DatabaseConfig     `yaml:"database"`
	BlobStorage blobstorage.Config `yaml:"blob_storage"`
}

// IngestConfig controls how mailbox files are parsed and stored.
type IngestConfig struct {
	ChunkSize      int   `yaml:"chunk_size"`       // read chunk size override, 0 = natural
	Workers        int   `yaml:"workers"`          // concurrent files, 0 = one per file
	MaxMessageSize int64 `yaml:"max_message_size"` // skip messages larger than this, in bytes
	BlobThreshold  int   `yaml:"blob_threshold"`   // part bodies above this spill to blob storage
}

// DatabaseConfig holds the sqlite archive location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			ChunkSize:      0,
			Workers:        4,
			MaxMessageSize: 52428800, // 50MB
			BlobThreshold:  1024,
		},
		Database: DatabaseConfig{
			Path: "data/messages.db",
		},
	}
}

// LoadConfig loads configuration from a YAML file, layered over defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize < 0 {
		return fmt.Errorf("ingest.chunk_size must not be negative")
	}
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must not be negative")
	}
	if c.Ingest.MaxMessageSize <= 0 {
		return fmt.Errorf("ingest.max_message_size must be positive")
	}
	if c.Ingest.BlobThreshold < 0 {
		return fmt.Errorf("ingest.blob_threshold must not be negative")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.BlobStorage.Enabled {
		if c.BlobStorage.Bucket == "" {
			return fmt.Errorf("blob_storage.bucket must be set when enabled")
		}
		if c.BlobStorage.Region == "" {
			return fmt.Errorf("blob_storage.region must be set when enabled")
		}
	}
	return nil
}
