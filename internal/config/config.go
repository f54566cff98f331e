package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Config holds all configuration for a pg-debug-scan node.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"http-server"`
	Logger  LoggerConfig  `yaml:"logger"`
}

// NodeConfig describes the identity of the node.
type NodeConfig struct {
	Name string `yaml:"name"`
}

// StorageConfig covers the on-disk journal layout.
type StorageConfig struct {
	DataDir         string `yaml:"data_dir"`
	WALSegmentBytes int64  `yaml:"wal_segment_bytes"`
	CompressRotated bool   `yaml:"compress_rotated"`
}

// WALDir returns the journal directory below the data dir.
func (s StorageConfig) WALDir() string {
	return filepath.Join(s.DataDir, "wal")
}

// ServerConfig covers HTTP exposure.
type ServerConfig struct {
	Port int `yaml:"port"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Node: NodeConfig{Name: "node-1"},
		Storage: StorageConfig{
			DataDir:         "./data",
			WALSegmentBytes: 4 << 20,
			CompressRotated: true,
		},
		Server: ServerConfig{Port: 8080},
		Logger: LoggerConfig{Level: "INFO", JSON: false},
	}
}

// Load reads a YAML config from path. A missing file is not an error: the
// default config is returned instead.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("config file not found, using default config", "path", path)
			return Default(), nil
		}
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
