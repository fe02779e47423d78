package config

import (
	"fmt"
	"io"
	"os"

	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoadConfigFromFile reads a YAML file and then applies environment overrides
// on top of it. Keys follow the yaml tags of Config.
func LoadConfigFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("configuration file not found: %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return load(v)
}

// Redacted returns a copy of cfg with credentials masked.
func (c Config) Redacted() Config {
	out := c
	out.Server.APIKey = logger.MaskAPIKey(c.Server.APIKey)
	if c.Redis.Password != "" {
		out.Redis.Password = "***"
	}
	if c.Archive.SecretAccessKey != "" {
		out.Archive.SecretAccessKey = "***"
	}
	out.Archive.AccessKeyID = logger.MaskSensitiveString(c.Archive.AccessKeyID, 4, 2)
	return out
}

// WriteYAML writes the effective configuration, with secrets masked, to w.
func WriteYAML(cfg *Config, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
