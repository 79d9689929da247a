package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Token      *Token      `yaml:"token"`
	Connection *Connection `yaml:"connection"`
	Call       *Call       `yaml:"call"`
}

// loadFile overlays the tunables found in a YAML file onto c. Secrets are
// never read from the file.
func loadFile(path string, c *mainConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	parsed := fileConfig{
		Token:      &c.Token,
		Connection: &c.Connection,
		Call:       &c.Call,
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
