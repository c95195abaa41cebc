package logger

import (
	"fmt"
	"slices"
)

// Config contains logging configuration.
type Config struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	Output    string `yaml:"output" mapstructure:"output"`
	NoColor   bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller    bool   `yaml:"caller" mapstructure:"caller"`
}

// ApplyDefaults applies default values to logging configuration.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	c.Timestamp = true
}

// Validate validates logging configuration.
func (c *Config) Validate() error {
	levels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	if !slices.Contains(levels, c.Level) {
		return fmt.Errorf("logging.level must be one of %v (got: %s)", levels, c.Level)
	}
	formats := []string{FormatJSON, FormatConsole}
	if !slices.Contains(formats, c.Format) {
		return fmt.Errorf("logging.format must be one of %v (got: %s)", formats, c.Format)
	}
	return nil
}
