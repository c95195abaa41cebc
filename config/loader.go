package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts the file lookups the loader performs.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

type osFileSystem struct{}

func (osFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (osFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds loader dependencies and explicit file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	Defaults   map[string]any
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithDefaults registers viper defaults, keyed by dotted path.
func WithDefaults(defaults map[string]any) LoaderOption {
	return func(lc *LoaderConfig) { lc.Defaults = defaults }
}

// LoadConfig loads configuration for serviceName into cfg.
// Precedence, lowest first: defaults, config file, .env, process environment.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: osFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}

	if lc.ConfigFile == "" {
		lc.ConfigFile = firstExisting(lc.FileSystem, configSearchPaths(serviceName))
	}
	if lc.EnvFile == "" {
		lc.EnvFile = firstExisting(lc.FileSystem, envSearchPaths(serviceName))
	}

	v := viper.New()
	for k, val := range lc.Defaults {
		v.SetDefault(k, val)
	}

	if lc.ConfigFile != "" && lc.FileSystem.Exists(lc.ConfigFile) {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", lc.ConfigFile, err)
		}
	}

	if lc.EnvFile != "" && lc.FileSystem.Exists(lc.EnvFile) {
		if err := lc.FileSystem.LoadEnv(lc.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", lc.EnvFile, err)
		}
	}

	bindEnvironment(v, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}
	return nil
}

func configSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../../cmd/%s/config.yml", serviceName),
		"./config/config.yml",
		"./config.yml",
	}
}

func envSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/.env", serviceName),
		fmt.Sprintf("../cmd/%s/.env", serviceName),
		fmt.Sprintf(".env.%s", serviceName),
		".env",
	}
}

func firstExisting(fs FileSystem, paths []string) string {
	for _, p := range paths {
		if fs.Exists(p) {
			return p
		}
	}
	return ""
}

// bindEnvironment sets every environment variable under each dotted key it
// could address, so nested keys such as upstreams.defaults.max_attempts are
// reachable from UPSTREAMS_DEFAULTS_MAX_ATTEMPTS without declaring them first.
func bindEnvironment(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		for _, variant := range keyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// keyVariants returns every way of joining the underscore separated parts of
// an env key with either "." or "_". Keys with many parts only get the flat
// and fully dotted forms.
func keyVariants(envKey string) []string {
	parts := strings.Split(strings.ToLower(envKey), "_")
	if len(parts) == 1 {
		return parts
	}
	if len(parts) > 6 {
		return []string{strings.Join(parts, "_"), strings.Join(parts, ".")}
	}

	n := len(parts) - 1
	variants := make([]string, 0, 1<<n)
	for mask := 0; mask < 1<<n; mask++ {
		var b strings.Builder
		b.WriteString(parts[0])
		for i := 1; i < len(parts); i++ {
			if mask&(1<<(i-1)) != 0 {
				b.WriteByte('.')
			} else {
				b.WriteByte('_')
			}
			b.WriteString(parts[i])
		}
		variants = append(variants, b.String())
	}
	return variants
}
