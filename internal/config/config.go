package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/ledgerchat/ledgerchat/internal/paths"
)

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Defaults applied when the config file omits model settings.
const (
	DefaultModelBaseURL = "https://openrouter.ai/api/v1"
	DefaultModelID      = "anthropic/claude-sonnet-4.5"
)

// Load reads the config file and returns the parsed Config.
// If the config file does not exist, it returns a default Config (no error).
func Load() (*Config, error) {
	return LoadFrom(paths.ConfigFile())
}

// LoadFrom reads and parses a config file at the given path, expanding
// ${ENV_VAR} placeholders from the current process environment.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{Servers: make(map[string]ServerConfig)}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Servers == nil {
		cfg.Servers = make(map[string]ServerConfig)
	}
	applyDefaults(&cfg)
	expandConfigEnvVars(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = DefaultModelBaseURL
	}
	if cfg.Model.ID == "" {
		cfg.Model.ID = DefaultModelID
	}
}

func expandConfigEnvVars(cfg *Config) {
	cfg.Model.BaseURL = expandEnvVars(cfg.Model.BaseURL)
	cfg.Model.APIKey = expandEnvVars(cfg.Model.APIKey)
	cfg.Model.ID = expandEnvVars(cfg.Model.ID)

	for name, srv := range cfg.Servers {
		cfg.Servers[name] = expandServerEnvVars(srv)
	}
}

func expandServerEnvVars(srv ServerConfig) ServerConfig {
	srv.Dir = expandEnvVars(srv.Dir)
	for i := range srv.Command {
		srv.Command[i] = expandEnvVars(srv.Command[i])
	}
	for k, v := range srv.Env {
		srv.Env[k] = expandEnvVars(v)
	}
	return srv
}

// expandEnvVars replaces ${VAR_NAME} with the value of the environment
// variable, leaving unresolved placeholders as-is.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRe.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}
