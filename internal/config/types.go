package config

// Config is the top-level ledgerchat configuration.
type Config struct {
	Model                 ModelConfig             `toml:"model"`
	DefaultEnabledServers []string                `toml:"default_enabled_servers"`
	Servers               map[string]ServerConfig `toml:"servers"`
}

// ModelConfig describes the chat-completions endpoint used by the
// orchestration loop.
type ModelConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	ID             string `toml:"id"`
	RequestTimeout string `toml:"request_timeout"`
}

// ServerConfig describes a user-supplied tool server launched over stdio.
// Builtin servers are compiled in; these entries extend the registry.
type ServerConfig struct {
	Name           string            `toml:"name"`
	Description    string            `toml:"description"`
	Command        []string          `toml:"command"`
	Dir            string            `toml:"dir"`
	DefaultEnabled bool              `toml:"default_enabled"`
	Tools          []string          `toml:"tools"`
	Env            map[string]string `toml:"env"`
}
