package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Model.BaseURL != DefaultModelBaseURL {
		t.Errorf("Model.BaseURL = %q, want %q", cfg.Model.BaseURL, DefaultModelBaseURL)
	}
	if cfg.Model.ID != DefaultModelID {
		t.Errorf("Model.ID = %q, want %q", cfg.Model.ID, DefaultModelID)
	}
	if cfg.Servers == nil {
		t.Error("Servers map is nil, want empty map")
	}
}

func TestLoadFromParsesServers(t *testing.T) {
	path := writeConfig(t, `
default_enabled_servers = ["hsa_ledger"]

[model]
id = "test/model"

[servers.receipts]
name = "Receipt Tools"
command = ["python", "-m", "receipts.server"]
dir = "/opt/receipts"
default_enabled = true
tools = ["parse_receipt"]
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Model.ID != "test/model" {
		t.Errorf("Model.ID = %q, want %q", cfg.Model.ID, "test/model")
	}
	if cfg.Model.BaseURL != DefaultModelBaseURL {
		t.Errorf("Model.BaseURL = %q, want default %q", cfg.Model.BaseURL, DefaultModelBaseURL)
	}
	srv, ok := cfg.Servers["receipts"]
	if !ok {
		t.Fatalf("Servers[%q] missing, have %v", "receipts", cfg.Servers)
	}
	if len(srv.Command) != 3 || srv.Command[0] != "python" {
		t.Errorf("Command = %v, want [python -m receipts.server]", srv.Command)
	}
	if !srv.DefaultEnabled {
		t.Error("DefaultEnabled = false, want true")
	}
	if len(cfg.DefaultEnabledServers) != 1 || cfg.DefaultEnabledServers[0] != "hsa_ledger" {
		t.Errorf("DefaultEnabledServers = %v, want [hsa_ledger]", cfg.DefaultEnabledServers)
	}
}

func TestLoadFromExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-12345")
	t.Setenv("TEST_TOOLS_DIR", "/srv/tools")

	path := writeConfig(t, `
[model]
api_key = "${TEST_API_KEY}"

[servers.custom]
command = ["${TEST_TOOLS_DIR}/bin/serve"]
dir = "${TEST_TOOLS_DIR}"
tools = ["x"]
[servers.custom.env]
TOKEN = "${TEST_API_KEY}"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Model.APIKey != "sk-12345" {
		t.Errorf("Model.APIKey = %q, want %q", cfg.Model.APIKey, "sk-12345")
	}
	srv := cfg.Servers["custom"]
	if srv.Dir != "/srv/tools" {
		t.Errorf("Dir = %q, want %q", srv.Dir, "/srv/tools")
	}
	if srv.Command[0] != "/srv/tools/bin/serve" {
		t.Errorf("Command[0] = %q, want %q", srv.Command[0], "/srv/tools/bin/serve")
	}
	if srv.Env["TOKEN"] != "sk-12345" {
		t.Errorf("Env[TOKEN] = %q, want %q", srv.Env["TOKEN"], "sk-12345")
	}
}

func TestLoadFromLeavesUnknownEnvVars(t *testing.T) {
	path := writeConfig(t, `
[model]
api_key = "${DEFINITELY_NOT_SET_ANYWHERE_XYZ}"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Model.APIKey != "${DEFINITELY_NOT_SET_ANYWHERE_XYZ}" {
		t.Errorf("Model.APIKey = %q, want unresolved placeholder", cfg.Model.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				Model: ModelConfig{BaseURL: "https://api.example.com/v1", RequestTimeout: "90s"},
				Servers: map[string]ServerConfig{
					"good": {Command: []string{"serve"}, Tools: []string{"t"}},
				},
			},
		},
		{
			name:    "bad base url",
			cfg:     Config{Model: ModelConfig{BaseURL: "not a url"}},
			wantErr: true,
		},
		{
			name:    "bad timeout",
			cfg:     Config{Model: ModelConfig{RequestTimeout: "ninety seconds"}},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			cfg:     Config{Model: ModelConfig{RequestTimeout: "-5s"}},
			wantErr: true,
		},
		{
			name: "server missing command",
			cfg: Config{Servers: map[string]ServerConfig{
				"bad": {Tools: []string{"t"}},
			}},
			wantErr: true,
		},
		{
			name: "server missing tools",
			cfg: Config{Servers: map[string]ServerConfig{
				"bad": {Command: []string{"serve"}},
			}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
