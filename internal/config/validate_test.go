package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		OrchestratorAgent: "orch",
		Providers: map[string]ProviderConfig{
			"cli": {Type: "claude", Command: "claude"},
		},
		Agents: []AgentConfig{
			{ID: "orch", Role: "orchestrator", Provider: "cli"},
			{ID: "coder", Provider: "cli"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "duplicate agent id",
			mutate:  func(c *Config) { c.Agents = append(c.Agents, AgentConfig{ID: "coder", Provider: "cli"}) },
			wantErr: `agent "coder": duplicate id`,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Agents[1].Provider = "nope" },
			wantErr: `unknown provider "nope"`,
		},
		{
			name:    "unknown role",
			mutate:  func(c *Config) { c.Agents[1].Role = "boss" },
			wantErr: `unknown role "boss"`,
		},
		{
			name:    "orchestrator missing",
			mutate:  func(c *Config) { c.OrchestratorAgent = "ghost" },
			wantErr: `"ghost" is not a configured agent`,
		},
		{
			name:    "orchestrator has wrong role",
			mutate:  func(c *Config) { c.OrchestratorAgent = "coder" },
			wantErr: "must have role orchestrator",
		},
		{
			name:    "unknown provider type",
			mutate:  func(c *Config) { c.Providers["cli"] = ProviderConfig{Type: "codex", Command: "codex"} },
			wantErr: `unknown type "codex"`,
		},
		{
			name:    "claude provider without command",
			mutate:  func(c *Config) { c.Providers["cli"] = ProviderConfig{Type: "claude"} },
			wantErr: "command is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
