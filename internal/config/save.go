package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("orchestrator_agent", cfg.OrchestratorAgent)

	providers := make(map[string]any, len(cfg.Providers))
	for name, p := range cfg.Providers {
		providers[name] = map[string]any{
			"type":        p.Type,
			"command":     p.Command,
			"model":       p.Model,
			"api_key":     p.APIKey,
			"aws_region":  p.AWSRegion,
			"aws_profile": p.AWSProfile,
			"max_tokens":  p.MaxTokens,
		}
	}
	v.Set("providers", providers)

	agentList := make([]map[string]any, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		caps := make([]map[string]any, 0, len(a.Capabilities))
		for _, c := range a.Capabilities {
			caps = append(caps, map[string]any{"id": c.ID, "name": c.Name, "description": c.Description})
		}
		agentList = append(agentList, map[string]any{
			"id":            a.ID,
			"name":          a.Name,
			"description":   a.Description,
			"role":          a.Role,
			"provider":      a.Provider,
			"model":         a.Model,
			"system_prompt": a.SystemPrompt,
			"capabilities":  caps,
		})
	}
	v.Set("agents", agentList)

	v.Set("engine.max_concurrency", cfg.Engine.MaxConcurrency)
	v.Set("engine.invocation_timeout", cfg.Engine.InvocationTimeout.String())
	v.Set("engine.prompts_dir", cfg.Engine.PromptsDir)
	v.Set("engine.watch_prompts", cfg.Engine.WatchPrompts)
	v.Set("engine.keep_sessions", cfg.Engine.KeepSessions)

	v.Set("breaker.max_failures", cfg.Breaker.MaxFailures)
	v.Set("breaker.open_timeout", cfg.Breaker.OpenTimeout.String())
	v.Set("breaker.half_open_requests", cfg.Breaker.HalfOpenRequests)

	v.Set("archive.enabled", cfg.Archive.Enabled)
	v.Set("archive.path", cfg.Archive.Path)

	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
