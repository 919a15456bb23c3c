package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "agentorch"

// DefaultArchivePath is where session history is kept unless configured.
func DefaultArchivePath() string {
	return filepath.Join(xdg.DataHome, appName, "history.db")
}

// setDefaults registers the built-in configuration: one claude CLI provider,
// an orchestrator and three specialists.
func setDefaults(v *viper.Viper) {
	v.SetDefault("orchestrator_agent", "orchestrator")

	v.SetDefault("providers", map[string]any{
		"claude": map[string]any{
			"type":    "claude",
			"command": "claude",
		},
	})

	v.SetDefault("agents", []map[string]any{
		{
			"id":            "orchestrator",
			"name":          "Orchestrator",
			"description":   "Plans work, delegates it and merges the results.",
			"role":          "orchestrator",
			"provider":      "claude",
			"system_prompt": "You coordinate task planning and agent workflows.",
		},
		{
			"id":            "coder",
			"name":          "Coder",
			"description":   "Implements features and writes production code.",
			"role":          "specialist",
			"provider":      "claude",
			"system_prompt": "You implement features and write production code.",
			"capabilities": []map[string]any{
				{"id": "code", "name": "Code", "description": "writes and modifies source code"},
				{"id": "debug", "name": "Debugging", "description": "finds and fixes defects"},
			},
		},
		{
			"id":            "reviewer",
			"name":          "Reviewer",
			"description":   "Reviews changes for correctness and style.",
			"role":          "specialist",
			"provider":      "claude",
			"system_prompt": "You review code for correctness, style, and best practices.",
			"capabilities": []map[string]any{
				{"id": "review", "name": "Code review", "description": "reviews code for correctness"},
			},
		},
		{
			"id":            "researcher",
			"name":          "Researcher",
			"description":   "Gathers and summarises information.",
			"role":          "specialist",
			"provider":      "claude",
			"system_prompt": "You research topics and report concise findings.",
			"capabilities": []map[string]any{
				{"id": "research", "name": "Research", "description": "collects facts and sources"},
				{"id": "writing", "name": "Writing", "description": "drafts prose and summaries"},
			},
		},
	})

	v.SetDefault("engine.max_concurrency", 0)
	v.SetDefault("engine.invocation_timeout", "10m")
	v.SetDefault("engine.prompts_dir", "")
	v.SetDefault("engine.watch_prompts", false)
	v.SetDefault("engine.keep_sessions", false)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", "30s")
	v.SetDefault("breaker.half_open_requests", 3)

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.path", DefaultArchivePath())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// DefaultConfig returns the built-in configuration without reading any file.
func DefaultConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}
