package config

import "time"

// ProviderConfig defines how to reach a model provider. Providers are separate
// from agents: several agents can share one provider and its circuit breaker.
type ProviderConfig struct {
	Type       string `mapstructure:"type"`    // "claude", "anthropic" or "bedrock"
	Command    string `mapstructure:"command"` // CLI binary for type claude
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"` // ${VAR} references are expanded
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
}

// CapabilityConfig is one capability an agent advertises.
type CapabilityConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// AgentConfig defines one agent and the provider it runs on.
type AgentConfig struct {
	ID           string             `mapstructure:"id"`
	Name         string             `mapstructure:"name"`
	Description  string             `mapstructure:"description"`
	Role         string             `mapstructure:"role"`     // "orchestrator" or "specialist"
	Provider     string             `mapstructure:"provider"` // key into Providers
	Model        string             `mapstructure:"model"`    // overrides the provider model
	SystemPrompt string             `mapstructure:"system_prompt"`
	Capabilities []CapabilityConfig `mapstructure:"capabilities"`
}

// EngineConfig tunes orchestration.
type EngineConfig struct {
	MaxConcurrency    int           `mapstructure:"max_concurrency"` // 0 = unbounded
	InvocationTimeout time.Duration `mapstructure:"invocation_timeout"`
	PromptsDir        string        `mapstructure:"prompts_dir"`
	WatchPrompts      bool          `mapstructure:"watch_prompts"`
	KeepSessions      bool          `mapstructure:"keep_sessions"`
}

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	MaxFailures      uint32        `mapstructure:"max_failures"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

// ArchiveConfig controls the session history database.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the top-level configuration.
type Config struct {
	OrchestratorAgent string                    `mapstructure:"orchestrator_agent"`
	Providers         map[string]ProviderConfig `mapstructure:"providers"`
	Agents            []AgentConfig             `mapstructure:"agents"`
	Engine            EngineConfig              `mapstructure:"engine"`
	Breaker           BreakerConfig             `mapstructure:"breaker"`
	Archive           ArchiveConfig             `mapstructure:"archive"`
	Log               LogConfig                 `mapstructure:"log"`
}

// Agent returns the agent with id.
func (c *Config) Agent(id string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentConfig{}, false
}
