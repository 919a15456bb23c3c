package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/agentorch/internal/agents"
	"github.com/aristath/agentorch/internal/analyzer"
	"github.com/aristath/agentorch/internal/backend"
	"github.com/aristath/agentorch/internal/chat"
	"github.com/aristath/agentorch/internal/config"
	"github.com/aristath/agentorch/internal/delegate"
	"github.com/aristath/agentorch/internal/events"
	"github.com/aristath/agentorch/internal/execution"
	"github.com/aristath/agentorch/internal/persistence"
	"github.com/aristath/agentorch/internal/prompts"
	"github.com/aristath/agentorch/internal/selector"
	"github.com/aristath/agentorch/internal/session"
	"github.com/aristath/agentorch/internal/synthesis"
)

// BackendFactory creates the backend serving one provider and model.
type BackendFactory func(cfg backend.Config) (backend.Backend, error)

// Options tune Build beyond what the configuration file holds.
type Options struct {
	ProcessManager *backend.ProcessManager // nil creates one
	Bus            *events.EventBus        // nil creates one
	BackendFactory BackendFactory          // nil uses backend.New
	Archive        persistence.Archive     // overrides cfg.Archive when set
}

// System is every component of a configured orchestrator.
type System struct {
	Engine    *Engine
	Execution *execution.Manager
	Directory *agents.StaticDirectory
	Delegate  *delegate.Tool
	Prompts   *prompts.TemplateLoader
	Bus       *events.EventBus
	Archive   persistence.Archive // nil when history is disabled
	Processes *backend.ProcessManager

	executor *chat.BackendExecutor
}

// Build validates cfg and wires the components it describes.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pm := opts.ProcessManager
	if pm == nil {
		pm = backend.NewProcessManager()
	}
	factory := opts.BackendFactory
	if factory == nil {
		factory = func(bc backend.Config) (backend.Backend, error) { return backend.New(bc, pm) }
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewEventBus()
	}

	dir, err := Directory(cfg)
	if err != nil {
		return nil, err
	}

	exec := chat.NewBackendExecutor(chat.NewBreakerRegistry(breakerSettings(cfg.Breaker)))
	if err := registerRoutes(exec, cfg, factory); err != nil {
		exec.Close()
		return nil, err
	}

	archive := opts.Archive
	if archive == nil && cfg.Archive.Enabled {
		path := cfg.Archive.Path
		if path == "" {
			path = config.DefaultArchivePath()
		}
		a, err := persistence.NewSQLiteArchive(ctx, path)
		if err != nil {
			exec.Close()
			return nil, fmt.Errorf("opening history archive: %w", err)
		}
		archive = a
	}

	loader := prompts.NewTemplateLoader(cfg.Engine.PromptsDir)
	sel := selector.New(dir)
	tracker := execution.NewTracker()
	mgr := execution.NewManager(execution.Config{
		Executor:       exec,
		Prompts:        loader,
		Agents:         sel,
		Tracker:        tracker,
		Events:         bus,
		MaxConcurrency: cfg.Engine.MaxConcurrency,
	})

	engine := NewEngine(EngineConfig{
		Sessions:            session.NewManager(),
		Analyzer:            analyzer.New(mgr, loader, sel),
		Selector:            sel,
		Execution:           mgr,
		Synthesizer:         synthesis.New(mgr, loader, sel),
		Archive:             archive,
		Events:              bus,
		OrchestratorAgentID: cfg.OrchestratorAgent,
		KeepSessions:        cfg.Engine.KeepSessions,
	})

	tool := delegate.New(dir, tracker, mgr)
	exec.SetTools(tool)

	return &System{
		Engine:    engine,
		Execution: mgr,
		Directory: dir,
		Delegate:  tool,
		Prompts:   loader,
		Bus:       bus,
		Archive:   archive,
		Processes: pm,
		executor:  exec,
	}, nil
}

// Close kills leftover agent processes and releases backends and the archive.
func (s *System) Close() error {
	errs := []error{s.Processes.KillAll(), s.executor.Close()}
	if s.Archive != nil {
		errs = append(errs, s.Archive.Close())
	}
	s.Bus.Close()
	return errors.Join(errs...)
}

// Directory builds the agent directory in configuration order.
func Directory(cfg *config.Config) (*agents.StaticDirectory, error) {
	defs := make([]agents.Definition, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		caps := make([]agents.Capability, 0, len(a.Capabilities))
		for _, c := range a.Capabilities {
			caps = append(caps, agents.Capability{ID: c.ID, Name: c.Name, Description: c.Description})
		}
		name := a.Name
		if name == "" {
			name = a.ID
		}
		defs = append(defs, agents.Definition{
			ID:           a.ID,
			Name:         name,
			Description:  a.Description,
			Role:         agents.Role(a.Role),
			Capabilities: caps,
		})
	}
	return agents.NewStaticDirectory(defs...)
}

// registerRoutes creates one backend per distinct provider and model pair
// and routes every agent to it.
func registerRoutes(exec *chat.BackendExecutor, cfg *config.Config, factory BackendFactory) error {
	type key struct{ provider, model string }
	backends := make(map[key]backend.Backend)

	for _, a := range cfg.Agents {
		p := cfg.Providers[a.Provider]
		model := a.Model
		if model == "" {
			model = p.Model
		}

		k := key{a.Provider, model}
		b, ok := backends[k]
		if !ok {
			var err error
			b, err = factory(backend.Config{
				Type:       p.Type,
				Model:      model,
				MaxTokens:  p.MaxTokens,
				Command:    p.Command,
				APIKey:     p.APIKey,
				AWSRegion:  p.AWSRegion,
				AWSProfile: p.AWSProfile,
			})
			if err != nil {
				return fmt.Errorf("creating backend for provider %q: %w", a.Provider, err)
			}
			backends[k] = b
		}

		exec.Register(a.ID, chat.Route{
			Provider:     a.Provider,
			Backend:      b,
			SystemPrompt: a.SystemPrompt,
			Timeout:      cfg.Engine.InvocationTimeout,
		})
	}
	return nil
}

func breakerSettings(c config.BreakerConfig) chat.BreakerSettings {
	s := chat.DefaultBreakerSettings()
	if c.MaxFailures > 0 {
		s.ConsecutiveFailures = c.MaxFailures
	}
	if c.OpenTimeout > 0 {
		s.OpenTimeout = c.OpenTimeout
	}
	if c.HalfOpenRequests > 0 {
		s.HalfOpenRequests = c.HalfOpenRequests
	}
	return s
}
