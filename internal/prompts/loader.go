// Package prompts loads named prompt templates and fills their placeholders.
package prompts

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/aristath/agentorch/internal/observability"
)

// Template names.
const (
	TaskAnalysis      = "task-analysis"
	TaskDecomposition = "task-decomposition"
	SubtaskExecution  = "subtask-execution"
	ResultSynthesis   = "result-synthesis"
)

// Placeholder keys.
const (
	KeyQuery             = "query"
	KeyOriginalQuery     = "originalQuery"
	KeyAvailableAgents   = "availableAgents"
	KeyAnalysis          = "analysis"
	KeyTaskDescription   = "taskDescription"
	KeyDependencyContext = "dependencyContext"
	KeyResults           = "results"
)

const templateExt = ".md"

//go:embed templates/*.md
var embedded embed.FS

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Loader loads a template and substitutes placeholders. It never fails:
// an unusable template yields a short fallback text.
type Loader interface {
	Load(name string, replacements map[string]string) string
}

// TemplateLoader serves templates from an override directory first and the
// embedded defaults second. Raw templates are cached until the directory
// changes.
type TemplateLoader struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]string
}

// NewTemplateLoader creates a loader. dir may be empty to use only the
// embedded templates.
func NewTemplateLoader(dir string) *TemplateLoader {
	return &TemplateLoader{
		dir:   dir,
		cache: make(map[string]string),
	}
}

// FallbackText is returned when a template cannot be loaded.
func FallbackText(name string) string {
	return fmt.Sprintf("Unable to load prompt template %q.", name)
}

func (l *TemplateLoader) Load(name string, replacements map[string]string) string {
	raw, err := l.raw(name)
	if err != nil {
		observability.Fallback(context.Background(), "prompt_load", err.Error(), "template", name)
		return FallbackText(name)
	}
	return Render(raw, replacements)
}

// Render substitutes {{key}} placeholders. Keys without a replacement stay
// as literal tokens. Substituted values are not scanned again.
func Render(tmpl string, replacements map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(tok string) string {
		key := placeholder.FindStringSubmatch(tok)[1]
		if v, ok := replacements[key]; ok {
			return v
		}
		return tok
	})
}

func (l *TemplateLoader) raw(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid template name %q", name)
	}

	l.mu.RLock()
	cached, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	text, err := l.read(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("template %q is empty", name)
	}

	l.mu.Lock()
	l.cache[name] = text
	l.mu.Unlock()
	return text, nil
}

func (l *TemplateLoader) read(name string) (string, error) {
	if l.dir != "" {
		data, err := os.ReadFile(filepath.Join(l.dir, name+templateExt))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("reading template %q: %w", name, err)
		}
	}

	data, err := embedded.ReadFile("templates/" + name + templateExt)
	if err != nil {
		return "", fmt.Errorf("template %q not found", name)
	}
	return string(data), nil
}

// Invalidate drops cached templates. An empty name clears everything.
func (l *TemplateLoader) Invalidate(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if name == "" {
		clear(l.cache)
		return
	}
	delete(l.cache, name)
}

// Watch invalidates cached templates whenever a file in the override
// directory changes. It blocks until ctx is done.
func (l *TemplateLoader) Watch(ctx context.Context) error {
	if l.dir == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating template watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watching %s: %w", l.dir, err)
	}

	log := observability.WithFields("component", "prompts", "dir", l.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(ev.Name)
			if !strings.HasSuffix(base, templateExt) {
				continue
			}
			name := strings.TrimSuffix(base, templateExt)
			l.Invalidate(name)
			log.Debug("template changed", "template", name, "op", ev.Op.String())
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("template watcher error", "error", werr)
		}
	}
}
