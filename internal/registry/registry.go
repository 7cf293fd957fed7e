// Package registry holds the live, hot-reloadable view of tools,
// prompts, and server metadata derived from internal/config, and
// evaluates guard predicates against the process's current settings.
package registry

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tombee/odoo-mcp/internal/config"
)

// Tool is a guard-resolved tool descriptor plus its compiled guards,
// ready for per-call visibility checks.
type Tool struct {
	Descriptor config.ToolDescriptor
	guards     []*guard
}

// Prompt is a guard-free prompt descriptor (prompts carry no guards in
// this spec, but the type mirrors Tool for symmetry and future growth).
type Prompt struct {
	Descriptor config.PromptDescriptor
}

// snapshot is the immutable value swapped atomically on every reload.
type snapshot struct {
	tools   []Tool
	prompts []Prompt
	server  config.ServerMetadata
	byName  map[string]int // tool name -> index into tools
}

// Registry exposes the current configuration snapshot to callers under
// a lock-free read path: Lookup/List read an atomic pointer, Reload
// rebuilds a fresh snapshot and swaps it in. It implements
// configwatcher.Reloader.
type Registry struct {
	store    *config.Store
	logger   *slog.Logger
	current  atomic.Pointer[snapshot]
	settings func() map[string]string
}

// New builds a Registry backed by store and performs an initial load.
func New(store *config.Store, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{store: store, logger: logger, settings: config.LiveSettings}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads all configuration documents and swaps in a new
// snapshot. It satisfies configwatcher.Reloader; errors are logged
// rather than propagated since there is no caller to return them to
// from a filesystem event, and the previous snapshot remains active.
func (r *Registry) Reload() {
	if err := r.reload(); err != nil {
		r.logger.Error("registry reload failed, keeping previous snapshot", "error", err)
	}
}

func (r *Registry) reload() error {
	toolsDoc, err := r.store.LoadTools()
	if err != nil {
		return fmt.Errorf("registry: load tools: %w", err)
	}
	promptsDoc, err := r.store.LoadPrompts()
	if err != nil {
		return fmt.Errorf("registry: load prompts: %w", err)
	}
	serverDoc, err := r.store.LoadServer()
	if err != nil {
		return fmt.Errorf("registry: load server: %w", err)
	}

	tools := make([]Tool, 0, len(toolsDoc.Tools))
	byName := make(map[string]int, len(toolsDoc.Tools))
	for _, td := range toolsDoc.Tools {
		guards := make([]*guard, 0, len(td.Guards))
		for _, raw := range td.Guards {
			g, err := compileGuard(raw)
			if err != nil {
				return fmt.Errorf("registry: tool %q: %w", td.Name, err)
			}
			guards = append(guards, g)
		}
		byName[td.Name] = len(tools)
		tools = append(tools, Tool{Descriptor: td, guards: guards})
	}

	prompts := make([]Prompt, 0, len(promptsDoc.Prompts))
	for _, pd := range promptsDoc.Prompts {
		prompts = append(prompts, Prompt{Descriptor: pd})
	}

	snap := &snapshot{tools: tools, prompts: prompts, server: *serverDoc, byName: byName}
	r.current.Store(snap)
	r.logger.Debug("registry reloaded", "tools", len(tools), "prompts", len(prompts))
	return nil
}

// ListTools returns every tool whose guards currently pass, in
// declared order, per §4.3's "guards evaluated per call" rule.
func (r *Registry) ListTools() ([]config.ToolDescriptor, error) {
	snap := r.current.Load()
	settings := r.settings()
	out := make([]config.ToolDescriptor, 0, len(snap.tools))
	for _, t := range snap.tools {
		visible, err := evalAll(t.guards, settings)
		if err != nil {
			return nil, err
		}
		if visible {
			out = append(out, t.Descriptor)
		}
	}
	return out, nil
}

// ErrToolNotFound is returned by LookupTool for an unknown or
// currently-guarded-off tool name (§7's ToolNotFound kind).
var ErrToolNotFound = fmt.Errorf("tool not found")

// LookupTool returns the tool descriptor for name if it exists and its
// guards currently pass, evaluated against a fresh settings snapshot.
func (r *Registry) LookupTool(name string) (config.ToolDescriptor, error) {
	snap := r.current.Load()
	idx, ok := snap.byName[name]
	if !ok {
		return config.ToolDescriptor{}, ErrToolNotFound
	}
	t := snap.tools[idx]
	visible, err := evalAll(t.guards, r.settings())
	if err != nil {
		return config.ToolDescriptor{}, err
	}
	if !visible {
		return config.ToolDescriptor{}, ErrToolNotFound
	}
	return t.Descriptor, nil
}

// ListPrompts returns every configured prompt.
func (r *Registry) ListPrompts() []config.PromptDescriptor {
	snap := r.current.Load()
	out := make([]config.PromptDescriptor, len(snap.prompts))
	for i, p := range snap.prompts {
		out[i] = p.Descriptor
	}
	return out
}

// ErrPromptNotFound is returned by LookupPrompt for an unknown name.
var ErrPromptNotFound = fmt.Errorf("prompt not found")

// LookupPrompt returns the named prompt descriptor.
func (r *Registry) LookupPrompt(name string) (config.PromptDescriptor, error) {
	snap := r.current.Load()
	for _, p := range snap.prompts {
		if p.Descriptor.Name == name {
			return p.Descriptor, nil
		}
	}
	return config.PromptDescriptor{}, ErrPromptNotFound
}

// ServerMetadata returns the current server metadata document.
func (r *Registry) ServerMetadata() config.ServerMetadata {
	return r.current.Load().server
}
