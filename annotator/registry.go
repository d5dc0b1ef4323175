package annotator

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownEngine is returned by Build for an unregistered engine tag.
var ErrUnknownEngine = errors.New("unknown annotator engine")

// Factory builds an annotator from its configuration.
type Factory func(cfg Config) (Annotator, error)

// Registry maps engine and extension tags to factories. It is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	extensions map[string]ExtensionFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories:  make(map[string]Factory),
		extensions: make(map[string]ExtensionFactory),
	}
}

// DefaultRegistry returns a new registry holding the built-in engines and
// extensions.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(EngineDummy, NewDummyFromConfig)
	r.Register(EngineCellBase, NewCellBaseFromConfig)
	r.Register(EngineFile, NewFileFromConfig)
	r.RegisterExtension(ExtensionHGMD, NewEvidenceFactory(ExtensionHGMD))
	r.RegisterExtension(ExtensionCOSMIC, NewEvidenceFactory(ExtensionCOSMIC))
	return r
}

// RegisterExtension adds or replaces the factory for an extension tag.
func (r *Registry) RegisterExtension(name string, f ExtensionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions[name] = f
}

// Extensions returns the registered extension tags in lexical order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.extensions))
	for k := range r.extensions {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Register adds or replaces the factory for engine.
func (r *Registry) Register(engine string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[engine] = f
}

// Engines returns the registered tags in lexical order.
func (r *Registry) Engines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Build instantiates the annotator selected by cfg.Engine, extended by
// cfg.Extensions. Every failure is an *Error.
func (r *Registry) Build(cfg Config) (Annotator, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Engine]
	r.mu.RUnlock()

	if !ok {
		return nil, &Error{Annotator: cfg.Engine, Err: fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)}
	}
	a, err := f(cfg)
	if err != nil {
		return nil, Wrap(cfg.Engine, err)
	}
	if len(cfg.Extensions) == 0 {
		return a, nil
	}
	exts, err := r.buildExtensions(cfg)
	if err != nil {
		return nil, Wrap(cfg.Engine, err)
	}
	return Extend(a, exts...), nil
}
