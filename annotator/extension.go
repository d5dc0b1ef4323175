package annotator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/varanno/model"
)

// ErrUnknownExtension is returned by Build for an unregistered extension tag.
var ErrUnknownExtension = errors.New("unknown annotator extension")

// Extension adds data from a private source to the payloads of a batch.
// Apply receives the batch keys and the annotator output slot by slot; it
// must skip nil slots and must not change payload keys.
type Extension interface {
	Name() string
	Apply(ctx context.Context, variants []model.VariantKey, payloads []*model.Payload) error
}

// ExtensionFactory builds an extension from the annotator configuration.
type ExtensionFactory func(cfg Config) (Extension, error)

// Extended is an annotator followed by its extensions.
type Extended struct {
	base     Annotator
	exts     []Extension
	identity model.Identity
}

// Extend returns a that runs exts in order after every batch. The identity
// records the extension names, so switching private sources is an
// annotator change.
func Extend(a Annotator, exts ...Extension) *Extended {
	names := make([]string, len(exts))
	for i, x := range exts {
		names[i] = x.Name()
	}
	id := a.Identity()
	id.Extensions = model.JoinExtensions(names)
	return &Extended{base: a, exts: exts, identity: id}
}

// Base returns the wrapped annotator.
func (e *Extended) Base() Annotator { return e.base }

// Identity implements Annotator.
func (e *Extended) Identity() model.Identity { return e.identity }

// Annotate implements Annotator.
func (e *Extended) Annotate(ctx context.Context, variants []model.VariantKey) ([]*model.Payload, error) {
	payloads, err := e.base.Annotate(ctx, variants)
	if err != nil {
		return nil, err
	}
	if err := Check(e.base, variants, payloads); err != nil {
		return nil, err
	}
	for _, x := range e.exts {
		if err := x.Apply(ctx, variants, payloads); err != nil {
			return nil, &Error{Annotator: e.identity.Name, Err: fmt.Errorf("extension %s: %w", x.Name(), err)}
		}
	}
	return payloads, nil
}

// buildExtensions instantiates cfg.Extensions in lexical order.
func (r *Registry) buildExtensions(cfg Config) ([]Extension, error) {
	names := slices.Clone(cfg.Extensions)
	slices.Sort(names)
	names = slices.Compact(names)

	out := make([]Extension, 0, len(names))
	for _, name := range names {
		r.mu.RLock()
		f, ok := r.extensions[name]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownExtension, name)
		}
		x, err := f(cfg)
		if err != nil {
			return nil, fmt.Errorf("extension %s: %w", name, err)
		}
		out = append(out, x)
	}
	return out, nil
}
