package annotator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/varanno/model"
)

// ErrAnnotator matches every annotator failure.
var ErrAnnotator = errors.New("annotator error")

// Annotator computes annotations for batches of variants. Implementations
// must be safe for sequential use from one goroutine and must not retain the
// input slice.
type Annotator interface {
	// Identity names the annotator, its version and data release.
	Identity() model.Identity
	// Annotate returns exactly one slot per variant, in input order. A nil
	// slot means no annotation is available for that variant. The caller
	// takes ownership of the returned payloads.
	Annotate(ctx context.Context, variants []model.VariantKey) ([]*model.Payload, error)
}

// Error is an annotator failure (configuration, network or computation).
type Error struct {
	Annotator string
	Err       error
}

func (e *Error) Error() string {
	if e.Annotator == "" {
		return "annotator: " + e.Err.Error()
	}
	return fmt.Sprintf("annotator %s: %v", e.Annotator, e.Err)
}

// Unwrap returns ErrAnnotator and the cause.
func (e *Error) Unwrap() []error {
	return []error{ErrAnnotator, e.Err}
}

// Wrap turns err into an *Error unless it already is one. Wrap returns nil
// for a nil err.
func Wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Annotator: name, Err: err}
}

// Errorf formats an *Error.
func Errorf(name, format string, args ...any) error {
	return &Error{Annotator: name, Err: fmt.Errorf(format, args...)}
}

// Config selects and parameterizes an annotator.
type Config struct {
	// Engine is the registry tag, e.g. "dummy" or "cellbase".
	Engine      string `json:"engine" mapstructure:"engine" yaml:"engine" validate:"required"`
	Name        string `json:"name,omitempty" mapstructure:"name" yaml:"name"`
	Version     string `json:"version,omitempty" mapstructure:"version" yaml:"version"`
	DataRelease int    `json:"dataRelease,omitempty" mapstructure:"data_release" yaml:"data_release" validate:"gte=0"`
	// Extensions lists the private source tags applied after the engine,
	// e.g. "hgmd" or "cosmic".
	Extensions []string `json:"extensions,omitempty" mapstructure:"extensions" yaml:"extensions"`
	// Options holds engine and extension specific settings.
	Options map[string]string `json:"options,omitempty" mapstructure:"options" yaml:"options"`
}

// String returns the option value for key, or def.
func (c Config) String(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Int returns the integer option for key, or def.
func (c Config) Int(key string, def int) (int, error) {
	v, ok := c.Options[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return n, nil
}

// Bool returns the boolean option for key, or def.
func (c Config) Bool(key string, def bool) (bool, error) {
	v, ok := c.Options[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("option %s: %w", key, err)
	}
	return b, nil
}

// List returns the comma separated option for key.
func (c Config) List(key string) []string {
	v := c.Options[key]
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Check validates the result of an Annotate call against its input.
func Check(a Annotator, variants []model.VariantKey, payloads []*model.Payload) error {
	if len(payloads) != len(variants) {
		return Errorf(a.Identity().Name, "returned %d payloads for %d variants", len(payloads), len(variants))
	}
	return nil
}
