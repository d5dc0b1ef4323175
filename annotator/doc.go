// Package annotator defines the pluggable annotation computation.
//
// An Annotator turns a batch of variant keys into one payload per key, in
// input order. A nil payload marks a variant the annotator has no annotation
// for; the engine counts it as skipped. Any failure is reported as an *Error,
// which matches ErrAnnotator with errors.Is.
//
// Implementations are selected by a configuration tag through a Registry:
//
//	reg := annotator.DefaultRegistry()
//	a, err := reg.Build(annotator.Config{Engine: "dummy", Name: "k1", Version: "v1"})
//
// The default registry knows the "dummy" test annotator, the "cellbase"
// REST client and the "file" importer of precomputed payloads.
//
// Extensions add private sources on top of any engine. Config.Extensions
// selects them by tag ("hgmd", "cosmic") and the resulting identity records
// them, so changing the private sources requires an overwrite like any other
// annotator change.
package annotator
