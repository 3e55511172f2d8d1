// Package types holds the value types shared by the splitbundle packages.
package types

// OutputKind classifies what a bundler emits for a module.
// The bundler reports it per output, e.g. "js/module" or "js/script/virtual".
type OutputKind string

const (
	// OutputModule is a regular module wrapped in a define call.
	OutputModule OutputKind = "js/module"

	// OutputScript is a plain script executed as-is.
	OutputScript OutputKind = "js/script"

	// OutputVirtualScript is a runtime bootstrap script synthesized by the
	// bundler (prelude, polyfill setup, require runtime). Every bundle that
	// executes code needs these.
	OutputVirtualScript OutputKind = "js/script/virtual"
)

// Output is one artifact the bundler produced for a module.
type Output struct {
	Type OutputKind `json:"type" yaml:"type"`
}

// ModuleRecord is the view of a module the bundler hands to the filter hook.
type ModuleRecord struct {
	// Path is the resolved module path as known to the bundler
	Path string `json:"path" yaml:"path"`

	// Output lists the artifacts produced for the module, first one is primary
	Output []Output `json:"output,omitempty" yaml:"output,omitempty"`
}

// Kind returns the primary output kind, or the empty kind when the module
// has no outputs.
func (m ModuleRecord) Kind() OutputKind {
	if len(m.Output) == 0 {
		return ""
	}
	return m.Output[0].Type
}

// NewModuleRecord builds a record with a single output of the given kind.
func NewModuleRecord(path string, kind OutputKind) ModuleRecord {
	rec := ModuleRecord{Path: path}
	if kind != "" {
		rec.Output = []Output{{Type: kind}}
	}
	return rec
}

// Identity is one module identity record: a path and the id handed out for it.
type Identity struct {
	Path string `json:"path" yaml:"path"`
	ID   int    `json:"id" yaml:"id"`
}
