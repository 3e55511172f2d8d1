package types

// BundleStatus is the load state of a named bundle.
type BundleStatus int

const (
	// NotLoaded is the initial state of every bundle
	NotLoaded BundleStatus = iota

	// Loading means exactly one loader call is in flight for the bundle
	Loading

	// Loaded is terminal until the orchestrator is reset
	Loaded

	// Failed allows a new load request to start a fresh attempt
	Failed
)

// String returns the lower-case name used in logs and CLI output.
func (s BundleStatus) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets statuses appear by name in JSON and YAML output.
func (s BundleStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
