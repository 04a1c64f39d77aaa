package snapshot

// SyncPath is one configured directory root participating in
// synchronization. Path is relative to the installation root and may climb
// out of it with `..` segments.
type SyncPath struct {
	Name            string `json:"name,omitempty" mapstructure:"name"`
	Path            string `json:"path" mapstructure:"path"`
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	Enforced        bool   `json:"enforced" mapstructure:"enforced"`
	Silent          bool   `json:"silent" mapstructure:"silent"`
	RestartRequired bool   `json:"restart_required" mapstructure:"restart_required"`
}

// Active reports whether the path participates in synchronization. Enforced
// paths are always in, regardless of the user's Enabled preference.
func (p SyncPath) Active() bool {
	return p.Enabled || p.Enforced
}

// Label returns the namespace key for the path: the explicit Name when set,
// the raw Path otherwise.
func (p SyncPath) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Path
}

// ActivePaths filters paths down to those participating in synchronization.
func ActivePaths(paths []SyncPath) []SyncPath {
	active := make([]SyncPath, 0, len(paths))
	for _, p := range paths {
		if p.Active() {
			active = append(active, p)
		}
	}
	return active
}
