package manifest

import "path/filepath"

// Fixed names under the host installation's working directory. The updater
// and the sync client agree on these without any shared configuration.
const (
	DataDirName      = "modsync-data"
	StagingDirName   = "staging"
	LogsDirName      = "logs"
	ManifestFileName = "update-manifest.json"
	RemovedFileName  = "removed-files.json"
	LastSyncFileName = "last-sync.json"
	LockFileName     = "updater.lock"

	// HostMarkerName must exist in the working directory for it to be
	// recognized as a host installation at all.
	HostMarkerName = ".modsync-host"
)

// Layout resolves the well-known paths of one host installation.
type Layout struct {
	Root string
}

func NewLayout(workDir string) Layout {
	return Layout{Root: workDir}
}

func (l Layout) MarkerPath() string {
	return filepath.Join(l.Root, HostMarkerName)
}

func (l Layout) DataDir() string {
	return filepath.Join(l.Root, DataDirName)
}

func (l Layout) StagingDir() string {
	return filepath.Join(l.DataDir(), StagingDirName)
}

func (l Layout) LogsDir() string {
	return filepath.Join(l.DataDir(), LogsDirName)
}

func (l Layout) ManifestPath() string {
	return filepath.Join(l.DataDir(), ManifestFileName)
}

func (l Layout) RemovedListPath() string {
	return filepath.Join(l.DataDir(), RemovedFileName)
}

func (l Layout) LastSyncPath() string {
	return filepath.Join(l.DataDir(), LastSyncFileName)
}

func (l Layout) LockPath() string {
	return filepath.Join(l.DataDir(), LockFileName)
}
