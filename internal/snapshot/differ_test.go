package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func file(fp string) FileRecord {
	return FileRecord{Fingerprint: fp}
}

func dir() FileRecord {
	return FileRecord{IsDir: true}
}

func TestComputeFreshInstall(t *testing.T) {
	local := map[string]FileRecord{}
	remote := map[string]FileRecord{
		"file.dll":    file("aa"),
		"Scripts":     dir(),
		"another.dll": file("bb"),
	}

	d := Compute(local, remote, nil)

	assert.Len(t, d.Added, 2)
	assert.Contains(t, d.Added, "file.dll")
	assert.Contains(t, d.Added, "another.dll")
	assert.Equal(t, []string{"Scripts"}, d.CreatedDirs)
	assert.Empty(t, d.Updated)
	assert.Empty(t, d.Removed)
}

func TestComputeUpdatedAndRemoved(t *testing.T) {
	local := map[string]FileRecord{
		"same.dll":    file("aa"),
		"changed.dll": file("old"),
		"stale.dll":   file("cc"),
		"Scripts":     dir(),
	}
	remote := map[string]FileRecord{
		"same.dll":    file("aa"),
		"changed.dll": file("new"),
		"Scripts":     dir(),
	}

	d := Compute(local, remote, nil)

	assert.Empty(t, d.Added)
	assert.Contains(t, d.Updated, "changed.dll")
	assert.Len(t, d.Updated, 1)
	assert.Equal(t, []string{"stale.dll"}, d.Removed)
	// local Scripts dir exists, nothing to create, and dirs never hit Removed
	assert.Empty(t, d.CreatedDirs)
}

func TestComputeRevertedIsCountedNotSuppressed(t *testing.T) {
	local := map[string]FileRecord{"a.dll": file("v2")}
	remote := map[string]FileRecord{"a.dll": file("v1")}
	previous := map[string]FileRecord{"a.dll": file("v1")}

	d := Compute(local, remote, previous)

	// the file reverted to a previously-seen value: still an update
	assert.Contains(t, d.Updated, "a.dll")
	assert.Equal(t, 1, d.Reverted)
}

func TestSyncPathActive(t *testing.T) {
	tests := []struct {
		enabled  bool
		enforced bool
		want     bool
	}{
		{false, false, false},
		{false, true, true},
		{true, false, true},
		{true, true, true},
	}

	for _, test := range tests {
		p := SyncPath{Enabled: test.enabled, Enforced: test.enforced}
		assert.Equal(t, test.want, p.Active(), "enabled=%v enforced=%v", test.enabled, test.enforced)
	}

	active := ActivePaths([]SyncPath{
		{Name: "a", Enabled: false, Enforced: true},
		{Name: "b", Enabled: false, Enforced: false},
		{Name: "c", Enabled: true},
	})
	assert.Len(t, active, 2)
	assert.Equal(t, "a", active[0].Name)
	assert.Equal(t, "c", active[1].Name)
}

func TestResultUpdateCount(t *testing.T) {
	d := Compute(
		map[string]FileRecord{
			"upd.dll":  file("old"),
			"gone.dll": file("xx"),
		},
		map[string]FileRecord{
			"upd.dll":  file("new"),
			"new1.dll": file("aa"),
			"new2.dll": file("bb"),
			"Scripts":  dir(),
		},
		nil,
	)

	r := &Result{Paths: []PathDiff{{SyncPath: SyncPath{Enabled: true}, Diff: d}}}

	// 2 added + 1 updated + 1 removed + 1 created directory
	assert.Equal(t, 5, r.UpdateCount())
}

func TestResultSilentAndRestart(t *testing.T) {
	changed := Compute(nil, map[string]FileRecord{"a.dll": file("aa")}, nil)
	unchanged := Compute(nil, nil, nil)

	r := &Result{Paths: []PathDiff{
		{SyncPath: SyncPath{Enabled: true, Silent: true, RestartRequired: true}, Diff: changed},
		{SyncPath: SyncPath{Enabled: true, Silent: false, RestartRequired: false}, Diff: unchanged},
	}}

	// the only touched path is silent; untouched loud path doesn't matter
	assert.True(t, r.IsSilent(false))
	assert.True(t, r.RestartRequired())

	loud := &Result{Paths: []PathDiff{
		{SyncPath: SyncPath{Enabled: true}, Diff: changed},
	}}
	assert.False(t, loud.IsSilent(false))
	assert.True(t, loud.IsSilent(true), "headless forces silent")
	assert.False(t, loud.RestartRequired())

	empty := &Result{}
	assert.True(t, empty.IsSilent(false))
	assert.False(t, empty.RestartRequired())
}
