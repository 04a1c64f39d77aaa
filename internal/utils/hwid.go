package utils

import "github.com/denisbrodbeck/machineid"

// HWID is a stable, app-scoped hardware identifier. Falls back to a fixed
// value on platforms where the machine id is unavailable.
var HWID = func() string {
	id, err := machineid.ProtectedID("modsync")
	if err != nil {
		return "unknown"
	}
	return id
}()
