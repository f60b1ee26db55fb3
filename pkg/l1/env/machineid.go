// Package env sets up the node registry from flags and environment.
package env

import (
	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves the unique ID identifying the machine.
// It is derived with an application key so the raw ID is not exposed.
func MachineID() string {
	id, err := machineid.ProtectedID("relaynode")
	if err != nil {
		return ""
	}
	return id[:12]
}
