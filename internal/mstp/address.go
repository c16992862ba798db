// Package mstp implements the master-node state machine and framing pipeline
// of an MS/TP (Master-Slave/Token-Passing) data link.
package mstp

import "fmt"

// Broadcast is the reserved destination address meaning "all stations".
const Broadcast uint8 = 0xFF

// MaxMaster is the largest address a master node may hold.
const MaxMaster = 127

// ValidateStationAddress reports whether addr is usable as thisStation given
// maxMaster (addr must be within [0, maxMaster] and maxMaster within
// [0, MaxMaster]).
func ValidateStationAddress(addr uint8, maxMaster uint8) error {
	if maxMaster > MaxMaster {
		return fmt.Errorf("%w: maxMaster %d exceeds %d", ErrConfig, maxMaster, MaxMaster)
	}
	if addr > maxMaster {
		return fmt.Errorf("%w: thisStation %d exceeds maxMaster %d", ErrConfig, addr, maxMaster)
	}
	return nil
}

// adjacentStation returns the next address after x, modulo maxMaster+1, per
// adjacentStation(x) = (x+1) mod (maxMaster+1).
func adjacentStation(x uint8, maxMaster uint8) uint8 {
	return uint8((uint16(x) + 1) % (uint16(maxMaster) + 1))
}
