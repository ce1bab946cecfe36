package drive

import (
	"github.com/winchlab/servoctl/internal/bus"
)

// Vendor identity of the supported drive, fixed at bus bring-up.
const (
	VendorID    uint32 = 0x0000009a
	ProductCode uint32 = 0x00030924
)

// Object dictionary entries used by the cyclic register map and the
// bring-up requests.
const (
	idxControlWord   uint16 = 0x6040
	idxStatusWord    uint16 = 0x6041
	idxOpMode        uint16 = 0x6060
	idxDisplayOpMode uint16 = 0x6061
	idxPosActual     uint16 = 0x6064
	idxVelActual     uint16 = 0x606C
	idxTorqueActual  uint16 = 0x6077
	idxTargetTorque  uint16 = 0x6071
	idxTargetPos     uint16 = 0x607A
	idxTargetVel     uint16 = 0x60FF
	idxHomingMethod  uint16 = 0x6098
	idxDigitalInputs uint16 = 0x60FD
	idxAuxPosActual  uint16 = 0x20A0

	// Homing method 35: home on current position.
	homingOnCurrentPos = 35
)

// RegisterEntry describes one fixed-width cyclic register.
type RegisterEntry struct {
	Index    uint16
	SubIndex uint8
	Bits     int
}

// Cyclic register layout, bit-exact and fixed at bus bring-up. Outputs
// first, inputs second, each packed in declaration order.
var (
	OutputEntries = [5]RegisterEntry{
		{idxControlWord, 0x00, 16},
		{idxOpMode, 0x00, 8},
		{idxTargetTorque, 0x00, 16},
		{idxTargetPos, 0x00, 32},
		{idxTargetVel, 0x00, 32},
	}

	InputEntries = [7]RegisterEntry{
		{idxStatusWord, 0x00, 16},
		{idxDisplayOpMode, 0x00, 8},
		{idxPosActual, 0x00, 32},
		{idxVelActual, 0x00, 32},
		{idxTorqueActual, 0x00, 16},
		{idxDigitalInputs, 0x00, 32},
		{idxAuxPosActual, 0x00, 32},
	}
)

// Byte offsets of each register within its packed region.
const (
	offControlWord  = 0
	offOpMode       = 2
	offTargetTorque = 3
	offTargetPos    = 5
	offTargetVel    = 9

	offStatusWord    = 0
	offDisplayOpMode = 2
	offPosActual     = 3
	offVelActual     = 7
	offTorqueActual  = 11
	offDigitalInputs = 13
	offAuxPosActual  = 17
)

// Packed region sizes derived from the layout above.
const (
	OutputRegionBytes = 13
	InputRegionBytes  = 21
)

// bringUpRequests returns the one-time configuration writes issued
// before cyclic operation starts: default operation mode and homing on
// current position. Registration failure of either is a fatal bring-up
// error.
func bringUpRequests() []bus.ConfigRequest {
	return []bus.ConfigRequest{
		{
			Index:    idxOpMode,
			SubIndex: 0x00,
			Value:    int64(OpModeCyclicPosition),
			Timeout:  bus.DefaultConfigTimeout,
		},
		{
			Index:    idxHomingMethod,
			SubIndex: 0x00,
			Value:    homingOnCurrentPos,
			Timeout:  bus.DefaultConfigTimeout,
		},
	}
}
