package drive

// State is the modeled hardware lifecycle state of a servo drive,
// mirroring the power state machine of the physical device.
type State uint8

const (
	Start State = iota
	NotReadyToSwitchOn
	SwitchOnDisabled
	ReadyToSwitchOn
	SwitchedOn
	OperationEnabled
	QuickStopActive
	FaultReactionActive
	Fault
)

func (s State) String() string {
	switch s {
	case Start:
		return "START"
	case NotReadyToSwitchOn:
		return "NOT_READY_TO_SWITCH_ON"
	case SwitchOnDisabled:
		return "SWITCH_ON_DISABLED"
	case ReadyToSwitchOn:
		return "READY_TO_SWITCH_ON"
	case SwitchedOn:
		return "SWITCHED_ON"
	case OperationEnabled:
		return "OPERATION_ENABLED"
	case QuickStopActive:
		return "QUICK_STOP_ACTIVE"
	case FaultReactionActive:
		return "FAULT_REACTION_ACTIVE"
	case Fault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// OpMode selects which physical quantity the drive's setpoint controls.
type OpMode int8

const (
	OpModeNone           OpMode = -1
	OpModeCyclicPosition OpMode = 8
	OpModeCyclicVelocity OpMode = 9
	OpModeCyclicTorque   OpMode = 10
)

func (m OpMode) String() string {
	switch m {
	case OpModeCyclicPosition:
		return "CYCLIC_POSITION"
	case OpModeCyclicVelocity:
		return "CYCLIC_VELOCITY"
	case OpModeCyclicTorque:
		return "CYCLIC_TORQUE"
	default:
		return "NO_MODE"
	}
}

// Status word bits reported by the drive.
const (
	statusReadyToSwitchOn  uint16 = 1 << 0
	statusSwitchedOn       uint16 = 1 << 1
	statusOperationEnabled uint16 = 1 << 2
	statusFault            uint16 = 1 << 3
	statusQuickStop        uint16 = 1 << 5
	statusSwitchOnDisabled uint16 = 1 << 6
)

// Control word bits commanded to the drive.
const (
	ctrlSwitchOn        uint16 = 1 << 0
	ctrlEnableVoltage   uint16 = 1 << 1
	ctrlQuickStop       uint16 = 1 << 2
	ctrlEnableOperation uint16 = 1 << 3
	ctrlFaultReset      uint16 = 1 << 7
)

// DecodeState maps a raw status word onto the drive state using the
// fixed priority decision tree of the drive documentation. Every 16-bit
// value decodes to exactly one state.
func DecodeState(status uint16) State {
	if status&statusSwitchOnDisabled != 0 {
		// Drive idle.
		return NotReadyToSwitchOn
	}
	if status&statusQuickStop != 0 {
		if status&statusSwitchedOn == 0 {
			// Power stage off, voltage enabled.
			return ReadyToSwitchOn
		}
		if status&statusOperationEnabled == 0 {
			// Power stage on, control loop idle.
			return SwitchedOn
		}
		return OperationEnabled
	}
	if status&statusFault == 0 {
		return QuickStopActive
	}
	if status&statusOperationEnabled != 0 {
		// Fault detected, drive still decelerating.
		return FaultReactionActive
	}

	return Fault
}
