package drive

import "fmt"

// eventKind discriminates the commanded transition events of the drive
// state machine.
type eventKind uint8

const (
	evShutdown eventKind = iota
	evSwitchOn
	evEnableOperation
	evDisableOperation
	evDisableVoltage
	evQuickStop
	evFaultReset
	evSetTarget
	evSetTargetDefaults
)

func (k eventKind) String() string {
	switch k {
	case evShutdown:
		return "Shutdown"
	case evSwitchOn:
		return "SwitchOn"
	case evEnableOperation:
		return "EnableOperation"
	case evDisableOperation:
		return "DisableOperation"
	case evDisableVoltage:
		return "DisableVoltage"
	case evQuickStop:
		return "QuickStop"
	case evFaultReset:
		return "FaultReset"
	case evSetTarget:
		return "SetTarget"
	case evSetTargetDefaults:
		return "SetTargetDefaults"
	default:
		return "Unknown"
	}
}

// event is the tagged union of all commanded transitions. opMode and
// target carry the payload of setpoint events and are ignored by the
// rest.
type event struct {
	kind   eventKind
	opMode OpMode
	target int32
}

// legalFrom lists the states each event may be commanded from, per the
// drive documentation. Setpoint events are handled separately: legal
// only in OperationEnabled, silently ignored elsewhere.
var legalFrom = map[eventKind][]State{
	evShutdown:         {SwitchOnDisabled, SwitchedOn, OperationEnabled},
	evSwitchOn:         {ReadyToSwitchOn},
	evEnableOperation:  {SwitchedOn, QuickStopActive},
	evDisableOperation: {OperationEnabled},
	evDisableVoltage:   {ReadyToSwitchOn, OperationEnabled, SwitchedOn, QuickStopActive},
	evQuickStop:        {ReadyToSwitchOn, SwitchedOn, OperationEnabled},
	evFaultReset:       {Fault},
}

func legal(kind eventKind, from State) bool {
	for _, s := range legalFrom[kind] {
		if s == from {
			return true
		}
	}

	return false
}

// apply is the single transition function of the state machine: given
// the current modeled state and an event, it stages the event's effect
// on the output registers. The modeled state itself never advances here;
// it only moves on the next status word decode.
//
// Start and NotReadyToSwitchOn are transient boot states that no command
// can observe; reaching this function from either is a logic error.
func apply(st State, ev event, in *InputSnapshot, out *OutputSnapshot) bool {
	if st == Start || st == NotReadyToSwitchOn {
		panic(fmt.Sprintf("drive: event %s commanded from transient state %s", ev.kind, st))
	}

	switch ev.kind {
	case evSetTarget, evSetTargetDefaults:
		if st != OperationEnabled {
			return false
		}
		stageTarget(ev.opMode, ev.target, out)

		return true
	}

	if !legal(ev.kind, st) {
		return false
	}

	switch ev.kind {
	case evShutdown:
		out.ControlWord &^= ctrlSwitchOn
		out.ControlWord |= ctrlEnableVoltage | ctrlQuickStop
		out.ControlWord &^= ctrlFaultReset
	case evSwitchOn:
		out.ControlWord |= ctrlSwitchOn | ctrlEnableVoltage | ctrlQuickStop
		out.ControlWord &^= ctrlEnableOperation | ctrlFaultReset
		// Re-seed the setpoint from the live feedback so enabling the
		// drive cannot command a jump.
		out.OpMode = OpModeCyclicPosition
		out.TargetPosition = in.Position
	case evEnableOperation:
		out.ControlWord |= ctrlSwitchOn | ctrlEnableVoltage | ctrlQuickStop | ctrlEnableOperation
		out.ControlWord &^= ctrlFaultReset
	case evDisableOperation:
		out.ControlWord |= ctrlSwitchOn | ctrlEnableVoltage | ctrlQuickStop
		out.ControlWord &^= ctrlEnableOperation | ctrlFaultReset
	case evDisableVoltage:
		out.ControlWord &^= ctrlEnableVoltage | ctrlFaultReset
	case evQuickStop:
		out.ControlWord |= ctrlEnableVoltage
		out.ControlWord &^= ctrlQuickStop | ctrlFaultReset
	case evFaultReset:
		// Rising edge of the fault bit clears the fault condition in
		// hardware.
		out.ControlWord |= ctrlFaultReset
	}

	return true
}

// stageTarget records mode and setpoint in the output snapshot. The
// torque setpoint saturates into the signed 16-bit register range.
func stageTarget(mode OpMode, target int32, out *OutputSnapshot) {
	out.OpMode = mode
	switch mode {
	case OpModeCyclicPosition:
		out.TargetPosition = target
	case OpModeCyclicVelocity:
		out.TargetVelocity = target
	case OpModeCyclicTorque:
		out.TargetTorque = saturateTorque(target)
	}
}

func saturateTorque(v int32) int16 {
	const (
		maxTorque = 1<<15 - 1
		minTorque = -1 << 15
	)
	if v > maxTorque {
		return maxTorque
	}
	if v < minTorque {
		return minTorque
	}

	return int16(v)
}
