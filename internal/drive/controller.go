package drive

import (
	"encoding/binary"

	"github.com/winchlab/servoctl/internal/bus"
	"github.com/winchlab/servoctl/internal/logger"
)

// InputSnapshot holds the feedback registers of one drive, refreshed
// once per cycle by ReadInputs.
type InputSnapshot struct {
	StatusWord    uint16
	OpMode        OpMode
	Position      int32
	Velocity      int32
	Torque        int16
	DigitalInputs uint32
	AuxPosition   int32
}

// OutputSnapshot holds the command registers of one drive, flushed once
// per cycle by WriteOutputs.
type OutputSnapshot struct {
	ControlWord    uint16
	OpMode         OpMode
	TargetTorque   int16
	TargetPosition int32
	TargetVelocity int32
}

// Controller models one servo drive's hardware lifecycle and arbitrates
// its motion-mode setpoints. Commanded events only stage control
// register bits; the modeled state advances exclusively on the next
// status word decode, so the drive's own feedback stays authoritative.
//
// A controller is bound to one logical bus position and must be driven
// from exactly one worker's loop body; it is not internally
// synchronized.
type Controller struct {
	position uint16
	state    State
	in       InputSnapshot
	out      OutputSnapshot

	outBuf []byte
	inBuf  []byte
}

// NewController attaches a drive at the given bus position, registers
// its bring-up configuration requests and initializes the modeled state,
// which self-advances through the transient boot states exactly like the
// physical drive does.
func NewController(position uint16, exchange bus.Exchange) (*Controller, error) {
	out, in, err := exchange.Attach(bus.Slave{
		Position:    position,
		VendorID:    VendorID,
		ProductCode: ProductCode,
		OutputBytes: OutputRegionBytes,
		InputBytes:  InputRegionBytes,
	})
	if err != nil {
		return nil, err
	}

	if err := exchange.Configure(position, bringUpRequests()); err != nil {
		return nil, err
	}

	c := &Controller{
		position: position,
		outBuf:   out,
		inBuf:    in,
	}
	c.out.OpMode = OpModeCyclicPosition
	c.in.OpMode = OpModeNone

	logger.Info().
		Uint16("position", position).
		Str("state", Start.String()).
		Msg("Drive initial state")
	c.enterState(Start)

	return c, nil
}

// BusPosition returns the logical bus position the controller is bound to.
func (c *Controller) BusPosition() uint16 {
	return c.position
}

// State returns the latest known physical drive state.
func (c *Controller) State() State {
	return c.state
}

// Inputs returns the feedback snapshot of the current cycle.
func (c *Controller) Inputs() InputSnapshot {
	return c.in
}

// Outputs returns the staged command snapshot.
func (c *Controller) Outputs() OutputSnapshot {
	return c.out
}

// ActualPosition returns the drive position feedback in counts.
func (c *Controller) ActualPosition() int32 {
	return c.in.Position
}

// AuxPosition returns the auxiliary encoder position, e.g. from an
// external sensor wired to the drive.
func (c *Controller) AuxPosition() int32 {
	return c.in.AuxPosition
}

// ActualVelocity returns the drive velocity feedback.
func (c *Controller) ActualVelocity() int32 {
	return c.in.Velocity
}

// ActualTorque returns the drive torque feedback.
func (c *Controller) ActualTorque() int16 {
	return c.in.Torque
}

// DigitalInputs returns the raw digital input bitfield.
func (c *Controller) DigitalInputs() uint32 {
	return c.in.DigitalInputs
}

// ReadInputs decodes the feedback registers of the current cycle and
// re-synchronizes the modeled state with the hardware. Must run after
// the bus receive and before any control decision.
func (c *Controller) ReadInputs() {
	c.in.StatusWord = binary.LittleEndian.Uint16(c.inBuf[offStatusWord:])
	c.in.OpMode = OpMode(int8(c.inBuf[offDisplayOpMode]))
	c.in.Position = int32(binary.LittleEndian.Uint32(c.inBuf[offPosActual:]))
	c.in.Velocity = int32(binary.LittleEndian.Uint32(c.inBuf[offVelActual:]))
	c.in.Torque = int16(binary.LittleEndian.Uint16(c.inBuf[offTorqueActual:]))
	c.in.DigitalInputs = binary.LittleEndian.Uint32(c.inBuf[offDigitalInputs:])
	c.in.AuxPosition = int32(binary.LittleEndian.Uint32(c.inBuf[offAuxPosActual:]))

	decoded := DecodeState(c.in.StatusWord)
	if decoded == c.state {
		return
	}

	if decoded == OperationEnabled {
		// The drive entered OperationEnabled on its own account. Fold
		// the reported mode back in, with the matching live actual as
		// target, so the setpoint tracks the drive instead of jumping.
		c.forceState(OperationEnabled)
		c.ChangeOpMode(c.in.OpMode)

		return
	}

	c.forceState(decoded)
}

// WriteOutputs encodes the staged command registers for this cycle.
// Control word and operation mode are always written; targets only reach
// the bus while the drive can act on them safely.
func (c *Controller) WriteOutputs() {
	binary.LittleEndian.PutUint16(c.outBuf[offControlWord:], c.out.ControlWord)
	c.outBuf[offOpMode] = byte(c.out.OpMode)
	if c.state == OperationEnabled || c.state == SwitchedOn {
		binary.LittleEndian.PutUint16(c.outBuf[offTargetTorque:], uint16(c.out.TargetTorque))
		binary.LittleEndian.PutUint32(c.outBuf[offTargetPos:], uint32(c.out.TargetPosition))
		binary.LittleEndian.PutUint32(c.outBuf[offTargetVel:], uint32(c.out.TargetVelocity))
	}
}

// Shutdown commands the transition towards ReadyToSwitchOn.
func (c *Controller) Shutdown() {
	c.command(event{kind: evShutdown})
}

// SwitchOn commands the transition ReadyToSwitchOn -> SwitchedOn. The
// operation mode resets to cyclic position with the current actual
// position as target.
func (c *Controller) SwitchOn() {
	c.command(event{kind: evSwitchOn})
}

// EnableOperation commands the transition towards OperationEnabled.
func (c *Controller) EnableOperation() {
	c.command(event{kind: evEnableOperation})
}

// DisableOperation commands the transition OperationEnabled -> SwitchedOn.
func (c *Controller) DisableOperation() {
	c.command(event{kind: evDisableOperation})
}

// DisableVoltage commands the transition towards SwitchOnDisabled.
func (c *Controller) DisableVoltage() {
	c.command(event{kind: evDisableVoltage})
}

// QuickStop commands an immediate controlled stop.
func (c *Controller) QuickStop() {
	c.command(event{kind: evQuickStop})
}

// FaultReset commands the fault clearing edge. Legal only in Fault.
func (c *Controller) FaultReset() {
	c.command(event{kind: evFaultReset})
}

// ChangePosition switches to cyclic position mode with the given target.
// Ignored unless the modeled state is OperationEnabled.
func (c *Controller) ChangePosition(target int32) {
	c.command(event{kind: evSetTarget, opMode: OpModeCyclicPosition, target: target})
}

// ChangeDeltaPosition applies a position change relative to the live
// actual position.
func (c *Controller) ChangeDeltaPosition(delta int32) {
	c.ChangePosition(c.in.Position + delta)
}

// ChangeVelocity switches to cyclic velocity mode with the given target.
func (c *Controller) ChangeVelocity(target int32) {
	c.command(event{kind: evSetTarget, opMode: OpModeCyclicVelocity, target: target})
}

// ChangeDeltaVelocity applies a velocity change relative to the live
// actual velocity.
func (c *Controller) ChangeDeltaVelocity(delta int32) {
	c.ChangeVelocity(c.in.Velocity + delta)
}

// ChangeTorque switches to cyclic torque mode with the given target. The
// value saturates into the signed 16-bit register range.
func (c *Controller) ChangeTorque(target int32) {
	c.command(event{kind: evSetTarget, opMode: OpModeCyclicTorque, target: target})
}

// ChangeDeltaTorque applies a torque change relative to the live actual
// torque.
func (c *Controller) ChangeDeltaTorque(delta int32) {
	c.ChangeTorque(int32(c.in.Torque) + delta)
}

// ChangeOpMode switches to the given operation mode with the matching
// live actual value as target, so the new mode starts without a setpoint
// step.
func (c *Controller) ChangeOpMode(mode OpMode) {
	c.command(event{kind: evSetTarget, opMode: mode, target: c.actualFor(mode)})
}

// SetTargetDefaults re-seeds mode and target from the drive's own
// reported mode and live actual value.
func (c *Controller) SetTargetDefaults() {
	mode := c.in.OpMode
	c.command(event{kind: evSetTargetDefaults, opMode: mode, target: c.actualFor(mode)})
}

func (c *Controller) actualFor(mode OpMode) int32 {
	switch mode {
	case OpModeCyclicPosition:
		return c.in.Position
	case OpModeCyclicVelocity:
		return c.in.Velocity
	case OpModeCyclicTorque:
		return int32(c.in.Torque)
	default:
		return 0
	}
}

func (c *Controller) command(ev event) {
	logger.Debug().
		Uint16("position", c.position).
		Str("command", ev.kind.String()).
		Str("state", c.state.String()).
		Msg("Drive command")

	if !apply(c.state, ev, &c.in, &c.out) {
		logger.Debug().
			Uint16("position", c.position).
			Str("command", ev.kind.String()).
			Str("state", c.state.String()).
			Msg("Drive command ignored in current state")
	}
}

// forceState snaps the modeled state to the decode of the freshest
// status word, running the transient boot states' self-advance.
func (c *Controller) forceState(s State) {
	prev := c.state
	c.enterState(s)
	if c.state != prev {
		logger.Info().
			Uint16("position", c.position).
			Str("from", prev.String()).
			Str("to", c.state.String()).
			Msg("Drive state transition")
	}
}

// enterState applies entry behavior. Start and NotReadyToSwitchOn
// advance immediately, mirroring the physical drive's own boot sequence;
// every other state is stable until the next decode.
func (c *Controller) enterState(s State) {
	for {
		c.state = s
		switch s {
		case Start:
			s = NotReadyToSwitchOn
		case NotReadyToSwitchOn:
			s = SwitchOnDisabled
		default:
			return
		}
	}
}
