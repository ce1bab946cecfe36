package drive_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winchlab/servoctl/internal/bus"
	"github.com/winchlab/servoctl/internal/drive"
)

// cycle runs one full exchange round: publish feedback, decode it,
// run the given command, encode and apply the outputs.
func cycle(t *testing.T, lb *bus.Loopback, c *drive.Controller, cmd func()) {
	t.Helper()

	require.NoError(t, lb.Receive())
	c.ReadInputs()
	if cmd != nil {
		cmd()
	}
	c.WriteOutputs()
	require.NoError(t, lb.Send())
}

// bringUp walks a fresh controller to OperationEnabled.
func bringUp(t *testing.T, lb *bus.Loopback, c *drive.Controller) {
	t.Helper()

	cycle(t, lb, c, c.Shutdown)
	cycle(t, lb, c, nil)
	require.Equal(t, drive.ReadyToSwitchOn, c.State())

	cycle(t, lb, c, c.SwitchOn)
	cycle(t, lb, c, nil)
	require.Equal(t, drive.SwitchedOn, c.State())

	cycle(t, lb, c, c.EnableOperation)
	cycle(t, lb, c, nil)
	require.Equal(t, drive.OperationEnabled, c.State())
}

func TestNewControllerAttachesAndSettles(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(3, lb)
	require.NoError(t, err)

	assert.Equal(t, uint16(3), c.BusPosition())
	assert.Equal(t, drive.SwitchOnDisabled, c.State(),
		"boot states are transient, a fresh controller settles in SwitchOnDisabled")
	assert.Equal(t, drive.OpModeCyclicPosition, c.Outputs().OpMode)
	assert.Equal(t, drive.OpModeNone, c.Inputs().OpMode)

	_, err = drive.NewController(3, lb)
	require.Error(t, err, "a bus position can host only one drive")
}

func TestControllerBringUpSequence(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(0, lb)
	require.NoError(t, err)

	bringUp(t, lb, c)

	assert.Equal(t, drive.OpModeCyclicPosition, c.Inputs().OpMode,
		"drive reports the mode requested at bring-up")
}

func TestSetpointsIgnoredUntilOperationEnabled(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(0, lb)
	require.NoError(t, err)

	before := c.Outputs()
	c.ChangePosition(500)
	c.ChangeVelocity(100)
	c.ChangeTorque(10)
	assert.Equal(t, before, c.Outputs(), "setpoints must not stage outside OperationEnabled")
}

func TestPositionSetpointRoundTrip(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(0, lb)
	require.NoError(t, err)
	bringUp(t, lb, c)

	cycle(t, lb, c, func() { c.ChangePosition(-250) })
	assert.Equal(t, drive.OpModeCyclicPosition, c.Outputs().OpMode)
	assert.Equal(t, int32(-250), c.Outputs().TargetPosition)

	cycle(t, lb, c, nil)
	assert.Equal(t, int32(-250), c.ActualPosition())
	assert.Equal(t, int32(-250), c.AuxPosition())
}

func TestVelocityModeAndDelta(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(0, lb)
	require.NoError(t, err)
	bringUp(t, lb, c)

	cycle(t, lb, c, func() { c.ChangeVelocity(50) })
	cycle(t, lb, c, nil)
	require.Equal(t, int32(50), c.ActualVelocity())

	cycle(t, lb, c, func() { c.ChangeDeltaVelocity(25) })
	assert.Equal(t, drive.OpModeCyclicVelocity, c.Outputs().OpMode)
	assert.Equal(t, int32(75), c.Outputs().TargetVelocity)
}

func TestTorqueSetpointSaturates(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(0, lb)
	require.NoError(t, err)
	bringUp(t, lb, c)

	c.ChangeTorque(1 << 20)
	assert.Equal(t, int16(math.MaxInt16), c.Outputs().TargetTorque)

	c.ChangeTorque(-(1 << 20))
	assert.Equal(t, int16(math.MinInt16), c.Outputs().TargetTorque)

	c.ChangeTorque(-300)
	assert.Equal(t, int16(-300), c.Outputs().TargetTorque)
	assert.Equal(t, drive.OpModeCyclicTorque, c.Outputs().OpMode)
}

func TestChangeOpModeTracksLiveActual(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(0, lb)
	require.NoError(t, err)
	bringUp(t, lb, c)

	cycle(t, lb, c, func() { c.ChangeVelocity(50) })
	cycle(t, lb, c, nil)
	require.Equal(t, int32(50), c.ActualVelocity())

	c.ChangeOpMode(drive.OpModeCyclicVelocity)
	assert.Equal(t, int32(50), c.Outputs().TargetVelocity,
		"mode change must seed the target from the live actual")
}

func TestQuickStopAndRecovery(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(0, lb)
	require.NoError(t, err)
	bringUp(t, lb, c)

	cycle(t, lb, c, c.QuickStop)
	cycle(t, lb, c, nil)
	assert.Equal(t, drive.QuickStopActive, c.State())

	cycle(t, lb, c, c.EnableOperation)
	cycle(t, lb, c, nil)
	assert.Equal(t, drive.OperationEnabled, c.State())
}

func TestDisableVoltageDropsToSwitchOnDisabled(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(0, lb)
	require.NoError(t, err)
	bringUp(t, lb, c)

	cycle(t, lb, c, c.DisableVoltage)
	cycle(t, lb, c, nil)
	assert.Equal(t, drive.SwitchOnDisabled, c.State())
}

func TestFaultDecodeAndReset(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(7, lb)
	require.NoError(t, err)
	bringUp(t, lb, c)

	lb.InjectStatus(7, 0x0008)
	require.NoError(t, lb.Receive())
	c.ReadInputs()
	require.Equal(t, drive.Fault, c.State())

	// Commands other than the reset edge are ignored in Fault.
	before := c.Outputs()
	c.EnableOperation()
	assert.Equal(t, before, c.Outputs())

	c.FaultReset()
	c.WriteOutputs()
	require.NoError(t, lb.Send())

	cycle(t, lb, c, nil)
	assert.Equal(t, drive.SwitchOnDisabled, c.State(),
		"reset edge returns the drive to the idle branch")
}

func TestStateTracksDriveInitiatedChange(t *testing.T) {
	lb := bus.NewLoopback()
	c, err := drive.NewController(0, lb)
	require.NoError(t, err)
	bringUp(t, lb, c)

	// Drive falls back on its own account, e.g. an undervoltage trip.
	lb.InjectStatus(0, 0x0040)
	require.NoError(t, lb.Receive())
	c.ReadInputs()
	assert.Equal(t, drive.SwitchOnDisabled, c.State(),
		"modeled state follows the status word, not the last command")
}
