package bus_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winchlab/servoctl/internal/bus"
	"github.com/winchlab/servoctl/internal/errors"
)

func TestLoopbackAttach(t *testing.T) {
	lb := bus.NewLoopback()

	out, in, err := lb.Attach(bus.Slave{Position: 1, OutputBytes: 13, InputBytes: 21})
	require.NoError(t, err)
	assert.Len(t, out, 13)
	assert.Len(t, in, 21)

	_, _, err = lb.Attach(bus.Slave{Position: 1, OutputBytes: 13, InputBytes: 21})
	require.Error(t, err, "a position can only be attached once")
	assert.True(t, errors.IsCode(err, errors.ErrBusAttach))

	_, _, err = lb.Attach(bus.Slave{Position: 2})
	require.Error(t, err, "empty register regions are rejected")
}

func TestLoopbackConfigure(t *testing.T) {
	lb := bus.NewLoopback()
	_, _, err := lb.Attach(bus.Slave{Position: 1, OutputBytes: 13, InputBytes: 21})
	require.NoError(t, err)

	err = lb.Configure(9, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUnknownSlave))

	err = lb.Configure(1, []bus.ConfigRequest{{Index: 0x6060, Value: 8}})
	require.NoError(t, err)

	err = lb.Configure(1, []bus.ConfigRequest{{Index: 0x1234, Value: 1}})
	require.Error(t, err, "unsupported objects must fail the bring-up")
	assert.True(t, errors.IsCode(err, errors.ErrBusConfigRequest))
}

func TestLoopbackPowerSequence(t *testing.T) {
	lb := bus.NewLoopback()
	out, in, err := lb.Attach(bus.Slave{Position: 0, OutputBytes: 13, InputBytes: 21})
	require.NoError(t, err)

	cycle := func(cw uint16) uint16 {
		binary.LittleEndian.PutUint16(out[0:2], cw)
		require.NoError(t, lb.Send())
		require.NoError(t, lb.Receive())

		return binary.LittleEndian.Uint16(in[0:2])
	}

	assert.Equal(t, uint16(0x0021), cycle(0x0006), "shutdown -> ready to switch on")
	assert.Equal(t, uint16(0x0023), cycle(0x0007), "switch on -> switched on")
	assert.Equal(t, uint16(0x0027), cycle(0x000F), "enable operation -> operation enabled")
	assert.Equal(t, uint16(0x0007), cycle(0x000B), "quick stop clears the quick-stop status bit")
	assert.Equal(t, uint16(0x0040), cycle(0x0000), "voltage off -> switch on disabled")
}

func TestLoopbackEchoesSetpoints(t *testing.T) {
	lb := bus.NewLoopback()
	out, in, err := lb.Attach(bus.Slave{Position: 0, OutputBytes: 13, InputBytes: 21})
	require.NoError(t, err)

	// Enable operation in cyclic position mode with a target.
	binary.LittleEndian.PutUint16(out[0:2], 0x000F)
	out[2] = 8
	target := int32(-250)
	binary.LittleEndian.PutUint32(out[5:9], uint32(target))
	require.NoError(t, lb.Send())
	require.NoError(t, lb.Receive())

	assert.Equal(t, uint16(0x0027), binary.LittleEndian.Uint16(in[0:2]))
	assert.Equal(t, int8(8), int8(in[2]))
	assert.Equal(t, int32(-250), int32(binary.LittleEndian.Uint32(in[3:7])))
}

func TestLoopbackClosedExchangeFails(t *testing.T) {
	lb := bus.NewLoopback()
	_, _, err := lb.Attach(bus.Slave{Position: 0, OutputBytes: 13, InputBytes: 21})
	require.NoError(t, err)
	require.NoError(t, lb.Close())

	assert.Error(t, lb.Send())
	assert.Error(t, lb.Receive())
}
