package drive_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/winchlab/servoctl/internal/drive"
)

func TestDecodeStatePriority(t *testing.T) {
	cases := []struct {
		status uint16
		want   drive.State
	}{
		{0x0040, drive.NotReadyToSwitchOn},
		{0x0021, drive.ReadyToSwitchOn},
		{0x0023, drive.SwitchedOn},
		{0x0027, drive.OperationEnabled},
		{0x0007, drive.QuickStopActive},
		{0x000F, drive.FaultReactionActive},
		{0x0008, drive.Fault},
		{0x0000, drive.QuickStopActive},
		// Switch-on-disabled outranks every other bit.
		{0xFFFF, drive.NotReadyToSwitchOn},
		// Quick-stop branch ignores the fault bit.
		{0x0029, drive.ReadyToSwitchOn},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, drive.DecodeState(tc.status), "status 0x%04X", tc.status)
	}
}

func TestDecodeStateIsTotal(t *testing.T) {
	reachable := map[drive.State]bool{
		drive.NotReadyToSwitchOn:  true,
		drive.ReadyToSwitchOn:     true,
		drive.SwitchedOn:          true,
		drive.OperationEnabled:    true,
		drive.QuickStopActive:     true,
		drive.FaultReactionActive: true,
		drive.Fault:               true,
	}

	for status := 0; status <= 0xFFFF; status++ {
		st := drive.DecodeState(uint16(status))
		if !reachable[st] {
			t.Fatalf("status 0x%04X decoded to unexpected state %s", status, st)
		}
	}
}

func TestRegisterLayoutSizes(t *testing.T) {
	bits := 0
	for _, e := range drive.OutputEntries {
		bits += e.Bits
	}
	assert.Equal(t, drive.OutputRegionBytes*8, bits)

	bits = 0
	for _, e := range drive.InputEntries {
		bits += e.Bits
	}
	assert.Equal(t, drive.InputRegionBytes*8, bits)
}
