package bus

import (
	"encoding/binary"
	"sync"

	"github.com/winchlab/servoctl/internal/errors"
	"github.com/winchlab/servoctl/internal/logger"
)

// Control and status word bits of the standard drive power state
// machine, as seen on the wire.
const (
	lbCtrlSwitchOn        = 1 << 0
	lbCtrlEnableVoltage   = 1 << 1
	lbCtrlQuickStop       = 1 << 2
	lbCtrlEnableOperation = 1 << 3
	lbCtrlFaultReset      = 1 << 7

	lbStatusReadyToSwitchOn  = 1 << 0
	lbStatusSwitchedOn       = 1 << 1
	lbStatusOperationEnabled = 1 << 2
	lbStatusQuickStop        = 1 << 5
	lbStatusSwitchOnDisabled = 1 << 6
)

// Objects the loopback accepts bring-up configuration writes for.
var lbConfigurable = map[uint16]bool{
	0x6060: true, // operation mode
	0x6098: true, // homing method
}

type lbSlave struct {
	slave Slave
	out   []byte
	in    []byte

	status   uint16
	opMode   int8
	position int32
	velocity int32
	torque   int16
	lastCtrl uint16
}

// Loopback is an in-memory Exchange backed by a behavioral model of each
// attached drive: control words move the modeled power state machine,
// setpoints are echoed into the actual-value registers. It stands in for
// a fieldbus master on benches and in tests.
type Loopback struct {
	mu     sync.Mutex
	slaves map[uint16]*lbSlave
	closed bool
}

func NewLoopback() *Loopback {
	return &Loopback{slaves: make(map[uint16]*lbSlave)}
}

func (l *Loopback) Attach(s Slave) (out, in []byte, err error) {
	errFactory := errors.New()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.slaves[s.Position]; exists {
		return nil, nil, errFactory.WithData(errors.ErrBusAttach, s.Position)
	}
	if s.OutputBytes <= 0 || s.InputBytes <= 0 {
		return nil, nil, errFactory.WithData(errors.ErrBusAttach, "empty register region")
	}

	sl := &lbSlave{
		slave:  s,
		out:    make([]byte, s.OutputBytes),
		in:     make([]byte, s.InputBytes),
		status: lbStatusSwitchOnDisabled,
	}
	l.slaves[s.Position] = sl

	logger.Debug().
		Uint16("position", s.Position).
		Int("output_bytes", s.OutputBytes).
		Int("input_bytes", s.InputBytes).
		Msg("Slave attached to loopback exchange")

	return sl.out, sl.in, nil
}

func (l *Loopback) Configure(position uint16, reqs []ConfigRequest) error {
	errFactory := errors.New()

	l.mu.Lock()
	defer l.mu.Unlock()

	sl, ok := l.slaves[position]
	if !ok {
		return errFactory.WithData(errors.ErrUnknownSlave, position)
	}

	for _, req := range reqs {
		if !lbConfigurable[req.Index] {
			return errFactory.WithData(errors.ErrBusConfigRequest, req.Index)
		}
		if req.Index == 0x6060 {
			sl.opMode = int8(req.Value)
		}
		logger.Debug().
			Uint16("position", position).
			Uint16("index", req.Index).
			Int64("value", req.Value).
			Msg("Bring-up request acknowledged")
	}

	return nil
}

// Send applies the freshly written output registers to each drive model.
// The effect becomes visible as feedback at the next Receive, one cycle
// later at most.
func (l *Loopback) Send() error {
	errFactory := errors.New()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errFactory.New(errors.ErrBusExchange)
	}

	for _, sl := range l.slaves {
		sl.step()
	}

	return nil
}

// Receive publishes each drive model's state into its input region.
func (l *Loopback) Receive() error {
	errFactory := errors.New()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errFactory.New(errors.ErrBusExchange)
	}

	for _, sl := range l.slaves {
		sl.publish()
	}

	return nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true

	return nil
}

// InjectStatus overwrites the modeled status word of a slave, e.g. to
// simulate a hardware fault from a test.
func (l *Loopback) InjectStatus(position, status uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sl, ok := l.slaves[position]; ok {
		sl.status = status
	}
}

// step advances the modeled power state machine from the output
// registers. Command decode priority follows the standard control word
// patterns.
func (s *lbSlave) step() {
	ctrl := binary.LittleEndian.Uint16(s.out[0:2])
	opMode := int8(s.out[2])
	targetTorque := int16(binary.LittleEndian.Uint16(s.out[3:5]))
	targetPos := int32(binary.LittleEndian.Uint32(s.out[5:9]))
	targetVel := int32(binary.LittleEndian.Uint32(s.out[9:13]))

	faultEdge := ctrl&lbCtrlFaultReset != 0 && s.lastCtrl&lbCtrlFaultReset == 0
	s.lastCtrl = ctrl

	switch {
	case faultEdge:
		s.status = lbStatusSwitchOnDisabled
	case ctrl&lbCtrlEnableVoltage == 0:
		s.status = lbStatusSwitchOnDisabled
	case ctrl&lbCtrlQuickStop == 0:
		// Quick stop: operation still enabled, quick-stop status bit low.
		s.status = lbStatusReadyToSwitchOn | lbStatusSwitchedOn | lbStatusOperationEnabled
	case ctrl&lbCtrlSwitchOn == 0:
		s.status = lbStatusReadyToSwitchOn | lbStatusQuickStop
	case ctrl&lbCtrlEnableOperation == 0:
		s.status = lbStatusReadyToSwitchOn | lbStatusSwitchedOn | lbStatusQuickStop
	default:
		s.status = lbStatusReadyToSwitchOn | lbStatusSwitchedOn |
			lbStatusOperationEnabled | lbStatusQuickStop
	}

	if s.status&lbStatusOperationEnabled != 0 && s.status&lbStatusQuickStop != 0 {
		// Ideal drive: setpoints are reached within the cycle.
		s.opMode = opMode
		switch opMode {
		case 8: // cyclic position
			s.position = targetPos
			s.velocity = 0
		case 9: // cyclic velocity
			s.velocity = targetVel
			s.position += targetVel
		case 10: // cyclic torque
			s.torque = targetTorque
		}
	}
}

// publish writes the modeled feedback into the input region using the
// fixed register layout.
func (s *lbSlave) publish() {
	binary.LittleEndian.PutUint16(s.in[0:2], s.status)
	s.in[2] = byte(s.opMode)
	binary.LittleEndian.PutUint32(s.in[3:7], uint32(s.position))
	binary.LittleEndian.PutUint32(s.in[7:11], uint32(s.velocity))
	binary.LittleEndian.PutUint16(s.in[11:13], uint16(s.torque))
	binary.LittleEndian.PutUint32(s.in[13:17], 0) // digital inputs
	binary.LittleEndian.PutUint32(s.in[17:21], uint32(s.position))
}
