// Package bus models the cyclic fieldbus exchange the control loop runs
// against. The exchange owns the process image; slaves attach fixed-size
// register regions at bring-up and read/write them once per cycle.
package bus

import "time"

// DefaultConfigTimeout bounds the acknowledgement wait of a bring-up
// configuration request.
const DefaultConfigTimeout = 500 * time.Millisecond

// ConfigRequest is a one-time acknowledged configuration write issued at
// bring-up, before cyclic operation starts. Failure to register one is
// fatal for the affected slave.
type ConfigRequest struct {
	Index    uint16
	SubIndex uint8
	Value    int64
	Timeout  time.Duration
}

// Slave describes one device's slice of the cyclic process image.
type Slave struct {
	Position    uint16
	VendorID    uint32
	ProductCode uint32
	OutputBytes int
	InputBytes  int
}

// Exchange performs the cyclic transfer of register bytes between the
// process image and the wire. Within one control cycle the mandated
// order is Receive, input decode, control decisions, output encode,
// Send.
type Exchange interface {
	// Attach reserves process-image regions for the slave and returns
	// the output and input buffers backing them. Layout is fixed from
	// this point on.
	Attach(s Slave) (out, in []byte, err error)

	// Configure registers the slave's bring-up requests. Must be called
	// after Attach and before the first Receive.
	Configure(position uint16, reqs []ConfigRequest) error

	// Receive latches fresh input registers into the process image.
	Receive() error

	// Send flushes the output registers onto the wire.
	Send() error

	Close() error
}
