//go:build linux

package rt

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/winchlab/servoctl/internal/errors"
)

type mlockPinner struct {
	// reserve stays referenced so the touched pages remain part of the
	// process working set.
	reserve []byte
}

func newPlatformPinner() MemoryPinner {
	return &mlockPinner{}
}

func (p *mlockPinner) Pin(reserveBytes int) error {
	errFactory := errors.New()

	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return errFactory.Wrap(errors.ErrMemoryPinFailed, err)
	}

	if reserveBytes > 0 {
		pageSize := os.Getpagesize()
		buf := make([]byte, reserveBytes)
		// Touch every page so each one is faulted in now, while we can
		// still afford the latency, and stays resident under MCL_FUTURE.
		for i := 0; i < len(buf); i += pageSize {
			buf[i] = 0
		}
		p.reserve = buf
	}

	return nil
}

func (p *mlockPinner) Unpin() error {
	errFactory := errors.New()

	p.reserve = nil
	if err := unix.Munlockall(); err != nil {
		return errFactory.Wrap(errors.ErrMemoryPinFailed, err)
	}

	return nil
}
