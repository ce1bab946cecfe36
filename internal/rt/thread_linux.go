//go:build linux

package rt

import (
	"golang.org/x/sys/unix"

	"github.com/winchlab/servoctl/internal/errors"
)

// currentThreadID returns the kernel thread id of the calling thread.
// Meaningful only while the goroutine is locked to its OS thread.
func currentThreadID() int {
	return unix.Gettid()
}

// setThreadAffinity applies the CPU set to the thread with the given
// kernel thread id. tid 0 targets the calling thread.
func setThreadAffinity(tid int, set CPUSet) error {
	errFactory := errors.New()

	var cpus unix.CPUSet
	cpus.Zero()
	for _, core := range set.Cores() {
		cpus.Set(core)
	}

	if err := unix.SchedSetaffinity(tid, &cpus); err != nil {
		return errFactory.Wrap(errors.ErrAffinityFailed, err)
	}

	return nil
}

// setThreadSchedAttr applies scheduling policy and priority to the thread
// with the given kernel thread id. Real-time policies require
// CAP_SYS_NICE or an rtprio limit.
func setThreadSchedAttr(tid int, policy Policy, priority int) error {
	errFactory := errors.New()

	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Priority: uint32(priority),
	}
	switch policy {
	case PolicyFIFO:
		attr.Policy = unix.SCHED_FIFO
	case PolicyRoundRobin:
		attr.Policy = unix.SCHED_RR
	default:
		attr.Policy = unix.SCHED_NORMAL
	}

	if err := unix.SchedSetAttr(tid, attr, 0); err != nil {
		return errFactory.Wrap(errors.ErrSchedAttrFailed, err)
	}

	return nil
}
