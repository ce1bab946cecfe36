//go:build !linux

package rt

// Affinity and scheduler control need OS support that only the Linux
// build provides. Elsewhere the worker still cycles, best effort.

func currentThreadID() int {
	return 0
}

func setThreadAffinity(_ int, _ CPUSet) error {
	return nil
}

func setThreadSchedAttr(_ int, _ Policy, _ int) error {
	return nil
}
