package rt

import (
	"runtime"
	"sort"

	"github.com/winchlab/servoctl/internal/errors"
)

// Affinity sentinels accepted wherever a core index is expected.
const (
	AllCores = -1 // no restriction, every core allowed
	LastCore = -2 // pin to the highest-numbered core
)

// CPUSet is the set of processor cores a worker thread may run on.
type CPUSet map[int]struct{}

// BuildCPUSet resolves a single core index or sentinel into a CPUSet.
func BuildCPUSet(core int) (CPUSet, error) {
	return BuildCPUSetFrom([]int{core})
}

// BuildCPUSetFrom resolves a list of core indices, each of which may be a
// sentinel, into a CPUSet. Duplicates collapse; an index outside
// [0, NumCPU) fails with ErrInvalidAffinity.
func BuildCPUSetFrom(cores []int) (CPUSet, error) {
	errFactory := errors.New()
	numCPU := runtime.NumCPU()
	set := make(CPUSet)

	for _, core := range cores {
		switch {
		case core == AllCores:
			for i := 0; i < numCPU; i++ {
				set[i] = struct{}{}
			}
		case core == LastCore:
			set[numCPU-1] = struct{}{}
		case core >= 0 && core < numCPU:
			set[core] = struct{}{}
		default:
			return nil, errFactory.WithData(errors.ErrInvalidAffinity, core)
		}
	}

	if len(set) == 0 {
		return nil, errFactory.WithMessage(errors.ErrInvalidAffinity, "empty CPU set")
	}

	return set, nil
}

// Contains reports whether the set allows the given core.
func (s CPUSet) Contains(core int) bool {
	_, ok := s[core]

	return ok
}

// Cores returns the allowed core indices in ascending order.
func (s CPUSet) Cores() []int {
	cores := make([]int, 0, len(s))
	for core := range s {
		cores = append(cores, core)
	}
	sort.Ints(cores)

	return cores
}
