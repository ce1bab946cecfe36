package rt

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/winchlab/servoctl/internal/errors"
	"github.com/winchlab/servoctl/internal/logger"
)

// Policy selects the kernel scheduling class for a worker thread.
type Policy int

const (
	PolicyNormal Policy = iota
	PolicyFIFO
	PolicyRoundRobin
)

func (p Policy) String() string {
	switch p {
	case PolicyNormal:
		return "normal"
	case PolicyFIFO:
		return "fifo"
	case PolicyRoundRobin:
		return "rr"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a config string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "normal", "other", "":
		return PolicyNormal, nil
	case "fifo":
		return PolicyFIFO, nil
	case "rr", "roundrobin":
		return PolicyRoundRobin, nil
	default:
		return PolicyNormal, errors.New().WithData(errors.ErrInvalidPolicy, s)
	}
}

// RuntimeState is the lifecycle state of a Worker.
type RuntimeState int32

const (
	StateIdle RuntimeState = iota
	StateArmed
	StateRunning
	StatePaused
	StateDeadlineMissed
	StateStopped
)

func (s RuntimeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateDeadlineMissed:
		return "deadline_missed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Hook is a worker lifecycle callback. Hooks run on the worker thread
// with the shared worker lock held; they must not call back into the
// worker's own synchronized methods.
type Hook func()

// Worker owns one OS-level execution context that runs a loop hook once
// per cycle against absolute deadlines. A worker is created idle, armed
// once a loop hook and a cycle period are set, started at most once per
// arm, and joined through Stop before teardown.
type Worker struct {
	name string

	mu *timedMutex

	// guarded by mu
	affinity CPUSet
	policy   Policy
	priority int
	period   time.Duration
	run      bool
	stopReq  bool
	tid      int

	initHook      Hook
	loopHook      Hook
	endHook       Hook
	emergencyHook Hook

	state      atomic.Int32
	everActive atomic.Bool
	cycles     atomic.Uint64
	done       chan struct{}

	pinner       MemoryPinner
	reserveBytes int
}

// NewWorker returns an idle worker with default attributes: all cores,
// normal scheduling, priority 0, platform memory pinning.
func NewWorker(name string) *Worker {
	affinity, _ := BuildCPUSet(AllCores)

	return &Worker{
		name:         name,
		mu:           newTimedMutex(),
		affinity:     affinity,
		policy:       PolicyNormal,
		priority:     0,
		pinner:       NewMemoryPinner(),
		reserveBytes: DefaultReserveBytes,
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() RuntimeState {
	return RuntimeState(w.state.Load())
}

// IsActive reports whether the worker owns a live execution context.
func (w *Worker) IsActive() bool {
	st := w.State()

	return st == StateRunning || st == StatePaused
}

// IsRunning reports whether the loop hook is currently being invoked
// every cycle.
func (w *Worker) IsRunning() bool {
	return w.State() == StateRunning
}

// Cycles returns the number of cycle boundaries passed since Start. It
// keeps advancing while the worker is paused.
func (w *Worker) Cycles() uint64 {
	return w.cycles.Load()
}

// TID returns the kernel thread id of the worker's execution context, or
// 0 when the worker has not started.
func (w *Worker) TID() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.tid
}

// Policy returns the configured scheduling policy.
func (w *Worker) Policy() Policy {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.policy
}

// Priority returns the configured scheduling priority.
func (w *Worker) Priority() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.priority
}

// Affinity returns the configured CPU set.
func (w *Worker) Affinity() CPUSet {
	w.mu.Lock()
	defer w.mu.Unlock()

	set := make(CPUSet, len(w.affinity))
	for core := range w.affinity {
		set[core] = struct{}{}
	}

	return set
}

// Period returns the cycle period recorded by Arm.
func (w *Worker) Period() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.period
}

// SetMemoryPinner replaces the memory pinning implementation. Pass
// NopMemoryPinner to run without page locking. Effective at next Start.
func (w *Worker) SetMemoryPinner(p MemoryPinner, reserveBytes int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pinner = p
	w.reserveBytes = reserveBytes
}

// SetAffinity updates the CPU set. A running worker has the change
// applied to its thread immediately; otherwise it takes effect at the
// next Start.
func (w *Worker) SetAffinity(cores ...int) error {
	set, err := BuildCPUSetFrom(cores)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.affinity = set
	if w.IsActive() && w.tid != 0 {
		return setThreadAffinity(w.tid, set)
	}

	return nil
}

// SetSchedulingAttributes updates scheduling policy and priority. A
// negative priority selects the policy default: 1 for FIFO and round
// robin, 0 for normal. A nonzero priority under normal scheduling is
// clamped to 0 with a warning. A running worker has the change applied
// to its thread immediately.
func (w *Worker) SetSchedulingAttributes(policy Policy, priority int) error {
	if priority < 0 {
		if policy == PolicyFIFO || policy == PolicyRoundRobin {
			priority = 1
		} else {
			priority = 0
		}
	}
	if policy == PolicyNormal && priority != 0 {
		logger.Warn().
			Str("worker", w.name).
			Int("priority", priority).
			Msg("Priority under normal policy must be 0, clamping")
		priority = 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.policy = policy
	w.priority = priority
	if w.IsActive() && w.tid != 0 {
		return setThreadSchedAttr(w.tid, policy, priority)
	}

	return nil
}

// SetInitHook installs the hook run once before the first cycle.
// Rejected once the worker has ever become active.
func (w *Worker) SetInitHook(hook Hook) {
	if w.everActive.Load() {
		logger.Warn().Str("worker", w.name).Msg("Worker was already active, init hook not set")
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.initHook = hook
}

// SetLoopHook installs the hook run once per cycle. Rejected while the
// worker is active.
func (w *Worker) SetLoopHook(hook Hook) {
	if w.IsActive() {
		logger.Warn().Str("worker", w.name).Msg("Worker is active, loop hook not set")
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loopHook = hook
}

// SetEndHook installs the hook run after a clean stop. Rejected once the
// worker has ever become active.
func (w *Worker) SetEndHook(hook Hook) {
	if w.everActive.Load() {
		logger.Warn().Str("worker", w.name).Msg("Worker was already active, end hook not set")
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.endHook = hook
}

// SetEmergencyHook installs the hook run after a missed deadline, before
// the execution context self-terminates. Rejected once the worker has
// ever become active.
func (w *Worker) SetEmergencyHook(hook Hook) {
	if w.everActive.Load() {
		logger.Warn().Str("worker", w.name).Msg("Worker was already active, emergency hook not set")
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emergencyHook = hook
}

// Arm records the cycle period and readies the worker for Start. Fails
// with ErrMissingLoopHook when no loop hook is set.
func (w *Worker) Arm(cyclePeriod time.Duration) error {
	errFactory := errors.New()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.loopHook == nil {
		return errFactory.New(errors.ErrMissingLoopHook)
	}
	if cyclePeriod <= 0 {
		return errFactory.WithData(errors.ErrInvalidPeriod, cyclePeriod)
	}
	if w.IsActive() {
		return errFactory.New(errors.ErrWorkerActive)
	}

	w.period = cyclePeriod
	w.state.Store(int32(StateArmed))

	return nil
}

// Start pins process memory and spawns the execution context. The new
// thread applies the configured affinity and scheduling attributes to
// itself before the first cycle.
func (w *Worker) Start() error {
	errFactory := errors.New()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.IsActive() {
		return errFactory.New(errors.ErrWorkerActive)
	}
	if w.State() != StateArmed {
		return errFactory.New(errors.ErrWorkerNotArmed)
	}

	// Fault the pages in from the starting thread, before the cycle
	// schedule begins, so the worker never takes a first-touch fault.
	if err := w.pinner.Pin(w.reserveBytes); err != nil {
		logger.Warn().
			Str("worker", w.name).
			Err(err).
			Msg("Memory pinning unavailable, continuing unpinned")
	}

	w.run = true
	w.stopReq = false
	w.cycles.Store(0)
	w.done = make(chan struct{})
	w.state.Store(int32(StateRunning))
	w.everActive.Store(true)

	go w.threadMain()

	return nil
}

// Pause keeps the cycle heartbeat and the deadline schedule alive but
// skips the loop hook. Resuming therefore needs no catch-up: the next
// executed cycle is still phase-aligned with the original schedule.
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() != StateRunning {
		return
	}
	w.run = false
	w.state.Store(int32(StatePaused))
}

// Resume re-enables loop hook invocation after Pause.
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() != StatePaused {
		return
	}
	w.run = true
	w.state.Store(int32(StateRunning))
}

// Stop requests a cooperative stop and joins the execution context. The
// stop flag is checked once per cycle boundary, so the caller blocks for
// at most one period plus one in-flight loop-body call. Idempotent, and
// also reclaims a thread that self-terminated after a deadline miss.
func (w *Worker) Stop() {
	switch w.State() {
	case StateRunning, StatePaused:
		w.mu.Lock()
		w.stopReq = true
		w.run = false
		w.mu.Unlock()
		<-w.done
		w.state.Store(int32(StateStopped))
		logger.Info().Str("worker", w.name).Msg("Worker stopped")
	case StateDeadlineMissed:
		if w.done != nil {
			<-w.done
		}
		w.state.Store(int32(StateStopped))
		logger.Info().Str("worker", w.name).Msg("Worker reclaimed after deadline miss")
	default:
	}
}

// threadMain is the body of the worker's execution context.
func (w *Worker) threadMain() {
	runtime.LockOSThread()
	defer close(w.done)

	w.mu.Lock()
	tid := currentThreadID()
	w.tid = tid
	if err := setThreadAffinity(w.tid, w.affinity); err != nil {
		logger.Warn().Str("worker", w.name).Err(err).Msg("Failed to apply CPU affinity")
	}
	if err := setThreadSchedAttr(w.tid, w.policy, w.priority); err != nil {
		logger.Warn().Str("worker", w.name).Err(err).Msg("Failed to apply scheduling attributes")
	}
	clock := NewCycleClock(w.period)
	// Normal scheduling gives no timing guarantee, so an overrun there
	// is expected noise rather than a broken contract.
	ignoreDeadline := w.policy == PolicyNormal
	initHook := w.initHook
	w.mu.Unlock()

	logger.Debug().
		Str("worker", w.name).
		Int("tid", tid).
		Dur("period", clock.Period()).
		Msg("Worker thread started")

	deadlineMissed := false

	if initHook != nil {
		clock.Reset()
		w.mu.Lock()
		initHook()
		w.mu.Unlock()
		deadlineMissed = !(clock.WaitUntilNext() || ignoreDeadline)
	} else {
		clock.Reset()
	}

	for !deadlineMissed {
		w.cycles.Add(1)
		// The bounded lock wait and the cycle sleep target the same
		// absolute instant, so one iteration spans exactly one period.
		deadline := clock.NextTime()
		if !w.mu.LockBefore(deadline) {
			// Lock contention consumed the cycle. Skipping the body is
			// the contract here, a deadline miss is not: realign to the
			// schedule and carry on.
			clock.Next()
			continue
		}
		stop := w.stopReq
		if !stop && w.run {
			w.loopHook()
		}
		w.mu.Unlock()
		if stop {
			break
		}
		deadlineMissed = !(clock.WaitUntilNext() || ignoreDeadline)
	}

	if deadlineMissed {
		logger.Error().
			Str("worker", w.name).
			Dur("period", clock.Period()).
			Msg("Deadline missed, worker self-terminating")
		w.mu.Lock()
		if w.emergencyHook != nil {
			w.emergencyHook()
		}
		w.run = false
		w.mu.Unlock()
		w.state.Store(int32(StateDeadlineMissed))

		return
	}

	if w.endHook != nil {
		w.mu.Lock()
		w.endHook()
		w.mu.Unlock()
	}
}
