// Package telemetry persists per-cycle control loop samples. The
// control thread hands samples over through a bounded queue and never
// blocks on storage; a background goroutine drains the queue into the
// repository.
package telemetry

import (
	"sync"
	"sync/atomic"

	"github.com/winchlab/servoctl/internal/errors"
	"github.com/winchlab/servoctl/internal/logger"
)

const defaultQueueDepth = 1024

type service struct {
	repo    Repository
	queue   chan Sample
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewService opens the repository and starts the drain goroutine.
func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitTelemetry, err)
	}

	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}

	s := &service{
		repo:  repo,
		queue: make(chan Sample, depth),
	}

	s.wg.Add(1)
	go s.drain()

	return s, nil
}

// Offer enqueues a sample without blocking. A full queue drops the
// sample: losing telemetry is acceptable, stalling the control cycle is
// not.
func (s *service) Offer(sample Sample) bool {
	select {
	case s.queue <- sample:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *service) drain() {
	defer s.wg.Done()

	for sample := range s.queue {
		sample := sample
		if err := s.repo.Record(&sample); err != nil {
			logger.Warn().Err(err).Msg("Failed to record telemetry sample")
		}
	}
}

func (s *service) Close() error {
	errFactory := errors.New()

	close(s.queue)
	s.wg.Wait()

	if n := s.dropped.Load(); n > 0 {
		logger.Warn().Uint64("dropped", n).Msg("Telemetry samples dropped under load")
	}

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(errors.ErrCloseTelemetry, err)
	}

	return nil
}
