package pose

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	iface "PoseSilhouette/interface"
)

const DefaultInterval = 100 * time.Millisecond

type Stage string

const (
	StageCapture  Stage = "capture"
	StageEstimate Stage = "estimate"
)

// TickError is a recoverable failure of a single tick. The tick is skipped
// and the published PoseSet is left alone.
type TickError struct {
	Stage Stage
	Err   error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("pose tick %s: %v", e.Stage, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}

type Outcome string

const (
	OutcomePublished      Outcome = "published"
	OutcomeInactive       Outcome = "inactive"
	OutcomeBusy           Outcome = "busy"
	OutcomeCaptureFailed  Outcome = "capture_failed"
	OutcomeEstimateFailed Outcome = "estimate_failed"
	OutcomeCancelled      Outcome = "cancelled"
)

// Observer is told how every firing of the poller ended.
type Observer interface {
	ObserveTick(outcome Outcome, latency time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveTick(Outcome, time.Duration) {}

// Poller captures a frame and runs the detector on a fixed period. At most one
// tick is in flight; a firing that lands while one is running is dropped.
type Poller struct {
	camera   iface.Camera
	detector iface.Detector
	store    *Store
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
	observer Observer

	busy atomic.Bool
	seq  atomic.Uint64
	wg   sync.WaitGroup
}

type PollerOption func(*Poller)

func WithPollerClock(c clock.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

func WithPollerInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

func WithPollerObserver(o Observer) PollerOption {
	return func(p *Poller) { p.observer = o }
}

func NewPoller(camera iface.Camera, detector iface.Detector, store *Store, logger *zap.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		camera:   camera,
		detector: detector,
		store:    store,
		clock:    clock.New(),
		interval: DefaultInterval,
		logger:   logger,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	return p
}

// Run fires ticks until ctx is cancelled, then waits for the in-flight tick
// to return. No capture or estimate call starts after cancellation.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.logger.Debug("pose poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("pose poller stopped")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			if !p.busy.CompareAndSwap(false, true) {
				p.observer.ObserveTick(OutcomeBusy, 0)
				continue
			}
			seq := p.seq.Add(1)
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer p.busy.Store(false)
				start := p.clock.Now()
				outcome := p.tick(ctx, seq)
				p.observer.ObserveTick(outcome, p.clock.Since(start))
			}()
		}
	}
}

func (p *Poller) tick(ctx context.Context, seq uint64) Outcome {
	capture, err := p.camera.Capture(ctx)
	if err != nil {
		return p.fail(ctx, &TickError{Stage: StageCapture, Err: err}, OutcomeCaptureFailed)
	}
	if capture.Status != iface.StreamActive {
		return OutcomeInactive
	}
	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	poses, err := p.detector.EstimatePoses(ctx, capture.Frame)
	if err != nil {
		return p.fail(ctx, &TickError{Stage: StageEstimate, Err: err}, OutcomeEstimateFailed)
	}
	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	p.store.Publish(seq, poses, p.clock.Now())
	return OutcomePublished
}

func (p *Poller) fail(ctx context.Context, tickErr *TickError, outcome Outcome) Outcome {
	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	p.logger.Warn("error detecting poses", zap.String("stage", string(tickErr.Stage)), zap.Error(tickErr))
	return outcome
}
