package pose

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	iface "PoseSilhouette/interface"
)

// Session is the state a mounted overlay owns: the permission answer, the
// detector handle and the published poses. The poller only runs while
// permission is granted and the detector is ready.
type Session struct {
	ID string

	camera   iface.Camera
	gate     *Gate
	loader   *Loader
	store    *Store
	logger   *zap.Logger
	clock    clock.Clock
	interval time.Duration
	observer Observer
	model    iface.ModelConfig

	active atomic.Bool

	mu        sync.Mutex
	polling   bool
	resetOnce sync.Once
	reset     chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

type Option func(*Session)

func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithInterval(d time.Duration) Option {
	return func(s *Session) { s.interval = d }
}

func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithModel overrides DefaultModel for the detector the session loads.
func WithModel(m iface.ModelConfig) Option {
	return func(s *Session) { s.model = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func NewSession(camera iface.Camera, factory iface.DetectorFactory, opts ...Option) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		camera:   camera,
		store:    NewStore(),
		logger:   zap.NewNop(),
		clock:    clock.New(),
		interval: DefaultInterval,
		observer: nopObserver{},
		model:    DefaultModel,
		reset:    make(chan struct{}),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", s.ID))
	s.gate = NewGate(camera, s.logger)
	s.loader = NewLoader(factory, s.model, s.logger)
	return s
}

// Run mounts the session. Permission and the detector are requested
// concurrently. A detector construction failure is returned as an error
// wrapping ErrDetectorInit. If permission is denied Run idles until ctx is
// done. Otherwise it polls until ctx is done, Close is called, or the
// detector is reset.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.loader.Load(ctx)
	go s.gate.Request(ctx)
	defer s.releaseWhenLoaded()

	gateDone, loaderDone := s.gate.Done(), s.loader.Done()
	for gateDone != nil || loaderDone != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-gateDone:
			gateDone = nil
		case <-loaderDone:
			loaderDone = nil
			if err := s.loader.Err(); err != nil {
				s.logger.Error("pose detector failed to load", zap.Error(err))
				return err
			}
		}
	}

	if s.gate.State() != PermissionGranted {
		s.logger.Info("camera permission denied, overlay stays inactive")
		<-ctx.Done()
		return nil
	}

	detector := s.loader.Detector()
	if detector == nil {
		return nil
	}
	s.mu.Lock()
	select {
	case <-s.reset:
		s.mu.Unlock()
		return nil
	default:
	}
	s.polling = true
	s.mu.Unlock()

	pollCtx, stop := context.WithCancel(ctx)
	defer stop()
	poller := NewPoller(s.camera, detector, s.store, s.logger,
		WithPollerClock(s.clock),
		WithPollerInterval(s.interval),
		WithPollerObserver(s.observer),
	)
	done := make(chan struct{})
	s.active.Store(true)
	go func() {
		defer close(done)
		poller.Run(pollCtx)
	}()
	s.logger.Info("pose poller active", zap.Duration("interval", s.interval))

	select {
	case <-ctx.Done():
	case <-s.reset:
		s.logger.Info("detector reset, stopping pose poller")
	}
	stop()
	<-done
	s.active.Store(false)
	s.mu.Lock()
	s.polling = false
	s.mu.Unlock()
	return nil
}

// ResetDetector makes the activation condition false: the poller is torn
// down and the detector handle is released.
func (s *Session) ResetDetector() {
	s.resetOnce.Do(func() {
		s.mu.Lock()
		polling := s.polling
		close(s.reset)
		s.mu.Unlock()
		// A running poller is stopped by Run first, which then releases.
		if !polling {
			s.releaseDetector()
		}
	})
}

// releaseWhenLoaded releases the detector now if construction has finished,
// or as soon as it does.
func (s *Session) releaseWhenLoaded() {
	select {
	case <-s.loader.Done():
		s.releaseDetector()
	default:
		go func() {
			<-s.loader.Done()
			s.releaseDetector()
		}()
	}
}

func (s *Session) releaseDetector() {
	if det, ok := s.loader.Reset().(io.Closer); ok {
		if err := det.Close(); err != nil {
			s.logger.Warn("closing detector", zap.Error(err))
		}
	}
}

// Close unmounts the session. Run returns after the poller has stopped and
// the detector has been released.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Session) Permission() PermissionState {
	return s.gate.State()
}

func (s *Session) DetectorReady() bool {
	return s.loader.Ready()
}

func (s *Session) Active() bool {
	return s.active.Load()
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) Overlay() Overlay {
	return s.store.Overlay()
}

func (s *Session) Subscribe() (<-chan struct{}, func()) {
	return s.store.Subscribe()
}

type Status struct {
	SessionID     string    `json:"sessionID"`
	Permission    string    `json:"permission"`
	DetectorReady bool      `json:"detectorReady"`
	PollerActive  bool      `json:"pollerActive"`
	Sequence      uint64    `json:"sequence"`
	LastUpdate    time.Time `json:"lastUpdate"`
}

func (s *Session) Status() Status {
	_, seq, at := s.store.Snapshot()
	return Status{
		SessionID:     s.ID,
		Permission:    s.Permission().String(),
		DetectorReady: s.DetectorReady(),
		PollerActive:  s.Active(),
		Sequence:      seq,
		LastUpdate:    at,
	}
}
