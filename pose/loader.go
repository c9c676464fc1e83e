package pose

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	iface "PoseSilhouette/interface"
)

// DefaultModel is the only model configuration the loader builds.
var DefaultModel = iface.ModelConfig{Variant: "MoveNet", Backend: "cpu"}

var ErrDetectorInit = errors.New("detector initialization failed")

// Loader constructs one Detector in the background. There is no timeout and
// no fallback model: a construction error is reported through Err.
type Loader struct {
	factory iface.DetectorFactory
	model   iface.ModelConfig
	logger  *zap.Logger

	once sync.Once
	done chan struct{}

	mu       sync.RWMutex
	detector iface.Detector
	err      error
}

func NewLoader(factory iface.DetectorFactory, model iface.ModelConfig, logger *zap.Logger) *Loader {
	return &Loader{
		factory: factory,
		model:   model,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Load starts construction. Calls after the first are no-ops.
func (l *Loader) Load(ctx context.Context) {
	l.once.Do(func() {
		go l.load(ctx)
	})
}

func (l *Loader) load(ctx context.Context) {
	defer close(l.done)
	l.logger.Info("loading pose detector", zap.String("variant", l.model.Variant), zap.String("backend", l.model.Backend))
	det, err := l.factory.Create(ctx, l.model)
	if err == nil && det == nil {
		err = errors.New("factory returned a nil detector")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.err = fmt.Errorf("%w: %s/%s: %w", ErrDetectorInit, l.model.Variant, l.model.Backend, err)
		return
	}
	l.detector = det
	l.logger.Info("pose detector ready", zap.String("variant", l.model.Variant))
}

// Done is closed when construction has finished, successfully or not.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

func (l *Loader) Ready() bool {
	return l.Detector() != nil
}

func (l *Loader) Detector() iface.Detector {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.detector
}

func (l *Loader) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Reset drops the detector handle and returns it so the caller can dispose of
// it. The loader stays not-ready afterwards.
func (l *Loader) Reset() iface.Detector {
	l.mu.Lock()
	defer l.mu.Unlock()
	det := l.detector
	l.detector = nil
	return det
}
