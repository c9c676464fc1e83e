package pose

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	iface "PoseSilhouette/interface"
)

type PermissionState int32

const (
	PermissionUnknown PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (p PermissionState) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Gate asks the camera for authorization exactly once. A denial is final for
// the life of the Gate.
type Gate struct {
	camera iface.Camera
	logger *zap.Logger
	once   sync.Once
	state  atomic.Int32
	done   chan struct{}
}

func NewGate(camera iface.Camera, logger *zap.Logger) *Gate {
	return &Gate{
		camera: camera,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Request blocks until the camera answers. Only the first call reaches the
// camera; later calls wait for and return that answer.
func (g *Gate) Request(ctx context.Context) PermissionState {
	g.once.Do(func() {
		defer close(g.done)
		status, err := g.camera.RequestPermission(ctx)
		if err != nil {
			g.logger.Warn("camera permission request failed", zap.Error(err))
			g.state.Store(int32(PermissionDenied))
			return
		}
		if status == iface.PermissionGranted {
			g.state.Store(int32(PermissionGranted))
			return
		}
		g.logger.Info("camera permission not granted", zap.String("status", string(status)))
		g.state.Store(int32(PermissionDenied))
	})
	<-g.done
	return g.State()
}

func (g *Gate) State() PermissionState {
	return PermissionState(g.state.Load())
}

// Done is closed once the answer is known.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}
