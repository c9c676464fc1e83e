package pose

import (
	"context"
	"errors"
	"sync"
	"time"

	iface "PoseSilhouette/interface"
)

type fakeCamera struct {
	mu          sync.Mutex
	status      iface.PermissionStatus
	permErr     error
	permCalls   int
	permBlock   bool
	stream      iface.StreamStatus
	captureErr  error
	captures    int
	captureGate chan struct{}
	entered     chan struct{}
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{status: iface.PermissionGranted, stream: iface.StreamActive}
}

func (c *fakeCamera) RequestPermission(ctx context.Context) (iface.PermissionStatus, error) {
	c.mu.Lock()
	c.permCalls++
	block, status, err := c.permBlock, c.status, c.permErr
	c.mu.Unlock()
	if block {
		<-ctx.Done()
		return iface.PermissionUndetermined, ctx.Err()
	}
	return status, err
}

func (c *fakeCamera) Capture(ctx context.Context) (iface.Capture, error) {
	c.mu.Lock()
	gate, entered := c.captureGate, c.entered
	c.mu.Unlock()
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures++
	if c.captureErr != nil {
		return iface.Capture{}, c.captureErr
	}
	return iface.Capture{
		Status: c.stream,
		Frame:  iface.Frame{Data: []byte{0xff, 0xd8}, Width: 2, Height: 1, CapturedAt: time.Unix(0, 0)},
	}, nil
}

func (c *fakeCamera) Close() error { return nil }

func (c *fakeCamera) set(fn func(c *fakeCamera)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

func (c *fakeCamera) permissionCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permCalls
}

// step is one scripted detector answer. Calls beyond the script repeat the
// last step.
type step struct {
	poses iface.PoseSet
	err   error
}

type fakeDetector struct {
	mu     sync.Mutex
	script []step
	calls  int
	block  chan struct{}
	closed bool
}

func (d *fakeDetector) EstimatePoses(ctx context.Context, frame iface.Frame) (iface.PoseSet, error) {
	d.mu.Lock()
	d.calls++
	n := d.calls
	block := d.block
	d.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.script) == 0 {
		return nil, errors.New("no script")
	}
	idx := n - 1
	if idx >= len(d.script) {
		idx = len(d.script) - 1
	}
	return d.script[idx].poses, d.script[idx].err
}

func (d *fakeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDetector) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[Outcome]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{outcomes: make(map[Outcome]int)}
}

func (o *recordingObserver) ObserveTick(outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *recordingObserver) count(outcome Outcome) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[outcome]
}
