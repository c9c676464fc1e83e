package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	iface "PoseSilhouette/interface"
)

// Device reads frames from a local video device through OpenCV. Opening the
// device is the permission request: if the OS refuses it, access is denied.
type Device struct {
	DeviceID int

	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	logger  *zap.Logger
}

func NewDevice(deviceID int, logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{DeviceID: deviceID, logger: logger}
}

func (d *Device) RequestPermission(ctx context.Context) (iface.PermissionStatus, error) {
	if err := ctx.Err(); err != nil {
		return iface.PermissionUndetermined, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture != nil {
		return iface.PermissionGranted, nil
	}
	vc, err := gocv.OpenVideoCapture(d.DeviceID)
	if err != nil {
		d.logger.Info("camera device refused", zap.Int("device", d.DeviceID), zap.Error(err))
		return iface.PermissionDenied, nil
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		d.logger.Info("camera device not opened", zap.Int("device", d.DeviceID))
		return iface.PermissionDenied, nil
	}
	d.capture = vc
	d.mat = gocv.NewMat()
	return iface.PermissionGranted, nil
}

// Capture grabs the next frame and encodes it as JPEG. A device that was never
// opened, or has gone away, reports an inactive stream.
func (d *Device) Capture(ctx context.Context) (iface.Capture, error) {
	if err := ctx.Err(); err != nil {
		return iface.Capture{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture == nil || !d.capture.IsOpened() {
		return iface.Capture{Status: iface.StreamInactive}, nil
	}
	if ok := d.capture.Read(&d.mat); !ok {
		return iface.Capture{}, errors.New("camera read failed")
	}
	if d.mat.Empty() {
		return iface.Capture{Status: iface.StreamInactive}, nil
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, d.mat)
	if err != nil {
		return iface.Capture{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return iface.Capture{
		Status: iface.StreamActive,
		Frame: iface.Frame{
			Data:       append([]byte(nil), buf.GetBytes()...),
			Width:      d.mat.Cols(),
			Height:     d.mat.Rows(),
			CapturedAt: time.Now(),
		},
	}, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture == nil {
		return nil
	}
	err := multierr.Combine(d.mat.Close(), d.capture.Close())
	d.capture = nil
	return err
}
