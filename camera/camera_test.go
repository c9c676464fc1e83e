package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PoseSilhouette/config"
	iface "PoseSilhouette/interface"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "person.png")
	img := imaging.New(64, 48, color.NRGBA{R: 200, G: 180, B: 160, A: 255})
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestStillGrantedAndActive(t *testing.T) {
	s := NewStill(writeTestImage(t), nil)

	capture, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, iface.StreamInactive, capture.Status)

	status, err := s.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, iface.PermissionGranted, status)

	capture, err = s.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, iface.StreamActive, capture.Status)
	assert.Equal(t, 64, capture.Frame.Width)
	assert.Equal(t, 48, capture.Frame.Height)
	assert.False(t, capture.Frame.CapturedAt.IsZero())

	decoded, format, err := image.Decode(bytes.NewReader(capture.Frame.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, decoded.Bounds().Dx())

	require.NoError(t, s.Close())
	capture, err = s.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, iface.StreamInactive, capture.Status)
}

func TestStillMissingFileDenied(t *testing.T) {
	s := NewStill(filepath.Join(t.TempDir(), "nobody.png"), nil)
	status, err := s.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, iface.PermissionDenied, status)
}

func TestStillCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
	_, err := NewStill(path, nil).RequestPermission(context.Background())
	assert.Error(t, err)
}

func TestStillCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStill(writeTestImage(t), nil).Capture(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeviceInactiveBeforePermission(t *testing.T) {
	d := NewDevice(0, nil)
	capture, err := d.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, iface.StreamInactive, capture.Status)
	assert.NoError(t, d.Close())
}

func TestNew(t *testing.T) {
	cam, err := New(config.CameraConfig{Source: config.CameraStill, ImagePath: "x.png"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Still{}, cam)

	cam, err = New(config.CameraConfig{Source: config.CameraDevice, DeviceID: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cam.(*Device).DeviceID)

	_, err = New(config.CameraConfig{Source: "rtsp"}, nil)
	assert.Error(t, err)
}
