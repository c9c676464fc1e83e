package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	iface "PoseSilhouette/interface"
)

// Still serves one image file as an always-active stream. Useful for demos
// and for exercising a detector without hardware.
type Still struct {
	Path string

	mu     sync.Mutex
	frame  *iface.Frame
	logger *zap.Logger
}

func NewStill(path string, logger *zap.Logger) *Still {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Still{Path: path, logger: logger}
}

// RequestPermission grants access when the file can be read and decoded.
// A missing or unreadable file is a denial; a corrupt one is an error.
func (s *Still) RequestPermission(ctx context.Context) (iface.PermissionStatus, error) {
	if err := ctx.Err(); err != nil {
		return iface.PermissionUndetermined, err
	}
	img, err := imaging.Open(s.Path, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			s.logger.Info("still image not accessible", zap.String("path", s.Path), zap.Error(err))
			return iface.PermissionDenied, nil
		}
		return iface.PermissionUndetermined, fmt.Errorf("open still image: %w", err)
	}
	frame, err := encodeFrame(img)
	if err != nil {
		return iface.PermissionUndetermined, err
	}
	s.mu.Lock()
	s.frame = &frame
	s.mu.Unlock()
	return iface.PermissionGranted, nil
}

func (s *Still) Capture(ctx context.Context) (iface.Capture, error) {
	if err := ctx.Err(); err != nil {
		return iface.Capture{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return iface.Capture{Status: iface.StreamInactive}, nil
	}
	frame := *s.frame
	frame.CapturedAt = time.Now()
	return iface.Capture{Status: iface.StreamActive, Frame: frame}, nil
}

func (s *Still) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
	return nil
}

func encodeFrame(img image.Image) (iface.Frame, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return iface.Frame{}, fmt.Errorf("encode still image: %w", err)
	}
	b := img.Bounds()
	return iface.Frame{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}
