package camera

import (
	"fmt"

	"go.uber.org/zap"

	"PoseSilhouette/config"
	iface "PoseSilhouette/interface"
)

// New builds the camera named by cfg.Source.
func New(cfg config.CameraConfig, logger *zap.Logger) (iface.Camera, error) {
	switch cfg.Source {
	case config.CameraDevice:
		return NewDevice(cfg.DeviceID, logger), nil
	case config.CameraStill:
		return NewStill(cfg.ImagePath, logger), nil
	default:
		return nil, fmt.Errorf("unsupported camera source %q", cfg.Source)
	}
}
