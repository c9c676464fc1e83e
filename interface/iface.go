package iface

import (
	"context"
	"time"
)

type PermissionStatus string

const (
	PermissionUndetermined PermissionStatus = "undetermined"
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
)

type StreamStatus int

const (
	StreamInactive StreamStatus = iota
	StreamActive
)

func (s StreamStatus) String() string {
	if s == StreamActive {
		return "active"
	}
	return "inactive"
}

// Frame is one JPEG-encoded camera image.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// Capture is what the camera hands back on every poll: the stream state and
// the current frame, which is only meaningful while the stream is active.
type Capture struct {
	Status StreamStatus
	Frame  Frame
}

type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Pose is every keypoint found for one person.
type Pose struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score,omitempty"`
}

// PoseSet holds one Pose per detected person, in detector order.
type PoseSet []Pose

type ModelConfig struct {
	Variant string
	Backend string
}

type Camera interface {
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	Capture(ctx context.Context) (Capture, error)
	Close() error
}

type Detector interface {
	EstimatePoses(ctx context.Context, frame Frame) (PoseSet, error)
}

type DetectorFactory interface {
	Create(ctx context.Context, cfg ModelConfig) (Detector, error)
}

// DetectorFactoryFunc adapts a plain function to DetectorFactory.
type DetectorFactoryFunc func(ctx context.Context, cfg ModelConfig) (Detector, error)

func (f DetectorFactoryFunc) Create(ctx context.Context, cfg ModelConfig) (Detector, error) {
	return f(ctx, cfg)
}
