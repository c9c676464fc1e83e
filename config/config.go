package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	iface "PoseSilhouette/interface"
)

const (
	CameraDevice = "device"
	CameraStill  = "still"

	ModelMoveNet = "MoveNet"
	BackendCPU   = "cpu"

	defaultIntervalMs = 100
	defaultTimeoutMs  = 5000
)

var ErrInvalidConfig = errors.New("invalid config")

type CameraConfig struct {
	Source    string `yaml:"source"`
	DeviceID  int    `yaml:"deviceID"`
	ImagePath string `yaml:"imagePath"`
}

type DetectorConfig struct {
	Endpoint     string `yaml:"endpoint"`
	ModelVariant string `yaml:"modelVariant"`
	Backend      string `yaml:"backend"`
	TimeoutMs    int    `yaml:"timeoutMs"`
}

type PollerConfig struct {
	IntervalMs int `yaml:"intervalMs"`
}

type OverlayConfig struct {
	SilhouettePath string `yaml:"silhouettePath"`
}

type Config struct {
	HTTPPort    int            `yaml:"HTTPPort"`
	RPCPort     int            `yaml:"RPCPort"`
	MetricsPort int            `yaml:"MetricsPort"`
	LogLevel    string         `yaml:"logLevel"`
	Development bool           `yaml:"development"`
	Camera      CameraConfig   `yaml:"camera"`
	Detector    DetectorConfig `yaml:"detector"`
	Poller      PollerConfig   `yaml:"poller"`
	Overlay     OverlayConfig  `yaml:"overlay"`
}

func Default() Config {
	return Config{
		HTTPPort:    8080,
		RPCPort:     50051,
		MetricsPort: 9090,
		LogLevel:    "info",
		Camera:      CameraConfig{Source: CameraDevice},
		Detector: DetectorConfig{
			Endpoint:     "http://127.0.0.1:8500",
			ModelVariant: ModelMoveNet,
			Backend:      BackendCPU,
			TimeoutMs:    defaultTimeoutMs,
		},
		Poller: PollerConfig{IntervalMs: defaultIntervalMs},
	}
}

// Load 读取 path，在 Default 的基础上覆盖并校验
func Load(path string, log *zap.Logger) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data, log)
}

func Parse(data []byte, log *zap.Logger) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.normalize(log); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize 可修正的值打 warning 后修正，其余直接报错
func (c *Config) normalize(log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if c.Poller.IntervalMs <= 0 {
		log.Warn("invalid poller.intervalMs, using default", zap.Int("got", c.Poller.IntervalMs), zap.Int("default", defaultIntervalMs))
		c.Poller.IntervalMs = defaultIntervalMs
	}
	if c.Detector.TimeoutMs <= 0 {
		log.Warn("invalid detector.timeoutMs, using default", zap.Int("got", c.Detector.TimeoutMs), zap.Int("default", defaultTimeoutMs))
		c.Detector.TimeoutMs = defaultTimeoutMs
	}
	switch c.Camera.Source {
	case CameraDevice:
		if c.Camera.DeviceID < 0 {
			return fmt.Errorf("%w: camera.deviceID must be >= 0, got %d", ErrInvalidConfig, c.Camera.DeviceID)
		}
	case CameraStill:
		if c.Camera.ImagePath == "" {
			return fmt.Errorf("%w: camera.imagePath is required for source %q", ErrInvalidConfig, CameraStill)
		}
	default:
		return fmt.Errorf("%w: unsupported camera.source %q", ErrInvalidConfig, c.Camera.Source)
	}
	if c.Detector.ModelVariant != ModelMoveNet {
		return fmt.Errorf("%w: unsupported detector.modelVariant %q", ErrInvalidConfig, c.Detector.ModelVariant)
	}
	if c.Detector.Backend != BackendCPU {
		return fmt.Errorf("%w: unsupported detector.backend %q", ErrInvalidConfig, c.Detector.Backend)
	}
	if c.Detector.Endpoint == "" {
		return fmt.Errorf("%w: detector.endpoint cannot be empty", ErrInvalidConfig)
	}
	return nil
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalMs) * time.Millisecond
}

func (c Config) DetectorTimeout() time.Duration {
	return time.Duration(c.Detector.TimeoutMs) * time.Millisecond
}

// Model 传给 pose loader 的模型配置
func (c Config) Model() iface.ModelConfig {
	return iface.ModelConfig{Variant: c.Detector.ModelVariant, Backend: c.Detector.Backend}
}
