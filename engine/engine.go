package engine

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	iface "PoseSilhouette/interface"
)

// Detector 远程推理服务上的一个姿态模型句柄，加载后可并发调用 EstimatePoses
type Detector struct {
	Endpoint string

	mu      sync.RWMutex
	modelID string
	model   iface.ModelConfig
	state   int

	// 只限制单次推理和释放请求，创建模型不设超时
	timeout time.Duration
	client  *resty.Client
	logger  *zap.Logger
}

func New(endpoint string, timeout time.Duration, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(endpoint).
		SetHeader("Accept", "application/json")
	return &Detector{
		Endpoint: endpoint,
		state:    REGISTERED,
		timeout:  timeout,
		client:   client,
		logger:   logger,
	}
}

// LoadModel 让服务端实例化模型，目前只支持 MoveNet + cpu
func (d *Detector) LoadModel(ctx context.Context, cfg iface.ModelConfig) error {
	if cfg.Variant != ModelMoveNet {
		return fmt.Errorf("%w: variant %q", ErrUnsupportedModel, cfg.Variant)
	}
	if cfg.Backend != BackendCPU {
		return fmt.Errorf("%w: backend %q", ErrUnsupportedModel, cfg.Backend)
	}
	d.mu.RLock()
	state := d.state
	d.mu.RUnlock()
	if state == UNREGISTERED {
		return ErrNotRegistered
	}

	var created createModelResponse
	var apiErr errorResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(createModelRequest{Variant: cfg.Variant, Backend: cfg.Backend}).
		SetResult(&created).
		SetError(&apiErr).
		Post("/v1/models")
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("create model: server returned %s: %s", resp.Status(), apiErr.Error)
	}
	if created.ID == "" {
		return fmt.Errorf("create model: %w: empty model id", ErrMalformedResult)
	}

	d.mu.Lock()
	d.modelID = created.ID
	d.model = cfg
	d.state = IDLE
	d.mu.Unlock()
	d.logger.Info("pose model loaded", zap.String("endpoint", d.Endpoint), zap.String("modelID", created.ID), zap.String("variant", cfg.Variant))
	return nil
}

func (d *Detector) EstimatePoses(ctx context.Context, frame iface.Frame) (iface.PoseSet, error) {
	d.mu.RLock()
	state, modelID := d.state, d.modelID
	d.mu.RUnlock()
	switch state {
	case UNREGISTERED:
		return nil, ErrNotRegistered
	case REGISTERED:
		return nil, ErrModelNotLoaded
	}
	if len(frame.Data) == 0 {
		return nil, fmt.Errorf("estimate poses: empty frame")
	}
	ctx, cancel := d.bounded(ctx)
	defer cancel()

	var out estimateResponse
	var apiErr errorResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", modelID).
		SetHeader("Content-Type", "image/jpeg").
		SetHeader("X-Frame-Width", strconv.Itoa(frame.Width)).
		SetHeader("X-Frame-Height", strconv.Itoa(frame.Height)).
		SetBody(frame.Data).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/models/{id}/estimate")
	if err != nil {
		return nil, fmt.Errorf("estimate poses: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("estimate poses: server returned %s: %s", resp.Status(), apiErr.Error)
	}
	if err := validate(out.Poses); err != nil {
		return nil, err
	}
	return iface.PoseSet(out.Poses), nil
}

func validate(poses []iface.Pose) error {
	for i, p := range poses {
		for _, kp := range p.Keypoints {
			if kp.Score < 0 || kp.Score > 1 {
				return fmt.Errorf("%w: pose %d keypoint %q score %v outside [0,1]", ErrMalformedResult, i, kp.Name, kp.Score)
			}
		}
	}
	return nil
}

// Close 释放远程模型，之后句柄不可再用
func (d *Detector) Close() error {
	d.mu.Lock()
	modelID, state := d.modelID, d.state
	d.modelID = ""
	d.model = iface.ModelConfig{}
	d.state = UNREGISTERED
	d.mu.Unlock()
	if state != IDLE {
		return nil
	}

	ctx, cancel := d.bounded(context.Background())
	defer cancel()
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", modelID).
		Delete("/v1/models/{id}")
	if err != nil {
		return fmt.Errorf("release model: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("release model: server returned %s", resp.Status())
	}
	return nil
}

func (d *Detector) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *Detector) CheckConfig() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Config{
		Endpoint: d.Endpoint,
		ModelID:  d.modelID,
		Model:    d.model,
		State:    d.state,
	}
}

// Factory 给 pose loader 创建已加载好模型的 Detector
type Factory struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

func (f Factory) Create(ctx context.Context, cfg iface.ModelConfig) (iface.Detector, error) {
	d := New(f.Endpoint, f.Timeout, f.Logger)
	if err := d.LoadModel(ctx, cfg); err != nil {
		return nil, err
	}
	return d, nil
}
