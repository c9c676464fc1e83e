package engine

import (
	"errors"

	iface "PoseSilhouette/interface"
)

const UNREGISTERED = 0x0001
const REGISTERED = 0x0002
const IDLE = 0x0003

const (
	ModelMoveNet = "MoveNet"
	BackendCPU   = "cpu"
)

var (
	ErrNotRegistered    = errors.New("detector not registered")
	ErrModelNotLoaded   = errors.New("model not loaded")
	ErrUnsupportedModel = errors.New("unsupported model")
	ErrMalformedResult  = errors.New("malformed pose result")
)

type createModelRequest struct {
	Variant string `json:"variant"`
	Backend string `json:"backend"`
}

type createModelResponse struct {
	ID string `json:"id"`
}

type estimateResponse struct {
	Poses []iface.Pose `json:"poses"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Config 已加载 detector 的自身信息
type Config struct {
	Endpoint string
	ModelID  string
	Model    iface.ModelConfig
	State    int
}
