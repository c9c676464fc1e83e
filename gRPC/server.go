package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"PoseSilhouette/monitor"
	"PoseSilhouette/pose"
)

type Source interface {
	Overlay() pose.Overlay
	Status() pose.Status
}

type Server struct {
	source  Source
	metrics *monitor.Metrics
	logger  *zap.Logger

	closeOnce sync.Once
	closeCh   chan struct{}
}

func NewServer(source Source, metrics *monitor.Metrics, logger *zap.Logger) *Server {
	return &Server{
		source:  source,
		metrics: metrics,
		logger:  logger,
		closeCh: make(chan struct{}),
	}
}

func (s *Server) GetOverlay(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.source.Overlay())
}

func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.source.Status())
}

// Shutdown 通知进程退出，先回复再关闭
func (s *Server) Shutdown(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.logger.Warn("shutdown requested over gRPC")
	s.closeOnce.Do(func() { close(s.closeCh) })
	return &emptypb.Empty{}, nil
}

// ShutdownRequested 收到 Shutdown 后关闭
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.closeCh
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

func (s *Server) interceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if s.metrics != nil {
		s.metrics.GRPCTotal.Inc()
	}
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("grpc call", zap.String("method", info.FullMethod), zap.Duration("took", time.Since(start)), zap.Error(err))
	return resp, err
}

// Serve 阻塞直到 ctx 取消，然后优雅停止
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	g := grpc.NewServer(grpc.UnaryInterceptor(s.interceptor))
	RegisterOverlayServiceServer(g, s)
	errc := make(chan error, 1)
	go func() {
		errc <- g.Serve(lis)
	}()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	case <-ctx.Done():
		g.GracefulStop()
		return nil
	}
}

func (s *Server) Run(ctx context.Context, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	s.logger.Info("grpc server listening", zap.Int("port", port))
	return s.Serve(ctx, lis)
}
