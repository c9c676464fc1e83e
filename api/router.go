package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"PoseSilhouette/monitor"
	"PoseSilhouette/pose"
	"PoseSilhouette/render"
)

// OverlaySource is the read side of a pose session.
type OverlaySource interface {
	Overlay() pose.Overlay
	Status() pose.Status
	Subscribe() (<-chan struct{}, func())
	ResetDetector()
}

type Server struct {
	source   OverlaySource
	canvas   *render.Canvas
	metrics  *monitor.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewServer(source OverlaySource, canvas *render.Canvas, metrics *monitor.Metrics, logger *zap.Logger) *Server {
	if canvas == nil {
		canvas = render.NewCanvas(nil)
	}
	return &Server{
		source:  source,
		canvas:  canvas,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": s.source.Status()})
	})
	r.GET("/api/overlay", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": s.source.Overlay()})
	})
	r.GET("/api/overlay.png", s.overlayPNG)
	r.POST("/api/detector/reset", func(c *gin.Context) {
		s.source.ResetDetector()
		c.JSON(http.StatusOK, gin.H{"data": "Detector reset, poller stopped"})
	})
	r.GET("/ws/overlay", s.overlayWS)
	return r
}

func (s *Server) overlayPNG(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.canvas.EncodePNG(&buf, s.source.Overlay()); err != nil {
		s.logger.Error("encode overlay", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render overlay"})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// overlayWS sends the current overlay on connect and again after every pose
// update until the client goes away.
func (s *Server) overlayWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	if s.metrics != nil {
		s.metrics.WSSessions.Inc()
		defer s.metrics.WSSessions.Dec()
	}

	updates, unsubscribe := s.source.Subscribe()
	defer unsubscribe()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.source.Overlay()); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(s.source.Overlay()); err != nil {
				s.logger.Debug("overlay websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// Run serves the router on port until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Info("http server listening", zap.Int("port", port))
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
