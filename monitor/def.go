package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"PoseSilhouette/pose"
)

// Metrics 服务的 Prometheus registry，同时作为 pose poller 的 tick observer
type Metrics struct {
	registry *prometheus.Registry

	memUsage   prometheus.Gauge
	cpuUsage   prometheus.Gauge
	ticks      *prometheus.CounterVec
	tickTime   prometheus.Histogram
	GRPCTotal  prometheus.Counter
	WSSessions prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pose_poller_ticks_total",
			Help: "Pose poller firings by outcome",
		}, []string{"outcome"}),
		tickTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pose_poller_tick_seconds",
			Help:    "Time from capture start to publish or failure",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		GRPCTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grpc_requests_total",
			Help: "Total number of gRPC requests processed",
		}),
		WSSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_websocket_clients",
			Help: "Connected overlay websocket clients",
		}),
	}
	m.registry.MustRegister(m.memUsage, m.cpuUsage, m.ticks, m.tickTime, m.GRPCTotal, m.WSSessions)
	return m
}

// ObserveTick 实现 pose.Observer，busy 的 tick 没有真正执行，不记录耗时
func (m *Metrics) ObserveTick(outcome pose.Outcome, latency time.Duration) {
	m.ticks.WithLabelValues(string(outcome)).Inc()
	if outcome != pose.OutcomeBusy {
		m.tickTime.Observe(latency.Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) sample(p *process.Process) {
	if memInfo, err := p.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := p.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon 在 port 上提供 /metrics，每 500ms 采样一次本进程，直到 ctx 取消
func (m *Metrics) StartMon(ctx context.Context, port int, logger *zap.Logger) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("inspect own process: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	logger.Info("metrics server listening", zap.Int("port", port))

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errc:
			return fmt.Errorf("metrics server: %w", err)
		case <-ticker.C:
			m.sample(p)
		}
	}
}
