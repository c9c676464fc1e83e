package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"PoseSilhouette/api"
	"PoseSilhouette/camera"
	"PoseSilhouette/config"
	"PoseSilhouette/engine"
	rpc "PoseSilhouette/gRPC"
	"PoseSilhouette/logger"
	"PoseSilhouette/monitor"
	"PoseSilhouette/pose"
	"PoseSilhouette/render"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := logger.InitProduction(""); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath); err != nil {
		logger.Log().Error("pose silhouette exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath, logger.Log())
	if err != nil {
		return err
	}
	if cfg.Development {
		err = logger.InitDevelopment(cfg.LogLevel)
	} else {
		err = logger.InitProduction(cfg.LogLevel)
	}
	if err != nil {
		return err
	}
	log := logger.Log()
	log.Info("config loaded",
		zap.Int("httpPort", cfg.HTTPPort),
		zap.Int("rpcPort", cfg.RPCPort),
		zap.Int("metricsPort", cfg.MetricsPort),
		zap.String("camera", cfg.Camera.Source),
		zap.String("detector", cfg.Detector.Endpoint),
		zap.Duration("interval", cfg.PollInterval()),
	)

	cam, err := camera.New(cfg.Camera, log.Named("camera"))
	if err != nil {
		return err
	}
	canvas, err := render.LoadCanvas(cfg.Overlay.SilhouettePath)
	if err != nil {
		return multierr.Append(err, cam.Close())
	}

	metrics := monitor.New()
	factory := engine.Factory{
		Endpoint: cfg.Detector.Endpoint,
		Timeout:  cfg.DetectorTimeout(),
		Logger:   log.Named("engine"),
	}
	session := pose.NewSession(cam, factory,
		pose.WithInterval(cfg.PollInterval()),
		pose.WithModel(cfg.Model()),
		pose.WithObserver(metrics),
		pose.WithLogger(log.Named("pose")),
	)
	httpSrv := api.NewServer(session, canvas, metrics, log.Named("http"))
	rpcSrv := rpc.NewServer(session, metrics, log.Named("grpc"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	//HTTP + websocket
	g.Go(func() error { return httpSrv.Run(gctx, cfg.HTTPPort) })
	//gRPC server setup
	g.Go(func() error { return rpcSrv.Run(gctx, cfg.RPCPort) })
	g.Go(func() error { return metrics.StartMon(gctx, cfg.MetricsPort, log) })
	// 收到 Shutdown RPC 后取消所有任务
	g.Go(func() error {
		select {
		case <-rpcSrv.ShutdownRequested():
			log.Warn("shutting down")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	err = g.Wait()
	session.Close()
	err = multierr.Append(err, cam.Close())
	if err == nil {
		log.Info("safely exited")
	}
	return err
}
