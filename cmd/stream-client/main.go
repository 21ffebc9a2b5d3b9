package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/client"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/config"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/events"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/logging"
)

var errConnectionFailed = errors.New("connection failed")

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "path to YAML config file",
		EnvVars: []string{"STREAMCLIENT_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "url",
		Usage: "signaling websocket URL, overrides signaling.url",
	},
	&cli.StringFlag{
		Name:  "channel",
		Usage: "channel to join, overrides signaling.channel_id",
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "serve Prometheus metrics on this address, e.g. :9100",
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error",
	},
}

func main() {
	app := &cli.App{
		Name:   "stream-client",
		Usage:  "join a channel and receive its WebRTC stream",
		Flags:  baseFlags,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("url") {
		cfg.Signaling.URL = c.String("url")
	}
	if c.IsSet("channel") {
		cfg.Signaling.ChannelID = c.String("channel")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if cfg.Signaling.ChannelID == "" {
		return nil, fmt.Errorf("%w: a channel is required", config.ErrInvalidConfig)
	}
	// flags bypass the checks Load ran
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := []client.Option{client.WithLogger(logger)}
	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, client.WithRegisterer(reg))
		metricsServer = startMetricsServer(cfg.Metrics.Addr, reg, logger)
	}

	streamClient, err := client.New(cfg, opts...)
	if err != nil {
		return err
	}

	failed := make(chan int, 1)
	streamClient.Subscribe(func(ev events.Event) {
		logEvent(logger, ev)
		if f, ok := ev.(events.ConnectionFailed); ok {
			select {
			case failed <- f.Attempts:
			default:
			}
		}
	})

	streamClient.StartStreaming(cfg.Signaling.URL, cfg.Signaling.ChannelID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("exit requested, shutting down", zap.String("signal", sig.String()))
	case attempts := <-failed:
		runErr = fmt.Errorf("%w after %d attempts", errConnectionFailed, attempts)
	}

	streamClient.Dispose()
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}
	return runErr
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func logEvent(logger *zap.Logger, ev events.Event) {
	switch ev := ev.(type) {
	case events.StatsUpdate:
		logger.Debug(ev.Name(),
			zap.Uint64("bytesReceived", ev.BytesReceived),
			zap.Uint64("packetsLost", ev.PacketsLost),
			zap.Float64("jitter", ev.Jitter),
			zap.Float64("bitrate", ev.Bitrate),
			zap.Duration("latency", ev.Latency),
		)
	case events.ConnectionStateChange:
		logger.Info(ev.Name(), zap.Stringer("state", ev.State))
	case events.RemoteStream:
		logger.Info(ev.Name(), zap.String("streamID", ev.StreamID), zap.Stringer("kind", ev.Track.Kind()))
	case events.Reconnecting:
		logger.Warn(ev.Name(), zap.Int("attempt", ev.Attempt), zap.Duration("delay", ev.Delay))
	case events.ConnectionFailed:
		logger.Error(ev.Name(), zap.Int("attempts", ev.Attempts))
	case events.Error:
		logger.Error(ev.Name(), zap.String("type", string(ev.Type)), zap.Error(ev.Err))
	case events.ChannelInfo:
		logger.Info(ev.Name(), zap.ByteString("payload", ev.Payload))
	case events.QualityChanged:
		logger.Info(ev.Name(), zap.String("action", ev.Action), zap.Int("targetKbps", ev.TargetBitrate))
	default:
		logger.Debug(ev.Name())
	}
}
