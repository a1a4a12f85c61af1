package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/internal/config"
	"github.com/omochice/relay-chat/internal/logging"
	"github.com/omochice/relay-chat/internal/metrics"
	"github.com/omochice/relay-chat/internal/transport/mux"
	"github.com/omochice/relay-chat/internal/transport/tcp"
	"github.com/omochice/relay-chat/internal/transport/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadRelay()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := chat.NewHub(
		chat.WithLogger(logger.Named("hub")),
		chat.WithMetrics(metrics.NewRelay(reg)),
	)

	wsServer := ws.New(cfg.WSAddr, hub,
		ws.WithLogger(logger.Named("ws")),
		ws.WithGatherer(reg),
		ws.WithQueueSize(cfg.QueueSize),
	)

	var tcpServer *tcp.Server
	if cfg.TCPAddr != "" {
		tcpServer = tcp.New(cfg.TCPAddr, hub,
			tcp.WithLogger(logger.Named("tcp")),
			tcp.WithQueueSize(cfg.QueueSize),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var shared *mux.Mux
	if cfg.SharedPort() {
		root, err := net.Listen("tcp", cfg.WSAddr)
		if err != nil {
			return fmt.Errorf("failed to start relay: %w", err)
		}
		shared = mux.New(root, mux.WithLogger(logger.Named("mux")))
		g.Go(shared.Serve)
		g.Go(func() error { return wsServer.Serve(shared.HTTP()) })
		g.Go(func() error { return tcpServer.Serve(shared.Raw()) })
	} else {
		g.Go(wsServer.Start)
		if tcpServer != nil {
			g.Go(tcpServer.Start)
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down relay")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shared != nil {
			_ = shared.Close()
		}
		if tcpServer != nil {
			tcpServer.Stop()
		}
		if err := wsServer.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("stop WebSocket server: %w", err)
		}
		return nil
	})

	logger.Info("relay starting",
		zap.String("ws_addr", cfg.WSAddr),
		zap.String("tcp_addr", cfg.TCPAddr),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Bool("shared_port", cfg.SharedPort()))

	if err := g.Wait(); err != nil {
		logger.Error("relay stopped", zap.Error(err))
		return err
	}
	logger.Info("relay stopped")
	return nil
}
