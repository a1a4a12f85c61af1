package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/relay-chat/internal/client"
	"github.com/omochice/relay-chat/internal/config"
	"github.com/omochice/relay-chat/internal/logging"
	"github.com/omochice/relay-chat/internal/metrics"
	"github.com/omochice/relay-chat/internal/transport"
	"github.com/omochice/relay-chat/internal/tui"
)

func main() {
	relay := flag.String("relay", "", "Relay URL, overrides CHAT_RELAY_URL (e.g., ws://localhost:8080/ws, tcp://localhost:9000)")
	flag.Parse()

	if err := run(*relay); err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}

func run(relayOverride string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if relayOverride != "" {
		cfg.RelayURL = relayOverride
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// The terminal belongs to the UI, so logs go to a file.
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Path: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	feed := tui.NewFeed()

	ctrl := client.New(cfg.RelayURL, transport.Dial, feed,
		client.WithLogger(logger.Named("client")),
		client.WithMetrics(metrics.NewClient(reg)),
		client.WithStateObserver(feed.Observe),
	)
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Debug("closing connection", zap.Error(err))
		}
	}()

	model := tui.New(cfg.RelayURL, ctrl, client.NewChannel(ctrl))

	g, ctx := errgroup.WithContext(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	g.Go(func() error {
		return feed.Run(ctx, p)
	})

	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, g, cfg.MetricsAddr, reg, logger)
	}

	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	logger.Info("chat client started", zap.String("relay", cfg.RelayURL))
	if err := g.Wait(); err != nil {
		logger.Error("chat client stopped", zap.Error(err))
		return err
	}
	logger.Info("chat client stopped")
	return nil
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
