package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/hugr-lab/lakesoul-go"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var config string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured tables over Arrow Flight",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root, config)
		},
	}
	cmd.Flags().StringVarP(&config, "config", "c", "", "server configuration file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, path string) error {
	logger, err := root.logger()
	if err != nil {
		return err
	}
	cfg, err := loadServeConfig(afero.NewOsFs(), path)
	if err != nil {
		return err
	}
	tables, err := cfg.tables()
	if err != nil {
		return err
	}
	tokens, err := cfg.tokens()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	config := lakesoul.ServerConfig{
		Tables:          tables,
		Logger:          logger,
		MaxMessageSize:  cfg.MaxMessageSize,
		Address:         cfg.PublicAddress,
		Registerer:      registry,
		FilterCacheSize: cfg.FilterCacheSize,
	}
	if tokens != nil {
		config.Auth = lakesoul.StaticTokens(tokens)
	}
	if config.Address == "" {
		config.Address = cfg.Address
	}

	grpcServer := grpc.NewServer(lakesoul.ServerOptions(config)...)
	if err := lakesoul.NewServer(grpcServer, config); err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Address, err)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("serving metrics", "address", cfg.MetricsAddress)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcServer.Serve(lis) }()
	logger.Info("flight server listening", "address", lis.Addr().String(), "tables", len(tables))

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		logger.Info("shutting down")
		grpcServer.GracefulStop()
		err = <-serveErr
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
