package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"drugsecure/internal/adapters/httpapi"
	"drugsecure/internal/adapters/reports"
	"drugsecure/internal/blob"
	"drugsecure/internal/core"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the report export worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", a.cfg.HTTP.Addr, err)
			}
			return a.serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

// serve runs the API on ln until ctx is cancelled.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	logger := a.logger
	store, err := core.OpenPersistentStoreWith(a.cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("open sample store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("close sample store", "error", err)
			}
		}()
	}

	blobs, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("open report store: %w", err)
	}

	metrics := newMetricsSink(a.cfg.Metrics)
	metrics.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts, err := a.cfg.ServiceOptions()
	if err != nil {
		_ = ln.Close()
		return err
	}
	opts = append(opts,
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics.recorder),
	)
	svc := core.NewService(store, opts...)
	defer svc.Wait()

	worker := reports.NewWorker(svc, blobs,
		reports.WithLogger(logger.With("component", "reports")),
		reports.WithAudit(&reports.MemoryAuditLog{}),
		reports.WithQueueSize(a.cfg.Export.QueueSize),
	)

	gin.SetMode(gin.ReleaseMode)
	handler := httpapi.NewHandler(svc, worker)
	handler.Gatherer = metrics.registry
	handler.DebugVars = metrics.vars != nil
	handler.Logger = logger.With("component", "http")
	server := &http.Server{Handler: handler.Router()}

	logger.Info("drugsecure listening",
		"addr", ln.Addr().String(),
		"storage", string(a.cfg.Storage.Driver),
		"blob", string(blobs.Driver()),
		"feature_set", string(svc.FeatureSet()),
		"benchmark", svc.Benchmark().Name,
		"metrics", metrics.backend,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
