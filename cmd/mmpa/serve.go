package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/germanamz/mmpa/pkg/httpapi"
	"github.com/germanamz/mmpa/pkg/tools/mcpserver"
)

const defaultAddr = "127.0.0.1:7717"

func runServe(args []string) error {
	fs, cf := newFlagSet("serve", "Run the render loop and the HTTP control API.")
	addr := fs.String("addr", "", "listen address (overrides http.addr in config, default "+defaultAddr+")")
	_ = fs.Parse(args)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, cfg, err := openEngine(ctx, cf, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	listen := firstNonEmpty(*addr, cfg.HTTP.Addr, defaultAddr)
	srv := &http.Server{
		Addr:              listen,
		Handler:           httpapi.New(eng, httpapi.Options{Logger: cfg.Logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- eng.Run(ctx) }()

	srvErr := make(chan error, 1)
	go func() {
		slog.Info("mmpa: listening", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if err != nil {
			cancel()
			<-loopDone
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("mmpa: shutdown", "error", err)
	}
	cancel()
	<-loopDone
	slog.Info("mmpa: stopped")

	return nil
}

func runMCP(args []string) error {
	fs, cf := newFlagSet("mcp", "Run the render loop and serve its tools over MCP on stdin/stdout.")
	_ = fs.Parse(args)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// stdout carries the protocol; logs go to stderr.
	eng, cfg, err := openEngine(ctx, cf, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	srv := mcpserver.New("mmpa", version, mcpserver.Options{
		Logger:       cfg.Logger,
		Instructions: "Tools for a morph engine: capture anchors, morph between them, play sequences and tune the signal bus.",
	})
	srv.RegisterToolBox(eng.Tools())

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan error, 1)
	go func() { loopDone <- eng.Run(loopCtx) }()

	err = srv.Serve(ctx, os.Stdin, os.Stdout)
	stopLoop()
	<-loopDone
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
