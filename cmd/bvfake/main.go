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

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/samvad-hq/briteverify-go/internal/config"
	"github.com/samvad-hq/briteverify-go/internal/fakeapi"
	"github.com/samvad-hq/briteverify-go/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bvfake start failed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("bvfake", pflag.ContinueOnError)
	config.RegisterFakeFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	fake := fakeapi.New(fakeapi.Options{
		APIKey:        cfg.APIKey,
		CompleteAfter: cfg.FakeCompleteAfter,
		Logger:        log,
	})

	server := &http.Server{
		Addr:              cfg.FakeAddr,
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.InfoObj("fake api listening", "fake_api", map[string]any{
		"addr":           cfg.FakeAddr,
		"complete_after": cfg.FakeCompleteAfter,
		"any_key":        cfg.APIKey == "",
	})

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorObj("fake api shutdown failed", "error", err.Error())
		return err
	}
	logger.InfoObj("fake api stopped", "fake_api", cfg.FakeAddr)
	return nil
}
