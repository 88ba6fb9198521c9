// The agent runs the offline gateway for one device: it proxies the app's
// traffic, keeps the asset cache and receives push deliveries.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eggsregaco/regaco/internal/buildinfo"
	"github.com/eggsregaco/regaco/internal/gateway"
	"github.com/eggsregaco/regaco/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	log := logging.NewDefault()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := gateway.LoadConfig()

	store, err := gateway.OpenStore(ctx, cfg.CacheDBPath)
	if err != nil {
		log.Error(ctx, "opening gateway store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	gw, err := gateway.New(*cfg, store,
		gateway.LogNotifier{Log: log},
		gateway.BrowserWindows{BaseURL: cfg.PublicURL, Log: log},
		log,
	)
	if err != nil {
		log.Error(ctx, "building gateway", "error", err)
		os.Exit(1)
	}

	// an unreachable upstream must not brick the device: keep serving
	// whatever the current generation already holds
	if err := gw.Install(ctx); err != nil {
		log.Warn(ctx, "install incomplete, serving existing cache", "error", err)
	}
	if err := gw.Activate(ctx); err != nil {
		log.Error(ctx, "activating gateway", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "shutting down", "error", err)
		}
	}()

	log.Info(ctx, "gateway listening", "addr", cfg.ListenAddr, "upstream", cfg.UpstreamURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "gateway server", "error", err)
		os.Exit(1)
	}
}
