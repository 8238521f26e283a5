package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roostchat/roost/internal/auth"
	"github.com/roostchat/roost/internal/config"
	"github.com/roostchat/roost/internal/dispatch"
	"github.com/roostchat/roost/internal/logging"
	"github.com/roostchat/roost/internal/metrics"
	"github.com/roostchat/roost/internal/presence"
	"github.com/roostchat/roost/internal/registry"
	"github.com/roostchat/roost/internal/server"
	"github.com/roostchat/roost/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	users := store.NewUsers(db)
	messages := store.NewMessages(db)
	buddies := store.NewBuddies(db)

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	reg := registry.New()
	presenceSvc := presence.NewService(reg, users, buddies, m)
	dispatcher := dispatch.New(reg, messages, users, m)
	authSvc := auth.NewService(users, cfg.TokenTTL)
	defer authSvc.Close()

	srv := server.New(server.Params{
		Config:     cfg,
		Registry:   reg,
		Presence:   presenceSvc,
		Dispatcher: dispatcher,
		Auth:       authSvc,
		Users:      users,
		Metrics:    m,
		Gatherer:   promReg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := presence.NewIdleMonitor(reg, presenceSvc, cfg.Idle.SweepInterval, cfg.Idle.Threshold)
	go monitor.Run(ctx)

	httpServer := server.CreateServer(cfg.ListenAddr, srv.Routes())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		_ = server.ShutdownServer(httpServer, cfg.ShutdownTimeout)
		_ = srv.Shutdown(cfg.ShutdownTimeout)
	}()

	if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
