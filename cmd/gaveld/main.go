package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"gavel/internal/config"
	"gavel/internal/daemon"
	"gavel/internal/hearings"
	"gavel/internal/ipc"
	"gavel/internal/logging"
	"gavel/internal/matching"
	"gavel/internal/orchestrator"
	"gavel/internal/registry"
	"gavel/internal/review"
	"gavel/internal/scheduler"
	"gavel/internal/stagerun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := hearings.Open(cfg)
	if err != nil {
		logger.Error("open hearing store", logging.Error(err))
		return
	}
	defer store.Close()

	registryStore := registry.NewStore(store.DB())
	matcher := matching.NewMatcher(registryStore, cfg)
	policy := matching.NewPolicy(cfg)
	reviewQueue := review.NewQueue(review.NewStore(store.DB()), store, registryStore, policy, logger)
	runner := stagerun.New(cfg, store, reviewQueue, matcher, policy, registryStore, logger)
	pipeline := orchestrator.NewManager(cfg, store, runner, logger)
	scheduleStore := scheduler.NewStore(store.DB())
	schedTimer := scheduler.NewManager(cfg, scheduleStore, pipeline, logger)

	d, err := daemon.New(cfg, store, logger, daemon.Components{
		Pipeline:  pipeline,
		Runner:    runner,
		Review:    reviewQueue,
		Scheduler: schedTimer,
		Schedules: scheduleStore,
	})
	if err != nil {
		logger.Error("construct daemon", logging.Error(err))
		return
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}
	defer d.Stop()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start ipc server", logging.Error(err))
		return
	}
	ipcServer.Serve()
	defer ipcServer.Close()

	logger.Info("gaveld ready",
		logging.String("socket", cfg.SocketPath()),
		logging.String("database", cfg.DatabasePath()))

	<-ctx.Done()
	logger.Info("shutdown signal received")
}
