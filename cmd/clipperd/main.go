package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/clipper-camera/clipper-app/internal/config"
	"github.com/clipper-camera/clipper-app/internal/contacts"
	"github.com/clipper-camera/clipper-app/internal/daemon"
	"github.com/clipper-camera/clipper-app/internal/history"
	"github.com/clipper-camera/clipper-app/internal/ipc"
	"github.com/clipper-camera/clipper-app/internal/logging"
	"github.com/clipper-camera/clipper-app/internal/processor"
	"github.com/clipper-camera/clipper-app/internal/queue"
	"github.com/clipper-camera/clipper-app/internal/transfer"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	socketPath := flag.String("socket", "", "override IPC socket path")
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

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}
	hist, err := history.Open(cfg)
	if err != nil {
		_ = store.Close()
		logger.Error("open history store", logging.Error(err))
		return
	}

	directory, err := contacts.NewDirectory(cfg)
	if err != nil {
		logger.Warn("load contacts directory", logging.Error(err))
	}

	proc, err := processor.New(processor.Deps{
		Config:   cfg,
		Store:    store,
		History:  hist,
		Executor: transfer.NewExecutor(cfg),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("create processor", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, hist, proc, directory, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	socket := cfg.SocketPath()
	if *socketPath != "" {
		socket = *socketPath
	}
	ipcServer, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("clipperd shutting down")
}
