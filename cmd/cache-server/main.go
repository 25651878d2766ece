package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/leonardcser/entity-cache/internal/config"
	"github.com/leonardcser/entity-cache/internal/logger"
	"github.com/leonardcser/entity-cache/internal/storage"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	sock, db := cfg.SocketPath, cfg.BoltPath

	// Ensure socket dir exists and remove stale socket
	_ = os.MkdirAll(filepath.Dir(sock), 0o755)
	_ = os.MkdirAll(filepath.Dir(db), 0o755)
	_ = os.Remove(sock)

	store, err := storage.OpenBolt(db, storage.BoltOptions{})
	if err != nil {
		logger.Errorf("open %s: %v", db, err)
		os.Exit(1)
	}
	defer store.Close()

	l, err := net.Listen("unix", sock)
	if err != nil {
		logger.Errorf("listen on %s: %v", sock, err)
		os.Exit(1)
	}
	_ = os.Chmod(sock, 0o600)
	defer os.Remove(sock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("cache daemon serving %s on %s", db, sock)
	if err := storage.Serve(ctx, l, store); err != nil {
		logger.Errorf("serve: %v", err)
	}
	logger.Infof("cache daemon stopped")
}
