package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jnidzwetzki/pg-debug-scan/internal/config"
	"github.com/jnidzwetzki/pg-debug-scan/internal/engine"
	"github.com/jnidzwetzki/pg-debug-scan/internal/http"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogger(&cfg)

	reg := metrics.NewRegistry()

	eng, err := engine.Open(cfg.Storage, reg)
	if err != nil {
		fmt.Printf("Failed to open engine: %v\n", err)
		os.Exit(1)
	}

	server := http.NewServer(eng, reg, strconv.Itoa(cfg.Server.Port))
	if err := server.Start(); err != nil {
		fmt.Printf("Failed to start server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("pg-debug-scan is running on :%d (node %s)\n", cfg.Server.Port, cfg.Node.Name)
	fmt.Println("Press Ctrl+C to stop...")

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		fmt.Printf("Error stopping server: %v\n", err)
	}
	if err := eng.Close(); err != nil {
		fmt.Printf("Error closing engine: %v\n", err)
	}

	fmt.Println("pg-debug-scan stopped")
	os.Exit(0)
}
