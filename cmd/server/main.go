package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/GriffinCanCode/toolrc/internal/infrastructure/config"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/server"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override environment values
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Server port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Server host")
	flag.StringVar(&cfg.Catalog.Dir, "tools", cfg.Catalog.Dir, "Directory of plugin tools")
	flag.DurationVar(&cfg.Sandbox.EvalTimeout, "eval-timeout", cfg.Sandbox.EvalTimeout, "Per-evaluation timeout")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging (console, debug level)")
	flag.Parse()

	if cfg.Logging.Development {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	srv, err := server.NewServer(cfg, version)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		_ = srv.Close()
		log.Fatalf("Server error: %v", err)
	}
}
