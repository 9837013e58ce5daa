// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"telegram-order-bot/internal/config"
	"telegram-order-bot/internal/infra/logging"
	"telegram-order-bot/internal/infra/web"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to optional YAML config file (env vars override it)")
	devMode := flag.Bool("dev", false, "developer mode: console logs, no redaction, log-only notifier")
	manifestPath := flag.String("manifest", "", "check this render.yaml against the environment at startup")
	mintToken := flag.Bool("admin-token", false, "print a bearer token for the admin API and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("order-bot %s (%s)\n", version, commit)
		return
	}

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *mintToken {
		tok, err := web.NewAuthManager(cfg.Admin.APISecret, cfg.Admin.TokenTTL).Mint("cli")
		if err != nil {
			log.Fatalf("admin token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, options{manifest: *manifestPath}, logger); err != nil {
		logger.Error().Err(err).Msg("bot stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("bot stopped")
}
