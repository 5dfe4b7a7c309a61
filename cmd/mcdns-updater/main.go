package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/UAC-Org/mcdns-updater/internal/config"
	_ "github.com/UAC-Org/mcdns-updater/internal/dns/providers"
	"github.com/UAC-Org/mcdns-updater/internal/probe"
	"github.com/UAC-Org/mcdns-updater/internal/updater"
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zlog, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: building logger: %v\n", err)
		os.Exit(1)
	}
	defer zlog.Sync()

	log := zapr.NewLogger(zlog)

	if err := run(log, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(log logr.Logger, configPath string) error {
	log.Info("starting mcdns-updater", "version", Version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	log.Info("loaded config", "path", configPath, "provider", cfg.Provider, "nodes", len(cfg.Nodes))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u := &updater.Updater{
		Config: cfg,
		Pinger: probe.ServerListPinger{},
		Log:    log,
		Out:    os.Stdout,
	}
	return u.Run(ctx)
}
