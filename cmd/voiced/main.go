// voiced is the voice agent worker. It owns the booking store, the
// skill registry, and the admin surface; voicectl bootstraps the host
// and execs this binary with a run mode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/karsk/voicectl/internal/admin"
	"github.com/karsk/voicectl/internal/agent"
	"github.com/karsk/voicectl/internal/assets"
	"github.com/karsk/voicectl/internal/booking"
	"github.com/karsk/voicectl/internal/config"
	"github.com/karsk/voicectl/internal/logging"
	"github.com/karsk/voicectl/internal/observability"
	"github.com/karsk/voicectl/internal/skills"
	"github.com/karsk/voicectl/internal/version"
)

const usage = `voiced - voice agent worker

Usage:
  voiced dev [--config voiced.toml]
  voiced start [--config voiced.toml]
  voiced download-files [--config voiced.toml]
  voiced version

Commands:
  dev              run the worker with console logging and debug verbosity
  start            run the worker with production JSON logging
  download-files   sync the pinned asset set to disk and exit
  version          print build information

download-files is idempotent: assets already present with a matching
digest are not fetched again.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "voiced: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	switch args[0] {
	case "download-files":
		return runDownloadFiles(args[1:])
	case "version":
		fmt.Println("voiced " + version.Info())
		return nil
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}

	mode, err := config.ParseMode(args[0])
	if err != nil {
		return err
	}
	return runAgent(mode, args[1:])
}

func parseConfigPath(name string, args []string) (string, bool, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() { fmt.Print(usage) }
	configPath := fs.String("config", "voiced.toml", "agent config file")
	err := fs.Parse(args)
	if err == pflag.ErrHelp {
		return "", true, nil
	}
	return *configPath, false, err
}

// runDownloadFiles converges the asset directory onto the pinned
// manifest. Bootstrap runs this as its final stage; a rerun over a
// complete directory fetches nothing.
func runDownloadFiles(args []string) error {
	configPath, done, err := parseConfigPath("download-files", args)
	if done || err != nil {
		return err
	}
	logging.ConfigureDev()

	cfg, err := config.LoadAgentConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncer, err := assets.NewSyncer(cfg.AssetManifest, cfg.AssetsDir)
	if err != nil {
		return err
	}
	stats, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}
	log.Info().Msgf("voiced download-files done fetched=%d skipped=%d bytes=%d dir=%q",
		stats.Fetched, stats.Skipped, stats.Bytes, syncer.Dir())
	return nil
}

// runAgent builds the worker and blocks until shutdown. The admin
// surface is attached only when admin_addr is configured.
func runAgent(mode config.Mode, args []string) error {
	configPath, done, err := parseConfigPath(mode.String(), args)
	if done || err != nil {
		return err
	}
	if mode == config.ModeStart {
		logging.ConfigureStart()
	} else {
		logging.ConfigureDev()
	}

	cfg, err := config.LoadAgentConfig(configPath)
	if err != nil {
		return err
	}
	observability.RegisterMetrics()
	log.Info().Msgf("voiced starting mode=%q worker=%q version=%q", mode, cfg.WorkerID, version.Info())

	store, err := booking.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := skills.NewRegistry()
	if err := registry.Register(skills.NewBookingSkill(store, cfg.Slots)); err != nil {
		return err
	}
	if err := registry.Register(skills.NewSessionSkill(cfg.Goodbye)); err != nil {
		return err
	}

	svc := agent.NewService(cfg, registry, store)
	svc.SetAdmin(admin.NewServer(svc))

	syncer, err := assets.NewSyncer(cfg.AssetManifest, cfg.AssetsDir)
	if err != nil {
		return err
	}
	svc.AddReadiness("assets", func(ctx context.Context) error {
		return syncer.Verify()
	})
	svc.AddReadiness("store", store.Ping)

	return svc.Run()
}
