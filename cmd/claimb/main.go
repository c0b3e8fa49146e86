package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"claimb/internal/coaching"
	"claimb/internal/config"
	"claimb/internal/logging"
	"claimb/internal/matchsync"
	"claimb/internal/notify"
	"claimb/internal/orchestrator"
	"claimb/internal/relevance"
	"claimb/internal/riot"
	"claimb/internal/store"
)

const usage = `Usage:
  claimb lookup  [-region na1] Name#TAG
  claimb matches [-region na1] [-limit 20] Name#TAG
  claimb refresh [-region na1] [-limit 20] Name#TAG
  claimb summoners
  claimb check-key
  claimb clear
  claimb serve   [-addr :8090]

Configuration is read from CLAIMB_* environment variables and .env files.`

func main() {
	envFile := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envFile != "" {
		log.Debug().Str("path", envFile).Msg("loaded .env")
	}

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	if command == "check-key" {
		return checkKey(ctx, cfg)
	}

	switch command {
	case "lookup", "matches", "refresh", "summoners", "clear", "serve":
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	st, err := store.Open(ctx, store.Config{Driver: cfg.StoreDriver, DSN: cfg.StoreDSN, AuthToken: cfg.StoreAuthToken})
	if err != nil {
		return err
	}
	defer st.Close()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	var hub *notify.Hub
	if command == "serve" {
		hub = notify.NewHub()
	}
	engine, err := newEngine(st, provider, hub, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	switch command {
	case "lookup":
		return lookupCmd(ctx, engine, cfg, args)
	case "matches":
		return matchesCmd(ctx, engine, cfg, args, false)
	case "refresh":
		return matchesCmd(ctx, engine, cfg, args, true)
	case "summoners":
		return summonersCmd(ctx, engine)
	case "clear":
		if err := engine.ClearAllCachedData(ctx); err != nil {
			return err
		}
		fmt.Println("Cached matches and coaching responses cleared.")
		return nil
	default:
		return serveCmd(ctx, engine, hub, cfg, args)
	}
}

func newEngine(st *store.Store, provider orchestrator.Provider, hub *notify.Hub, cfg *config.Config) (*orchestrator.Engine, error) {
	deps := orchestrator.Deps{Provider: provider}
	if cfg.CoachingURL != "" {
		deps.Generator = coaching.NewHTTPGenerator(cfg.CoachingURL, cfg.CoachingToken, cfg.CoachingDevice)
	}
	if hub != nil {
		deps.Notifier = hub
	}

	filter := relevance.New(
		relevance.WithQueues(cfg.AllowedQueues...),
		relevance.WithMinDuration(cfg.MinMatchDuration),
		relevance.WithMaxAge(cfg.MaxMatchAge),
	)
	syncCfg := matchsync.DefaultConfig()
	syncCfg.MaxStoredMatches = cfg.MaxStoredMatches
	syncCfg.TargetSampleSize = cfg.TargetSampleSize
	syncCfg.MinAnalysisMatches = cfg.MinAnalysisMatches

	return orchestrator.New(st, deps,
		orchestrator.WithFilter(filter),
		orchestrator.WithSyncConfig(syncCfg),
		orchestrator.WithCoachingTTL(cfg.CoachingTTL),
	)
}

func checkKey(ctx context.Context, cfg *config.Config) error {
	client, err := riot.NewClient(cfg.RiotAPIKey)
	if err != nil {
		return err
	}
	valid, err := client.ValidateKey(ctx, cfg.Region)
	if err != nil {
		return err
	}
	if !valid {
		return errors.New("riot api key rejected (expired or revoked)")
	}
	fmt.Println("Riot API key is valid.")
	return nil
}
