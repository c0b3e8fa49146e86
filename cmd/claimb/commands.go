package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"claimb/internal/champion"
	"claimb/internal/config"
	"claimb/internal/model"
	"claimb/internal/notify"
	"claimb/internal/orchestrator"
	"claimb/internal/summoner"
)

// handleArgs parses a sub-command's flags and its single Name#TAG argument.
func handleArgs(fs *flag.FlagSet, args []string) (string, string, error) {
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return "", "", flag.ErrHelp
	}
	return summoner.ParseHandle(fs.Arg(0))
}

func lookupCmd(ctx context.Context, engine *orchestrator.Engine, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	region := fs.String("region", cfg.Region, "platform region (na1, euw1, kr, ...)")
	name, tag, err := handleArgs(fs, args)
	if err != nil {
		return err
	}

	sum, err := engine.LookupSummoner(ctx, name, tag, *region)
	if err != nil {
		return err
	}

	fmt.Printf("%s  (level %d, %s)\n", sum.Handle(), sum.SummonerLevel, strings.ToUpper(sum.Region))
	fmt.Printf("PUUID: %s\n", sum.PUUID)
	if len(sum.Ranks) == 0 {
		fmt.Println("Unranked")
	}
	for _, r := range sum.Ranks {
		fmt.Printf("%-16s %s %s %d LP  (%dW %dL)\n", r.QueueType, r.Tier, r.Division, r.LeaguePoints, r.Wins, r.Losses)
	}
	if !sum.LastSynchronized.IsZero() {
		fmt.Printf("Matches last synced %s ago\n", time.Since(sum.LastSynchronized).Round(time.Second))
	}
	return nil
}

func summonersCmd(ctx context.Context, engine *orchestrator.Engine) error {
	list, err := engine.Summoners(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No stored summoners")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RIOT ID\tREGION\tLEVEL\tLAST SYNC")
	for _, s := range list {
		synced := "never"
		if !s.LastSynchronized.IsZero() {
			synced = s.LastSynchronized.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Handle(), strings.ToUpper(s.Region), s.SummonerLevel, synced)
	}
	return w.Flush()
}

func matchesCmd(ctx context.Context, engine *orchestrator.Engine, cfg *config.Config, args []string, force bool) error {
	command := "matches"
	if force {
		command = "refresh"
	}
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	region := fs.String("region", cfg.Region, "platform region (na1, euw1, kr, ...)")
	limit := fs.Int("limit", 20, "number of matches to show")
	name, tag, err := handleArgs(fs, args)
	if err != nil {
		return err
	}

	if err := engine.Warmup(ctx); err != nil {
		log.Warn().Err(err).Msg("reference data unavailable, champion names may be missing")
	}

	sum, err := engine.ResolveSummoner(ctx, name, tag, *region)
	if err != nil {
		return err
	}

	var matches []model.Match
	if force {
		matches, err = engine.RefreshMatches(ctx, sum, *limit)
	} else {
		matches, err = engine.LoadMatches(ctx, sum, *limit)
	}
	if err != nil {
		return err
	}

	printMatches(os.Stdout, sum, matches, engine.Champions())

	// let a background refresh finish before the process exits
	engine.Wait()
	return nil
}

func printMatches(out io.Writer, sum *model.Summoner, matches []model.Match, champs *champion.Registry) {
	if len(matches) == 0 {
		fmt.Fprintf(out, "No relevant matches for %s\n", sum.Handle())
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MATCH\tPLAYED\tQUEUE\tCHAMPION\tROLE\tKDA\tCS\tRESULT")
	for _, m := range matches {
		p, ok := m.Participant(sum.PUUID)
		if !ok {
			continue
		}
		result := "Loss"
		if p.Win {
			result = "Win"
		}
		champ := p.ChampionName
		if champ == "" {
			champ = champs.Name(p.ChampionID)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d/%d/%d\t%d\t%s\n",
			m.MatchID, m.CreatedAt().Format("2006-01-02 15:04"), m.QueueID, champ, p.TeamPosition,
			p.Kills, p.Deaths, p.Assists, p.CreepScore(), result)
	}
	w.Flush()
}

func serveCmd(ctx context.Context, engine *orchestrator.Engine, hub *notify.Hub, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.ListenAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := engine.Warmup(ctx); err != nil {
		log.Warn().Err(err).Msg("warmup incomplete")
	}
	go hub.Run(ctx)
	engine.StartSweeper(ctx, cfg.SweepInterval)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/ws", hub)
	(&api{engine: engine, region: cfg.Region}).register(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if n := engine.CancelAllPendingWork(); n > 0 {
		log.Info().Int("operations", n).Msg("cancelled pending work")
	}
	return srv.Shutdown(shutdownCtx)
}
