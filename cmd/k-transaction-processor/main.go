// Command k-transaction-processor is the pipeline binary: when
// --initialize-db or --upgrade-db is set it bootstraps the K-protocol schema
// (C9), then it wires the notification listener,
// dispatch queue, and worker pool (C6-C8) behind the supervisor (C10) and
// runs until an interrupt signal or a fatal component exit, the way
// cmd/kcn/main.go assembles a klaytn node behind a urfave/cli.App.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/thesheepcat/k-transaction-processor/internal/config"
	"github.com/thesheepcat/k-transaction-processor/internal/klog"
	"github.com/thesheepcat/k-transaction-processor/internal/store"
	"github.com/thesheepcat/k-transaction-processor/internal/supervisor"
)

var logger = klog.Named("main")

// gitCommit is set at build time via -ldflags, matching the teacher's
// nodecmd.GetGitCommit() version-stamping convention; left empty in a
// plain `go build` and reported as "unknown" in that case.
var gitCommit = ""

func main() {
	app := cli.NewApp()
	app.Name = "k-transaction-processor"
	app.Usage = "index K-protocol social actions out of blockchain transaction payloads"
	app.Version = versionString()
	app.Flags = config.Flags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Errorw("fatal error", "err", err)
		os.Exit(1)
	}
}

func versionString() string {
	if gitCommit == "" {
		return "unknown"
	}
	return gitCommit
}

// run is the cli.App's Action: resolve config, bootstrap the schema if a
// schema flag is set, wire the supervisor, and block until shutdown. A non-nil return here becomes
// the process's non-zero exit code, per §6.4.
func run(ctx *cli.Context) error {
	cfg := config.FromContext(ctx)
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := store.Open(cfg.Database.ConnectionString(), cfg.Database.MaxConnections)
	if err != nil {
		return err
	}
	defer db.Close()

	st := store.New(db)

	if cfg.InitializeDB || cfg.UpgradeDB {
		bootstrapCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := st.Bootstrap(bootstrapCtx, cfg.Processing.ChannelName, cfg.InitializeDB); err != nil {
			return err
		}
	}

	sup := supervisor.New(cfg, cfg.Database.ConnectionString(), st)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infow("starting k-transaction-processor", "version", versionString())
	return sup.Run(runCtx)
}
