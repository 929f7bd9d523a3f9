package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashrecon/cmd/reconctl/cli"
	"github.com/odyssey-erp/cashrecon/internal/app"
	"github.com/odyssey-erp/cashrecon/internal/platform/db"
	"github.com/odyssey-erp/cashrecon/jobs"
	"github.com/odyssey-erp/cashrecon/migrations"
)

const usage = `usage: reconctl <command> [flags]

commands:
  migrate   apply pending database migrations
  sweep     enqueue an evidence sweep (-date YYYY-MM-DD, -force, -json)
  stats     print job queue counters (-queue name, -json)`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg, "reconctl")

	switch args[0] {
	case "migrate":
		return migrate(ctx, cfg, logger)
	case "sweep":
		fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
		date := fs.String("date", "", "business date to sweep as of (YYYY-MM-DD)")
		force := fs.Bool("force", false, "sweep every store regardless of its purge day")
		asJSON := fs.Bool("json", false, "print JSON output")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			return 1
		}
		defer client.Close()
		return cli.NewJobsCLI(client, nil).SweepCommand(ctx, cli.SweepOptions{Date: *date, Force: *force, JSONOutput: *asJSON})
	case "stats":
		fs := flag.NewFlagSet("stats", flag.ContinueOnError)
		queue := fs.String("queue", jobs.QueueDefault, "queue to inspect")
		asJSON := fs.Bool("json", false, "print JSON output")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer inspector.Close()
		return cli.NewJobsCLI(nil, inspector).StatsCommand(ctx, cli.StatsOptions{Queue: *queue, JSONOutput: *asJSON})
	default:
		fmt.Fprintf(os.Stderr, "%v: %s\n%s\n", cli.ErrUnknownCommand, args[0], usage)
		return 2
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("reconctl"))
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	version, err := db.Migrate(ctx, pool, migrations.Files, logger)
	if err != nil {
		logger.Error("migrate", slog.Any("error", err), slog.Uint64("version", uint64(version)))
		return 1
	}
	logger.Info("migrations complete", slog.Uint64("version", uint64(version)))
	return 0
}
