// Команда migrate применяет и откатывает встроенные миграции схемы предложений.
//
//	migrate -direction up
//	migrate -direction down -steps 2
//	migrate -direction status -dsn postgres://...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/storage/postgres"
)

const envPostgresDSN = "OFFERS_POSTGRES_DSN"

var errDSNRequired = errors.New(envPostgresDSN + " (or -dsn) is required")

type options struct {
	direction string
	steps     int
	dsn       string
	timeout   time.Duration
}

// parseArgs разбирает флаги; пустой -dsn берётся из lookupEnv.
func parseArgs(args []string, lookupEnv func(string) string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.direction, "direction", "up", "up|down|status")
	fs.IntVar(&opts.steps, "steps", 0, "migrations to apply (0 = all) or roll back (0 = 1)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN, default $"+envPostgresDSN)
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	switch opts.direction {
	case "up", "down", "status":
	default:
		return options{}, fmt.Errorf("unsupported direction %q (use up|down|status)", opts.direction)
	}
	if opts.steps < 0 {
		return options{}, fmt.Errorf("steps must be >= 0, got %d", opts.steps)
	}

	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		opts.dsn = strings.TrimSpace(lookupEnv(envPostgresDSN))
	}
	if opts.dsn == "" {
		return options{}, errDSNRequired
	}
	return opts, nil
}

func run(ctx context.Context, out io.Writer, opts options) error {
	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	switch opts.direction {
	case "up":
		err = store.MigrateUp(ctx, opts.steps)
	case "down":
		err = store.MigrateDown(ctx, opts.steps)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", opts.direction, err)
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	_, _ = fmt.Fprintf(out, "migrate %s ok: version=%d applied=%d\n", opts.direction, state.Version, state.Applied)
	for _, name := range state.Pending {
		_, _ = fmt.Fprintf(out, "pending: %s\n", name)
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env")
	}

	opts, err := parseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		log.WithError(err).Fatal("invalid arguments")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if err := run(ctx, os.Stdout, opts); err != nil {
		cancel()
		log.WithError(err).WithField("direction", opts.direction).Fatal("migration failed")
	}
}
