// Команда migrate управляет схемой PostgreSQL food-service:
//
//	migrate -direction=up|down|status|list [-steps=N] [-dsn=...]
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

	"github.com/vladislavdragonenkov/foodstore/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	dsnEnv         = "FOOD_POSTGRES_DSN"
)

var errUsage = errors.New("usage")

// schemaMigrator: часть *postgres.Store, нужная команде.
type schemaMigrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (int64, int, error)
	ListMigrations(ctx context.Context) ([]postgres.MigrationInfo, error)
	Close() error
}

// openStore подменяется в тестах.
var openStore = func(ctx context.Context, dsn string) (schemaMigrator, error) {
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	err := run(ctx, os.Args[1:], os.Stdout, os.Getenv)
	cancel()
	if err != nil {
		if !errors.Is(err, errUsage) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	direction := fs.String("direction", "up", "migration direction: up|down|status|list")
	steps := fs.Int("steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	dsn := fs.String("dsn", "", "PostgreSQL DSN (fallback: "+dsnEnv+")")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	action, ok := actions[strings.ToLower(strings.TrimSpace(*direction))]
	if !ok {
		return fmt.Errorf("unsupported direction: %s (use up|down|status|list)", *direction)
	}

	conn := strings.TrimSpace(*dsn)
	if conn == "" {
		conn = strings.TrimSpace(getenv(dsnEnv))
	}
	if conn == "" {
		return fmt.Errorf("%s (or -dsn) is required", dsnEnv)
	}

	store, err := openStore(ctx, conn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	return action(ctx, store, *steps, out)
}

type action func(ctx context.Context, store schemaMigrator, steps int, out io.Writer) error

var actions = map[string]action{
	"up": func(ctx context.Context, store schemaMigrator, steps int, out io.Writer) error {
		if err := store.MigrateUp(ctx, steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return printStatus(ctx, store, out, "migrate up ok")
	},
	"down": func(ctx context.Context, store schemaMigrator, steps int, out io.Writer) error {
		if err := store.MigrateDown(ctx, max(steps, 1)); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return printStatus(ctx, store, out, "migrate down ok")
	},
	"status": func(ctx context.Context, store schemaMigrator, _ int, out io.Writer) error {
		return printStatus(ctx, store, out, "migration status")
	},
	"list": func(ctx context.Context, store schemaMigrator, _ int, out io.Writer) error {
		migrations, err := store.ListMigrations(ctx)
		if err != nil {
			return fmt.Errorf("list migrations failed: %w", err)
		}
		for _, m := range migrations {
			mark := " "
			if m.Applied {
				mark = "x"
			}
			_, _ = fmt.Fprintf(out, "[%s] %04d %s\n", mark, m.Version, m.Name)
		}
		return nil
	},
}

func printStatus(ctx context.Context, store schemaMigrator, out io.Writer, prefix string) error {
	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "%s: version=%d applied=%d\n", prefix, version, count)
	return nil
}
