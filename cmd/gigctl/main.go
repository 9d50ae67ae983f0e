// Command gigctl runs operator tasks against the marketplace database:
// schema migrations, outbox replay and the quota sweep.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gigmarket/internal/migrations"
	"gigmarket/internal/repository"
	"gigmarket/internal/service/quota"
	"gigmarket/pkg/config"
	"gigmarket/pkg/db"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/mq"
	"gigmarket/pkg/outbox"
)

const Version = "0.1.0"

type app struct {
	env       string
	configDir string
	logLevel  string

	cfg *config.Config
	log *zap.Logger
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "gigctl",
		Short:         "Operator tool for the gig marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVar(&a.env, "env", config.GetConfigEnv(), "Config environment (local, prod, ...)")
	cmd.PersistentFlags().StringVar(&a.configDir, "config-dir", config.GetEnv("CONFIG_DIR", "config"), "Directory holding base.yaml")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(migrateCmd(a), outboxCmd(a), quotaCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gigctl version %s\n", Version)
		},
	})
	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.env, a.configDir)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.NewLogger(a.logLevel)
	return nil
}

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}

	withMigrator := func(fn func(m *migrations.Migrator) error) error {
		m, err := migrations.New(db.DSN(a.cfg.DB), a.log)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrations.Migrator) error { return m.Up() })
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("invalid steps %q", args[0])
					}
					steps = n
				}
				return withMigrator(func(m *migrations.Migrator) error { return m.Down(steps) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrations.Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

// withStore opens the pool for the duration of fn.
func (a *app) withStore(fn func(ctx context.Context, store *repository.PostgresStore) error) error {
	pool, err := db.NewConnection(a.cfg.DB, a.log)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return fn(ctx, repository.NewPostgresStore(pool, a.log))
}

func outboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "outbox", Short: "Re-publish outbox events"}

	withReplay := func(fn func(ctx context.Context, r *outbox.ReplayService) error) error {
		pub, err := mq.NewPublisher(a.cfg.MQ.URL)
		if err != nil {
			return err
		}
		defer pub.Close()
		return a.withStore(func(ctx context.Context, store *repository.PostgresStore) error {
			return fn(ctx, outbox.NewReplayService(store.Outbox(), pub, a.log))
		})
	}

	var limit int
	replayFailed := &cobra.Command{
		Use:   "replay-failed",
		Short: "Reset and re-publish failed events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReplay(func(ctx context.Context, r *outbox.ReplayService) error {
				n, err := r.ReplayFailedEvents(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events\n", n)
				return nil
			})
		},
	}
	replayFailed.Flags().IntVar(&limit, "limit", 100, "Maximum events to replay")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "replay <event-id>",
			Short: "Re-publish one event",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid event id %q", args[0])
				}
				return withReplay(func(ctx context.Context, r *outbox.ReplayService) error {
					return r.ReplayEvent(ctx, id)
				})
			},
		},
		replayFailed,
	)
	return cmd
}

func quotaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "quota", Short: "Manage AI usage quotas"}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Reset the monthly allowance of every stale account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(ctx context.Context, store *repository.PostgresStore) error {
				ledger, err := quota.NewLedger(store, a.cfg.Market, a.log)
				if err != nil {
					return err
				}
				n, err := ledger.SweepResets(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %d accounts\n", n)
				return nil
			})
		},
	})
	return cmd
}
