package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/23atomist/electrion-PA/internal/config"
	"github.com/23atomist/electrion-PA/internal/ingest"
	"github.com/23atomist/electrion-PA/internal/store"
)

// app is the state shared by every subcommand once configuration has been
// resolved.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the electiondb command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rc := &cobra.Command{
		Use:   "electiondb",
		Short: "Load Pennsylvania election returns and voter registration into a relational store.",
		Long: `electiondb ingests Pennsylvania precinct-level election returns and
voter-registration files into a normalized nine-table store.

Settings come from flags, ELECTIONDB_* environment variables, an optional
.env file and an optional TOML config file, in that order.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), cmd.Flags())
			if err != nil {
				return err
			}
			level, _ := cfg.SlogLevel()
			a.cfg = cfg
			a.log = slog.New(slog.NewJSONHandler(a.stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(a.log)
			return nil
		},
	}
	config.RegisterFlags(rc.PersistentFlags())

	rc.AddCommand(newInitDBCommand(a))
	rc.AddCommand(newIngestCommand(a))
	rc.AddCommand(newVerifyCommand(a))
	rc.AddCommand(newServeCommand(a))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// openStore opens the configured backend, wrapped in the Redis report cache
// when a Redis URL is set. Failure here is fatal before any file is read.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch a.cfg.Backend() {
	case config.BackendPostgres:
		st, err = store.OpenPostgres(ctx, a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		a.log.Info("connected to PostgreSQL")
	case config.BackendMemory:
		a.log.Warn("using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	default:
		st, err = store.OpenSQLite(ctx, a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("database open failed: %w", err)
		}
		a.log.Info("opened SQLite database", "path", a.cfg.Database)
	}

	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("invalid redis-url: %w", err)
		}
		st = store.NewCachedStore(st, redis.NewClient(opt), a.cfg.CacheTTL)
		a.log.Info("Redis cache enabled", "ttl", a.cfg.CacheTTL)
	}
	return st, nil
}

func (a *app) engine(st store.Store) *ingest.Engine {
	return ingest.NewEngine(st, ingest.Options{
		DataDir:       a.cfg.DataDir,
		Years:         a.cfg.Years,
		ElectionType:  a.cfg.ElectionType,
		StateCode:     a.cfg.State,
		StateName:     a.cfg.StateName,
		CommitPerFile: a.cfg.CommitPerFile,
	}, a.log)
}
