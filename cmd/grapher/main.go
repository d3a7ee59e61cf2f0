// Grapher Core - account and graph storage server for the Grapher 3D client.
//
// The binary has two commands:
//
//	grapher serve   run the HTTP server (the default)
//	grapher setup   drop and recreate the database tables
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/grapher3d/grapher-core/internal/api"
	"github.com/grapher3d/grapher-core/internal/auth"
	"github.com/grapher3d/grapher-core/internal/datastore"
	"github.com/grapher3d/grapher-core/internal/graph"
	"github.com/grapher3d/grapher-core/internal/infrastructure/config"
	"github.com/grapher3d/grapher-core/internal/infrastructure/database"
	"github.com/grapher3d/grapher-core/internal/infrastructure/influxdb"
	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
	"github.com/grapher3d/grapher-core/internal/infrastructure/mqtt"
	"github.com/grapher3d/grapher-core/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnv names the environment variable holding the config file path.
const configEnv = "GRAPHER_CONFIG"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
}

// newRootCommand creates the grapher command tree. Without a subcommand it
// serves.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "grapher",
		Short:         "Grapher Core server",
		Long:          "Stores Grapher users and their graphs and serves the web client.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.path())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to the YAML config file (default $"+configEnv+", or built-in defaults)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSetupCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.path())
		},
	}
}

func newSetupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Drop and recreate the database tables",
		Long: "Drops every table the server uses and creates it again. " +
			"All users and graphs are lost. Failures on individual tables are logged and skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd.Context(), opts.path())
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "grapher %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// path returns the config file path: the flag, then $GRAPHER_CONFIG, then
// "" (defaults and environment only).
func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return os.Getenv(configEnv)
}

// loadConfig loads the configuration and builds the configured logger.
func loadConfig(path string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", path, "driver", cfg.Database.Driver)
	return cfg, log, nil
}

// openStore opens the configured database and wraps it in a datastore.
func openStore(cfg *config.Config, log *logging.Logger) (*database.DB, *datastore.Store, error) {
	db, err := database.Open(database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.DSN,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	store := datastore.Open(db,
		datastore.WithQueryTimeout(cfg.GetQueryTimeout()),
		datastore.WithLogger(log),
	)
	log.Info("database connected", "dialect", db.Dialect(), "path", db.Path())
	return db, store, nil
}

// setup drops and recreates every table.
func setup(ctx context.Context, path string) error {
	cfg, log, err := loadConfig(path)
	if err != nil {
		return err
	}

	db, store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(db, log)

	datastore.Provision(ctx, store, datastore.NewTables(), log)
	log.Info("setup complete")
	return nil
}

// run is the server lifecycle, separated from main for testability. It
// returns nil on a clean shutdown.
func run(ctx context.Context, path string) error {
	logging.Default().Info("starting Grapher Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, log, err := loadConfig(path)
	if err != nil {
		return err
	}

	db, store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(db, log)

	tables := datastore.NewTables()
	if err := datastore.EnsureTables(ctx, store, tables, log); err != nil {
		return fmt.Errorf("preparing tables: %w", err)
	}

	// Optional services reported by /healthz
	subsystems := map[string]api.HealthChecker{}

	// Graph change events over MQTT (optional)
	var notifier graph.Notifier
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		notifier = &mqttNotifier{client: mqttClient}
		subsystems["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Request metrics to InfluxDB (optional)
	var metrics api.RequestRecorder
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		metrics = influxClient
		subsystems["influxdb"] = influxClient
	}

	sessions := session.NewStore()
	accounts := auth.NewAccounts(sessions, store, tables, log)
	graphs := graph.NewService(auth.NewGate(sessions, store), accounts, store, tables, notifier, log)

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		Session:  cfg.Session,
		Static:   cfg.Static,
		Logger:   log,
		Accounts: accounts,
		Graphs:   graphs,
		Database: store,
		Metrics:  metrics,
		Version:  version,

		Subsystems: subsystems,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(srv.Wait)
	eg.Go(func() error {
		<-egctx.Done()
		log.Info("shutdown signal received, cleaning up")
		return srv.Close()
	})

	log.Info("initialisation complete",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"static_dir", cfg.Static.Dir,
	)

	if err := eg.Wait(); err != nil {
		return err
	}

	log.Info("Grapher Core stopped", "sessions_dropped", sessions.Len())
	return nil
}

func closeDB(db *database.DB, log *logging.Logger) {
	log.Info("closing database")
	if err := db.Close(); err != nil {
		log.Error("error closing database", "error", err)
	}
}

// eventPublisher is the part of the MQTT client the notifier needs.
type eventPublisher interface {
	PublishJSON(topic string, v any) error
}

// mqttNotifier adapts the MQTT client to graph.Notifier. Events go to
// grapher/graphs/{owner}/{action}.
type mqttNotifier struct {
	client eventPublisher
}

// GraphChanged implements graph.Notifier.
func (n *mqttNotifier) GraphChanged(ctx context.Context, ev graph.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic := mqtt.Topics{}.GraphEvent(strconv.FormatInt(int64(ev.Owner), 10), ev.Action)
	return n.client.PublishJSON(topic, ev)
}
