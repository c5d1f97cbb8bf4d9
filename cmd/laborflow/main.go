package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/cmd/laborflow/commands"
	"github.com/mm1618bu/laborflow/internal/config"
	"github.com/mm1618bu/laborflow/pkg/attributes"
	"github.com/mm1618bu/laborflow/pkg/configstore"
	"github.com/mm1618bu/laborflow/pkg/core/allocation"
	"github.com/mm1618bu/laborflow/pkg/core/override"
	"github.com/mm1618bu/laborflow/pkg/core/waitlist"
	"github.com/mm1618bu/laborflow/pkg/db"
	"github.com/mm1618bu/laborflow/pkg/lock"
	"github.com/mm1618bu/laborflow/pkg/metrics"
	"github.com/mm1618bu/laborflow/pkg/notify"
	"github.com/mm1618bu/laborflow/pkg/postgres"
	"github.com/mm1618bu/laborflow/pkg/utils/logging"
)

var (
	env          string
	configPath   string
	fixturesPath string
	logOpts      = logging.DefaultOptions()
	app          = &commands.AppContext{}
	redisClient  *redis.Client
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "laborflow",
		Short: "Laborflow - Allocate voluntary labor actions",
		Long:  `Scores employee responses to overtime and time-off offers, allocates positions, and manages waitlists.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (selects laborflow.<env>.yaml when present)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (overrides --env lookup)")
	rootCmd.PersistentFlags().StringVar(&fixturesPath, "fixtures", "", "YAML fixtures to seed the in-memory store")
	rootCmd.PersistentFlags().BoolVar(&logOpts.Debug, "debug", false, "Log debug output to the console")
	rootCmd.PersistentFlags().StringVar(&logOpts.Dir, "log-dir", logOpts.Dir, "Directory for log files (empty disables file logging)")

	rootCmd.AddCommand(commands.ProcessCmd(app))
	rootCmd.AddCommand(commands.StatusCmd(app))
	rootCmd.AddCommand(commands.ApproveCmd(app))
	rootCmd.AddCommand(commands.RejectCmd(app))
	rootCmd.AddCommand(commands.PromoteCmd(app))
	rootCmd.AddCommand(commands.WithdrawCmd(app))
	rootCmd.AddCommand(commands.TrimCmd(app))
	rootCmd.AddCommand(commands.WaitlistCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.SeedCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, store, and services
func initApp() error {
	var err error
	app.Ctx = context.Background()

	// Initialize logger
	app.Logger, err = logging.InitLogger(env, logOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.Cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully")

	// Initialize store and attribute source
	var attrs attributes.Provider
	if app.Cfg.Database.URL != "" {
		app.Logger.Info("Connecting to database")
		app.Postgres, err = postgres.NewDB(app.Ctx, app.Cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.Database = app.Postgres
		attrs = app.Postgres
	} else if fixturesPath != "" {
		app.Logger.Info("Loading fixtures into in-memory store", zap.String("path", fixturesPath))
		store, static, err := commands.LoadFixtures(fixturesPath)
		if err != nil {
			return err
		}
		app.Database = store
		attrs = static
	} else {
		app.Logger.Warn("No database configured, using an empty in-memory store")
		app.Database = db.NewMemory()
		attrs = attributes.Static{}
	}

	if app.Cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     app.Cfg.Redis.Addr,
			Password: app.Cfg.Redis.Password,
			DB:       app.Cfg.Redis.DB,
		})
		if app.Cfg.Attributes.CacheTTL > 0 {
			app.Logger.Info("Caching employee attributes in redis", zap.Duration("ttl", app.Cfg.Attributes.CacheTTL))
			attrs = attributes.NewCached(attrs, redisClient, app.Cfg.Attributes.CacheTTL, app.Logger)
		}
	}

	var locker lock.Locker
	switch app.Cfg.Locking.Backend {
	case "redis":
		locker = lock.NewRedis(redisClient, lock.RedisOptions{
			Prefix:        "laborflow:lock:",
			TTL:           app.Cfg.Locking.TTL,
			RetryInterval: app.Cfg.Locking.RetryInterval,
			MaxAttempts:   app.Cfg.Locking.MaxAttempts,
		}, app.Logger)
	default:
		locker = lock.NewLocal(app.Cfg.Locking.Timeout)
	}

	notifier, err := newNotifier(app.Ctx, app.Cfg.Notifications, app.Logger)
	if err != nil {
		return err
	}

	if app.Cfg.Metrics.Enabled {
		app.Metrics = metrics.New()
	}

	app.Configs, err = configstore.New(app.Cfg.WorkflowDefaults(), app.Cfg.Organizations, app.Cfg.OfferOverrides, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to build workflow config store: %w", err)
	}

	app.Engine = allocation.NewEngine(app.Database, attrs, locker, notifier, app.Metrics, app.Logger)
	app.Waitlist = waitlist.NewManager(app.Database, locker, notifier, app.Metrics, app.Logger)
	app.Batch = override.NewBatch(app.Database, locker, notifier, app.Metrics, app.Logger)
	app.Health = health

	app.Logger.Debug("Services initialized successfully",
		zap.String("locking", app.Cfg.Locking.Backend),
		zap.String("notifications", app.Cfg.Notifications.Backend))

	return nil
}

// loadConfig prefers an explicit --config path, then the env lookup, then defaults
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}

	cfg, err := config.LoadWithEnv(env)
	if errors.Is(err, config.ErrNotFound) {
		app.Logger.Info("No config file found, using defaults")
		return config.Default(), nil
	}
	return cfg, err
}

func newNotifier(ctx context.Context, cfg config.NotificationsConfig, logger *zap.Logger) (notify.Notifier, error) {
	switch cfg.Backend {
	case "sns":
		logger.Info("Publishing notifications to SNS", zap.String("topic_arn", cfg.TopicARN))
		n, err := notify.NewSNSNotifier(ctx, cfg.Region, cfg.TopicARN)
		if err != nil {
			return nil, fmt.Errorf("failed to create SNS notifier: %w", err)
		}
		return n, nil
	case "log":
		return &notify.LogNotifier{Logger: logger}, nil
	default:
		return nil, nil
	}
}

func health(ctx context.Context) error {
	if app.Postgres != nil {
		if err := app.Postgres.Ping(ctx); err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable: %w", err)
		}
	}
	return nil
}

func shutdown() {
	if app.Postgres != nil {
		app.Postgres.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if app.Logger != nil {
		app.Logger.Sync()
	}
}
