package migrate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natebag/Testsite-sub005/internal/infrastructure/config"
	"github.com/natebag/Testsite-sub005/internal/infrastructure/database"
	"github.com/natebag/Testsite-sub005/internal/infrastructure/migration"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

var (
	env          string
	target       string
	strategyName string
	runnerName   string
	steps        int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Run, roll back, validate and inspect database migrations across the SQL, document and shared script directories.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
		newValidateCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long:  `Discover pending migrations, validate them and apply them as one batch under the configured strategy.`,
		RunE:  runUp,
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target schema version recorded on success")
	cmd.Flags().StringVarP(&strategyName, "strategy", "s", "", "Execution strategy (sequential, parallel, rolling, blue-green, shadow, canary)")
	return cmd
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long:  `Rollback a number of applied migrations using their rollback scripts through a compat runner.`,
		RunE:  runDown,
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")
	cmd.Flags().StringVarP(&runnerName, "runner", "r", "goose", "Compat runner tracking the schema version (goose, golang-migrate)")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `Display the current schema version and the recorded migration history.`,
		RunE:  runStatus,
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate pending migrations",
		Long:  `Scan pending migrations for dangerous statements, missing rollbacks and unresolvable dependencies without applying anything.`,
		RunE:  runValidate,
	}
}

func initEnv() (*config.Config, logger.Interface, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, log, nil
}

func buildEngine(ctx context.Context, cfg *config.Config, log logger.Interface) (*migration.Engine, *migration.Ledger, error) {
	gdb := database.Get()
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	ledger, err := migration.NewLedger(gdb)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize migration ledger: %w", err)
	}

	var lock migration.Lock = migration.NewLocalLock()
	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		lock = migration.NewRedisLock(client)
	}

	var docs migration.DocumentStore
	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		docs = migration.NewMongoStore(client.Database(cfg.Mongo.Database))
	}

	return migration.NewEngine(&cfg.Migration, sqlDB, docs, ledger, lock, log), ledger, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, _, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return err
	}

	name := strategyName
	if name == "" {
		name = cfg.Migration.Strategy
	}
	strategy := migration.NewStrategy(name, log)

	log.Infow("running migrations", "environment", env, "strategy", strategy.Name(), "target", target)
	batch, err := engine.Execute(ctx, target, strategy)
	if batch != nil {
		printBatch(batch)
	}
	if err != nil {
		return fmt.Errorf("migration batch failed: %w", err)
	}
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	cfg, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close()

	log.Infow("rolling back migrations", "environment", env, "steps", steps, "runner", runnerName)

	strategy, err := migration.NewCompatStrategy(runnerName, cfg.Migration.SQLDir)
	if err != nil {
		return err
	}
	if err := strategy.MigrateDown(database.Get(), steps); err != nil {
		log.Errorw("down migration failed", "error", err)
		return fmt.Errorf("down migration failed: %w", err)
	}

	log.Infow("down migration completed")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, _, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close()

	ledger, err := migration.NewLedger(database.Get())
	if err != nil {
		return fmt.Errorf("failed to open migration ledger: %w", err)
	}

	version, err := ledger.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to read current version: %w", err)
	}
	if version == "" {
		version = "(none)"
	}

	history, err := ledger.History()
	if err != nil {
		return fmt.Errorf("failed to read migration history: %w", err)
	}

	fmt.Printf("\nMigration Status:\n")
	fmt.Printf("  Environment:     %s\n", env)
	fmt.Printf("  Current Version: %s\n", version)
	fmt.Printf("  History Entries: %d\n\n", len(history))
	for _, entry := range history {
		fmt.Printf("  %-40s %-12s %s\n", entry.Name, entry.Outcome, entry.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close()

	sqlDB, err := database.Get().DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	discoverer := migration.NewDiscoverer(cfg.Migration.SQLDir, cfg.Migration.DocumentDir, cfg.Migration.SharedDir)
	migrations, err := discoverer.Discover()
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	log.Infow("discovered migrations", "count", len(migrations))

	issues := migration.NewValidator(sqlDB).Validate(cmd.Context(), migrations)
	for _, issue := range issues {
		fmt.Printf("  [%s] %s: %s\n", issue.Severity, issue.Migration, issue.Message)
	}
	if migration.HasErrors(issues) {
		return fmt.Errorf("validation found blocking issues")
	}
	fmt.Printf("validated %d migrations, %d findings, none blocking\n", len(migrations), len(issues))
	return nil
}

func printBatch(b *migration.Batch) {
	summary := b.Summary()
	fmt.Printf("\nBatch %s: %s\n", b.ID, b.Status)
	fmt.Printf("  Completed: %d\n  Failed:    %d\n  Skipped:   %d\n",
		summary[migration.ItemCompleted], summary[migration.ItemFailed], summary[migration.ItemSkipped])
}
