package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/daniloc96/google-group-membership-sync/internal/config"
	"github.com/daniloc96/google-group-membership-sync/internal/log"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

var (
	cfgFile       string
	flagDryRun    bool
	flagOrg       string
	flagWorkers   int
	flagLogLevel  string
	flagLogFormat string
	flagGroupID   int64

	lambdaHandler func(ctx context.Context, request models.SyncRequest) (*models.SyncResponse, error)
	runSyncAll    func(ctx context.Context, cfg *config.Config) (*models.SyncSummary, error)
	runSyncGroup  func(ctx context.Context, cfg *config.Config, groupID int64, orgSlug string) (*models.GroupSyncResult, error)
	runWorker     func(ctx context.Context, cfg *config.Config) error
)

// SetLambdaHandler registers the Lambda handler used in Lambda mode.
func SetLambdaHandler(handler func(ctx context.Context, request models.SyncRequest) (*models.SyncResponse, error)) {
	lambdaHandler = handler
}

// SetRunSyncAll registers the sync-all runner used by the root command.
func SetRunSyncAll(handler func(ctx context.Context, cfg *config.Config) (*models.SyncSummary, error)) {
	runSyncAll = handler
}

// SetRunSyncGroup registers the single group runner used by the group command.
func SetRunSyncGroup(handler func(ctx context.Context, cfg *config.Config, groupID int64, orgSlug string) (*models.GroupSyncResult, error)) {
	runSyncGroup = handler
}

// SetRunWorker registers the queue consumer used by the worker command.
func SetRunWorker(handler func(ctx context.Context, cfg *config.Config) error) {
	runWorker = handler
}

var rootCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync Google Workspace group membership into the canonical store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if runSyncAll == nil {
			return fmt.Errorf("sync engine is not configured")
		}

		ctx, stop := signalContext()
		defer stop()

		summary, err := runSyncAll(ctx, cfg)
		if err != nil {
			return err
		}
		logrus.WithField("dry_run", cfg.Sync.DryRun).Info(summary.String())
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Sync a single group and print its membership before and after",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if runSyncGroup == nil {
			return fmt.Errorf("sync engine is not configured")
		}
		if flagOrg == "" {
			return fmt.Errorf("--org is required")
		}

		ctx, stop := signalContext()
		defer stop()

		result, err := runSyncGroup(ctx, cfg, flagGroupID, flagOrg)
		if err != nil {
			return err
		}
		printGroupReport(result)
		if !result.IsSuccess() {
			return fmt.Errorf("group %d finished with errors: %v", result.GroupID, result.Errors)
		}
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued group syncs, optionally dispatching sync-all on sync.schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if runWorker == nil {
			return fmt.Errorf("sync engine is not configured")
		}

		ctx, stop := signalContext()
		defer stop()
		return runWorker(ctx, cfg)
	},
}

// Execute runs the CLI or Lambda handler depending on environment.
func Execute() {
	if isLambda() {
		if lambdaHandler == nil {
			logrus.Fatal("lambda handler is not configured")
		}
		lambda.Start(lambdaHandler)
		return
	}

	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Preview changes without applying")
	rootCmd.PersistentFlags().StringVar(&flagOrg, "org", "", "Organization slug to sync")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "Number of groups synced concurrently")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text, json or pretty")

	groupCmd.Flags().Int64Var(&flagGroupID, "group-id", 0, "Canonical group id")
	_ = groupCmd.MarkFlagRequired("group-id")

	rootCmd.AddCommand(groupCmd, workerCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	overrideConfigFromFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	configureLogging(cfg)
	return cfg, nil
}

// configureLogging sends the standard logger, and with it the group report, to stdout.
func configureLogging(cfg *config.Config) {
	log.Configure(logrus.StandardLogger(), os.Stdout, cfg.Log.Level, cfg.Log.Format)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printGroupReport(result *models.GroupSyncResult) {
	logrus.Infof("Group %s (%d) in %s: %s", result.GroupName, result.GroupID, result.OrgSlug, result.State)
	if result.SkipReason != "" {
		logrus.Infof("  reason: %s", result.SkipReason)
	}
	logrus.Info("────────────────────────────────────────")
	printUserList("Members before sync", result.Before)
	printUserList("Members after sync", result.After)
	logrus.Info("────────────────────────────────────────")
	for _, action := range result.Actions {
		entry := logrus.WithFields(action.LogFields())
		if action.Error != nil {
			entry.Warn("  action failed")
			continue
		}
		entry.Info("  action")
	}
	for _, e := range result.Errors {
		logrus.Error(e)
	}
}

func printUserList(title string, users []string) {
	if len(users) == 0 {
		logrus.Infof("%s: (none)", title)
		return
	}
	logrus.Infof("%s (%d):", title, len(users))
	for i, user := range users {
		logrus.Infof("  %d. %s", i+1, user)
	}
}

func isLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

func overrideConfigFromFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("dry-run") {
		cfg.Sync.DryRun = flagDryRun
	}
	if cmd.Flags().Changed("org") {
		cfg.Sync.Organization = flagOrg
	}
	if cmd.Flags().Changed("workers") {
		cfg.Sync.Workers = flagWorkers
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = flagLogFormat
	}
}
