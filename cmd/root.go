package cmd

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kelmah-platform/kelmah-payout-service/internal/crashtracker"
)

// globalOptions holds the CLI options shared by every subcommand.
type globalOptions struct {
	LogLevel         string
	Environment      string
	DatabaseURL      string
	SentryDSN        string
	CrashTrackerType string
	GitCommit        string
	Version          string
}

var global globalOptions

const envPrefix = "KELMAH"

func rootCmd(version, gitCommit string) *cobra.Command {
	global.Version = version
	global.GitCommit = gitCommit

	cmd := &cobra.Command{
		Use:     "kelmah-payout-service",
		Short:   "Kelmah Payout Service",
		Long:    "The Kelmah Payout Service queues and disburses worker earnings to mobile money wallets and bank accounts.",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			bindFlags(cmd)

			global.LogLevel = viper.GetString("log-level")
			global.Environment = viper.GetString("environment")
			global.DatabaseURL = viper.GetString("database-url")
			global.SentryDSN = viper.GetString("sentry-dsn")
			global.CrashTrackerType = viper.GetString("crash-tracker-type")

			initLogger(global.LogLevel)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Fatalf("Error calling help command: %s", err.Error())
			}
		},
	}

	cmd.PersistentFlags().String("log-level", "INFO", `The log level used in this project. Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", or "PANIC".`)
	cmd.PersistentFlags().String("environment", "development", `The environment where the application is running. Example: "development", "staging", "production".`)
	cmd.PersistentFlags().String("database-url", "postgres://localhost:5432/kelmah_payouts?sslmode=disable", "Postgres DB URL")
	cmd.PersistentFlags().String("sentry-dsn", "", "The DSN (client key) of the Sentry project. If not provided, Sentry will not be used.")
	cmd.PersistentFlags().String("crash-tracker-type", string(crashtracker.CrashTrackerTypeDryRun), `Crash tracker type. Options: "SENTRY", "DRY_RUN".`)

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(processBatchCmd())
	cmd.AddCommand(migrateCmd())

	return cmd
}

// bindFlags binds every flag of the command (and its parents) to a KELMAH_-prefixed environment variable.
func bindFlags(cmd *cobra.Command) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		log.Fatalf("Error binding flags: %s", err.Error())
	}
	if cmd.HasParent() {
		if err := viper.BindPFlags(cmd.Parent().PersistentFlags()); err != nil {
			log.Fatalf("Error binding persistent flags: %s", err.Error())
		}
	}
}

func initLogger(logLevel string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		log.Warnf("Invalid log level %q, defaulting to INFO", logLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// buildCrashTrackerClient creates the crash tracker client from the global options.
func buildCrashTrackerClient(cmd *cobra.Command) crashtracker.CrashTrackerClient {
	crashTrackerType, err := crashtracker.ParseCrashTrackerType(global.CrashTrackerType)
	if err != nil {
		log.Fatalf("Error parsing crash tracker type: %s", err.Error())
	}
	client, err := crashtracker.GetClient(cmd.Context(), crashtracker.CrashTrackerOptions{
		CrashTrackerType: crashTrackerType,
		Environment:      global.Environment,
		GitCommit:        global.GitCommit,
		SentryDSN:        global.SentryDSN,
	})
	if err != nil {
		log.Fatalf("Error creating crash tracker client: %s", err.Error())
	}
	return client
}

// Execute runs the root command.
func Execute(version, gitCommit string) {
	if err := rootCmd(version, gitCommit).Execute(); err != nil {
		log.Fatalf("Error executing command: %s", err.Error())
	}
}
