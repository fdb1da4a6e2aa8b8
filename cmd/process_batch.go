package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kelmah-platform/kelmah-payout-service/db"
	"github.com/kelmah-platform/kelmah-payout-service/internal/accounts"
	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
	"github.com/kelmah-platform/kelmah-payout-service/internal/engine"
	"github.com/kelmah-platform/kelmah-payout-service/internal/monitor"
)

// processBatchCmd runs a single claim-and-dispatch cycle and exits. Useful as an external cron entrypoint or for
// draining the queue manually.
func processBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process-batch",
		Short: "Claim and dispatch one batch of eligible payouts, then exit",
		Run: func(cmd *cobra.Command, _ []string) {
			bindFlags(cmd)
			ctx := cmd.Context()

			crashTrackerClient := buildCrashTrackerClient(cmd)

			dbConnectionPool, err := db.OpenDBConnectionPool(global.DatabaseURL)
			if err != nil {
				log.Fatalf("Error connecting to the database: %s", err.Error())
			}
			defer db.CloseConnectionPoolIfNeeded(ctx, dbConnectionPool)

			models, err := data.NewModels(dbConnectionPool)
			if err != nil {
				log.Fatalf("Error creating models: %s", err.Error())
			}

			accountsClient := accounts.NewClient(viper.GetString("user-service-base-url"), viper.GetString("internal-api-key"))
			payoutEngine, err := engine.NewEngine(dbConnectionPool, models.Payouts, buildDispatcherRegistry(), accountsClient, &monitor.NoopMonitorService{}, engineConfigFromFlags())
			if err != nil {
				log.Fatalf("Error creating payout engine: %s", err.Error())
			}

			if _, err = payoutEngine.SweepStale(ctx); err != nil {
				crashTrackerClient.LogAndReportErrors(ctx, err, "sweeping stale payouts")
			}

			result, err := payoutEngine.ProcessBatch(ctx, viper.GetInt("limit"))
			if err != nil {
				crashTrackerClient.LogAndReportErrors(ctx, err, "processing payout batch")
				log.Fatalf("Error processing payout batch: %s", err.Error())
			}

			log.WithFields(log.Fields{
				"processed": result.Processed,
				"succeeded": result.Succeeded,
				"failed":    result.Failed,
				"requeued":  result.Requeued,
			}).Info("payout batch finished")
		},
	}

	cmd.Flags().Int("limit", 0, "Maximum number of payouts to claim. 0 uses the default batch limit")
	cmd.Flags().String("internal-api-key", "", "Shared key used when calling the user service")
	registerEngineFlags(cmd)
	registerProviderFlags(cmd)
	registerAccountsFlags(cmd)

	return cmd
}
