package cmd

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kelmah-platform/kelmah-payout-service/internal/accounts"
	"github.com/kelmah-platform/kelmah-payout-service/internal/engine"
	"github.com/kelmah-platform/kelmah-payout-service/internal/monitor"
	"github.com/kelmah-platform/kelmah-payout-service/internal/provider"
	"github.com/kelmah-platform/kelmah-payout-service/internal/scheduler"
	"github.com/kelmah-platform/kelmah-payout-service/internal/scheduler/jobs"
	"github.com/kelmah-platform/kelmah-payout-service/internal/serve"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Kelmah Payout Service API",
		Run: func(cmd *cobra.Command, _ []string) {
			bindFlags(cmd)

			crashTrackerClient := buildCrashTrackerClient(cmd)
			monitorService := monitor.NewMonitorService()

			serveOpts := serve.ServeOptions{
				Environment:        global.Environment,
				GitCommit:          global.GitCommit,
				Version:            global.Version,
				Port:               viper.GetInt("port"),
				DatabaseDSN:        global.DatabaseURL,
				CorsAllowedOrigins: strings.Split(viper.GetString("cors-allowed-origins"), ","),
				InternalAPIKey:     viper.GetString("internal-api-key"),
				MonitorService:     monitorService,
				CrashTrackerClient: crashTrackerClient,
				AccountsClient:     accounts.NewClient(viper.GetString("user-service-base-url"), viper.GetString("internal-api-key")),
				DispatcherRegistry: buildDispatcherRegistry(),
				EngineConfig:       engineConfigFromFlags(),
			}
			if err := serveOpts.SetupDependencies(); err != nil {
				log.Fatalf("Error setting up dependencies: %s", err.Error())
			}

			// The scheduler drives periodic batch processing and stale claim recovery alongside the API.
			if viper.GetBool("scheduler-enabled") {
				payoutEngine := serveOpts.PayoutEngine()
				go scheduler.StartScheduler(
					crashTrackerClient.Clone(),
					scheduler.WithProcessPayoutsJobOption(payoutEngine, viper.GetInt("process-payouts-interval-seconds"), viper.GetInt("default-batch-limit")),
					scheduler.WithStalePayoutsSweepJobOption(payoutEngine, viper.GetInt("stale-sweep-interval-seconds")),
				)
			}

			if err := serve.Serve(serveOpts); err != nil {
				crashTrackerClient.LogAndReportErrors(cmd.Context(), err, "running payout service")
				log.Fatalf("Error running payout service: %s", err.Error())
			}
		},
	}

	cmd.Flags().Int("port", 8002, "Port where the server will be listening on")
	cmd.Flags().String("cors-allowed-origins", "*", `Cors URLs that are allowed to access the endpoints, separated by ","`)
	cmd.Flags().String("internal-api-key", "", "Shared key guarding service-to-service endpoints. Empty disables the check.")
	cmd.Flags().Bool("scheduler-enabled", true, "Run the batch processing and stale sweep jobs alongside the API")
	cmd.Flags().Int("process-payouts-interval-seconds", jobs.ProcessPayoutsJobIntervalSeconds, "Interval between scheduled payout batches, in seconds")
	cmd.Flags().Int("stale-sweep-interval-seconds", jobs.StalePayoutsSweepJobIntervalSeconds, "Interval between stale processing sweeps, in seconds")
	registerEngineFlags(cmd)
	registerProviderFlags(cmd)
	registerAccountsFlags(cmd)

	return cmd
}

func registerEngineFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-attempts", engine.DefaultMaxAttempts, "Dispatch attempt budget per payout, counting the first attempt")
	cmd.Flags().Int("backoff-base-seconds", 30, "Delay before the first retry, in seconds. Retry N waits base * 2^(N-1)")
	cmd.Flags().Int("stale-processing-threshold-seconds", 600, "How long a payout may sit in PROCESSING before the sweep requeues it, in seconds")
	cmd.Flags().Int("default-batch-limit", engine.DefaultBatchLimit, "Batch size used when a trigger doesn't specify a limit")
	cmd.Flags().Int("max-batch-limit", engine.DefaultMaxBatchLimit, "Upper bound on any batch size")
	cmd.Flags().Int("dispatch-timeout-seconds", provider.DefaultTimeoutSeconds, "Timeout for each individual provider call, in seconds")
}

func registerAccountsFlags(cmd *cobra.Command) {
	cmd.Flags().String("user-service-base-url", "http://localhost:5002", "Base URL of the Kelmah user service, used to resolve payment methods")
}

func registerProviderFlags(cmd *cobra.Command) {
	cmd.Flags().String("mtn-momo-base-url", "https://sandbox.momodeveloper.mtn.com", "MTN MoMo disbursement API base URL")
	cmd.Flags().String("mtn-momo-subscription-key", "", "MTN MoMo disbursement product subscription key")
	cmd.Flags().String("mtn-momo-api-user", "", "MTN MoMo API user ID")
	cmd.Flags().String("mtn-momo-api-key", "", "MTN MoMo API key")
	cmd.Flags().String("mtn-momo-target-environment", "sandbox", `MTN MoMo target environment. "sandbox" or "mtnghana"`)
	cmd.Flags().String("vodafone-cash-base-url", "", "Vodafone Cash merchant API base URL")
	cmd.Flags().String("vodafone-cash-merchant-id", "", "Vodafone Cash merchant ID")
	cmd.Flags().String("vodafone-cash-api-key", "", "Vodafone Cash API key")
	cmd.Flags().String("airteltigo-base-url", "", "AirtelTigo Money API base URL")
	cmd.Flags().String("airteltigo-client-id", "", "AirtelTigo Money client ID")
	cmd.Flags().String("airteltigo-api-key", "", "AirtelTigo Money API key")
	cmd.Flags().String("paystack-base-url", "https://api.paystack.co", "Paystack API base URL")
	cmd.Flags().String("paystack-secret-key", "", "Paystack secret key")
}

func engineConfigFromFlags() engine.Config {
	return engine.Config{
		MaxAttempts:              viper.GetInt("max-attempts"),
		BackoffBase:              time.Duration(viper.GetInt("backoff-base-seconds")) * time.Second,
		StaleProcessingThreshold: time.Duration(viper.GetInt("stale-processing-threshold-seconds")) * time.Second,
		DefaultBatchLimit:        viper.GetInt("default-batch-limit"),
		MaxBatchLimit:            viper.GetInt("max-batch-limit"),
		DispatchTimeout:          time.Duration(viper.GetInt("dispatch-timeout-seconds")) * time.Second,
	}
}

// buildDispatcherRegistry wires a dispatcher for every rail with credentials configured. Rails without credentials
// are left out, enqueueing for them still works but dispatch fails permanently.
func buildDispatcherRegistry() *provider.Registry {
	var dispatchers []provider.Dispatcher

	if viper.GetString("mtn-momo-subscription-key") != "" {
		dispatchers = append(dispatchers, provider.NewMTNMoMoClient(provider.MTNMoMoConfig{
			BaseURL:           viper.GetString("mtn-momo-base-url"),
			SubscriptionKey:   viper.GetString("mtn-momo-subscription-key"),
			APIUserID:         viper.GetString("mtn-momo-api-user"),
			APIKey:            viper.GetString("mtn-momo-api-key"),
			TargetEnvironment: viper.GetString("mtn-momo-target-environment"),
		}))
	}
	if viper.GetString("vodafone-cash-api-key") != "" {
		dispatchers = append(dispatchers, provider.NewVodafoneCashClient(provider.VodafoneCashConfig{
			BaseURL:    viper.GetString("vodafone-cash-base-url"),
			MerchantID: viper.GetString("vodafone-cash-merchant-id"),
			APIKey:     viper.GetString("vodafone-cash-api-key"),
		}))
	}
	if viper.GetString("airteltigo-api-key") != "" {
		dispatchers = append(dispatchers, provider.NewAirtelTigoClient(provider.AirtelTigoConfig{
			BaseURL:  viper.GetString("airteltigo-base-url"),
			ClientID: viper.GetString("airteltigo-client-id"),
			APIKey:   viper.GetString("airteltigo-api-key"),
		}))
	}
	if viper.GetString("paystack-secret-key") != "" {
		dispatchers = append(dispatchers, provider.NewPaystackClient(provider.PaystackConfig{
			BaseURL:   viper.GetString("paystack-base-url"),
			SecretKey: viper.GetString("paystack-secret-key"),
		}))
	}

	if len(dispatchers) == 0 {
		log.Warn("no payout provider credentials configured, dispatch will fail for every payout")
	}
	return provider.NewRegistry(dispatchers...)
}
