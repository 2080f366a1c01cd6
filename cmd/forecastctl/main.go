package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"CryptoCast/internal/di"
	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/usecase"
	"CryptoCast/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forecastctl",
		Short:         "Run CryptoCast pipelines and forecasts from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "config/config.yaml", "Path to config file")
	root.PersistentFlags().String("artifacts-dir", "", "Override the artifact directory")
	root.PersistentFlags().String("symbol", "", "Override the traded symbol")
	root.PersistentFlags().String("log-level", "", "Override the log level")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("artifacts_dir", root.PersistentFlags().Lookup("artifacts-dir"))
	_ = viper.BindPFlag("symbol", root.PersistentFlags().Lookup("symbol"))
	_ = viper.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	viper.SetEnvPrefix("FORECASTCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	root.AddCommand(
		runCmd(),
		forecastCmd(),
		infoCmd(),
		pipelinesCmd(),
		priceCmd(),
		runsCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("artifacts_dir"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := viper.GetString("symbol"); v != "" {
		cfg.Binance.Symbol = strings.ToUpper(v)
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.Logger.Level = v
	}
	// the CLI runs in the foreground, never as the scheduler
	cfg.Scheduler.Enabled = false
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// withService builds the application graph, hands the use case to fn and
// releases everything afterwards.
func withService(fn func(ctx context.Context, svc *usecase.ForecastService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer app.Shutdown(context.Background())

	return fn(ctx, app.Service())
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [pipeline]",
		Short: "Run a pipeline (default: __default__)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := models.PipelineDefault
			if len(args) == 1 {
				name = args[0]
			}
			return withService(func(ctx context.Context, svc *usecase.ForecastService) error {
				res := svc.RunPipeline(ctx, name)
				if err := printJSON(res); err != nil {
					return err
				}
				if !res.OK() {
					return &models.PipelineError{Result: res}
				}
				return nil
			})
		},
	}
}

func forecastCmd() *cobra.Command {
	var days int
	var retrain bool
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast future prices from the trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 || days > 365 {
				return fmt.Errorf("--days must be in [1, 365], got %d", days)
			}
			return withService(func(ctx context.Context, svc *usecase.ForecastService) error {
				res, err := svc.GetForecast(ctx, days, retrain)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Days to forecast")
	cmd.Flags().BoolVar(&retrain, "retrain", false, "Run the full pipeline first")
	return cmd
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *usecase.ForecastService) error {
				info, err := svc.GetModelInfo(ctx)
				if err != nil {
					return err
				}
				return printJSON(info)
			})
		},
	}
}

func pipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List runnable pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(_ context.Context, svc *usecase.ForecastService) error {
				for _, name := range svc.ListPipelines() {
					fmt.Println(name)
				}
				return nil
			})
		},
	}
}

func priceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Show the current spot price of --symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *usecase.ForecastService) error {
				q, err := svc.GetCurrentPrice(ctx, "")
				if err != nil {
					return err
				}
				return printJSON(q)
			})
		},
	}
}

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *usecase.ForecastService) error {
				runs, err := svc.RecentRuns(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(runs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}
