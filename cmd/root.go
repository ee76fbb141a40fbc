package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var (
		verbose    bool
		configFile string
	)

	app := &app{}

	rootCmd := &cobra.Command{
		Use:           "seed",
		Short:         "autoseed (seed): rotate accounts through a browser agent to seed content",
		Long:          "seed manages a pool of social accounts, builds comment and status campaigns, and drives a connected browser agent through them one account at a time.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}

			v := viper.New()
			if configFile != "" {
				v.SetConfigFile(configFile)
			}

			wired, err := wireApp(cmd.Context(), v, logger)
			if err != nil {
				return err
			}
			*app = *wired
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ~/.autoseed/config.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newCampaignCmd(app),
		newRunCmd(app),
		newServeCmd(app),
		newBridgeCmd(app),
	)

	return rootCmd
}

// newLogger logs warnings and above unless verbose is set.
func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return config.Build()
}
