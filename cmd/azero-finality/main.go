// Command azero-finality inspects chain stores and session backups,
// and exports chain state metrics for a running node.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := mainE(); err != nil {
		os.Exit(1)
	}
}

func mainE() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var level slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))

	root := NewRootCmd(logger, &level)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Info("Failure", "err", err)
		os.Stderr.Sync()
		return err
	}

	return nil
}

// NewRootCmd returns the root command.
// Flag values may also come from AZERO_FINALITY_* environment variables
// or from the file named by --config.
// If level is non-nil, --log-level adjusts it.
func NewRootCmd(log *slog.Logger, level *slog.LevelVar) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("AZERO_FINALITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use: "azero-finality SUBCOMMAND",

		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},

		SilenceUsage: true,

		Long: `azero-finality is a set of operator tools around the finality layer.

- backup inspects the per-session backups written by the BFT engine.
- chain queries a chain store through the same status API the node uses.
- watch follows a chain store and serves chain state metrics for Prometheus.
`,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			if cfg := v.GetString("config"); cfg != "" {
				v.SetConfigFile(cfg)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config file %q: %w", cfg, err)
				}
			}

			if level != nil {
				if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a TOML, YAML, or JSON file providing flag values")
	rootCmd.PersistentFlags().String("log-level", "info", "Minimum log level (debug|info|warn|error)")

	rootCmd.AddCommand(
		newBackupCmd(log, v),
		newChainCmd(log, v),
		newWatchCmd(log, v),
	)

	return rootCmd
}
