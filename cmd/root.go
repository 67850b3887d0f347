// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/dccon-cli/internal/config"
	"github.com/xkilldash9x/dccon-cli/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// flagBindings maps command flags onto configuration keys. A flag is bound
// only on the commands that define it.
var flagBindings = map[string]string{
	"log-level": "logger.level",
	"base-url":  "injector.base_url",
	"port":      "injector.debug_port",
	"timeout":   "injector.timeout_sec",
	"prefix":    "injector.target_prefix",
	"host":      "discovery.host",
	"attempts":  "readiness.max_attempts",
	"interval":  "readiness.interval",
}

// NewRootCommand builds a fresh command tree. Nothing is shared between
// trees, so tests can build as many as they like.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dccon-cli",
		Short:         "Injects the chat emoticon watcher into pages of a running browser.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger)
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting dccon-cli", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./config.yaml or ./config.json)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newInjectCmd())
	rootCmd.AddCommand(newAwaitCmd())
	rootCmd.AddCommand(newScriptCmd())
	rootCmd.AddCommand(newPreviewCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with a signal-aware context. Errors are
// logged here; the caller only picks the exit code.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	defer observability.Sync()

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		observability.GetLogger().Debug("Command execution failed", zap.Error(err))
	}
	return err
}

// initializeConfig reads the config file, environment and bound flags into v.
// Precedence: flags, then environment, then file, then defaults.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// No type set, so both the structured config.yaml and the legacy
		// config.json are found.
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("DCCON")
	v.SetEnvKeyReplacer(config.EnvKeyReplacer())
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagBindings {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}
	return nil
}

// getConfig returns the configuration stored by the root PersistentPreRunE.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return cfg, nil
}
