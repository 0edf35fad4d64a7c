package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	settings = viper.New()
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "sdactl",
	Short: "secure distributed aggregation toolkit",
	Long:  `sdactl manages agent keys and runs local aggregation rounds`,
	Args:  NoExtraArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupRoot(cmd)
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	defer func() {
		_ = logger.Sync()
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (yaml, json or toml)")

	settings.SetEnvPrefix("SDA")
	settings.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	settings.AutomaticEnv()
	setDefaults(settings)
}

func setupRoot(cmd *cobra.Command) (err error) {
	if err = settings.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if path := settings.GetString("config"); path != "" {
		settings.SetConfigFile(path)
		if err = settings.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if logger, err = newLogger(settings.GetBool("debug")); err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NoExtraArgs make sure every args has been processed
func NoExtraArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown args `%v`", args)
	}
	return nil
}
