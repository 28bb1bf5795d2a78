package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cosmossdk.io/log"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	flagConfig      = "config"
	flagMetricsAddr = "metrics-addr"
	flagGenesis     = "genesis"
	flagExport      = "export"
	flagServe       = "serve"

	envPrefix = "PAWDEX"
)

// DefaultConfigPath is read when no --config is given and the file exists.
var DefaultConfigPath = filepath.Join(os.ExpandEnv("$HOME"), ".pawdex", "config.toml")

// NewRootCmd creates the pawdexd root command. Flags may also be set through
// PAWDEX_* environment variables or the config file.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "pawdexd",
		Short: "PAW DEX core simulator",
		Long: `pawdexd runs the PAW DEX keeper on an in-memory chain. Scenarios describe pools,
liquidity, swaps and batch auctions in YAML and are executed block by block.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())
			return loadConfig(v, cmd.Flags())
		},
	}

	rootCmd.PersistentFlags().String(flagConfig, "", fmt.Sprintf("config file (default %s)", DefaultConfigPath))
	rootCmd.PersistentFlags().String(flags.FlagLogLevel, zerolog.InfoLevel.String(), "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().String(flags.FlagLogFormat, "plain", "log format (plain|json)")

	rootCmd.AddCommand(
		SimulateCmd(v),
		GenesisCmd(v),
	)

	return rootCmd
}

func loadConfig(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	path := v.GetString(flagConfig)
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); err != nil {
			return nil
		}
		path = DefaultConfigPath
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func newLogger(v *viper.Viper, w io.Writer) (log.Logger, error) {
	level, err := zerolog.ParseLevel(v.GetString(flags.FlagLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", flags.FlagLogLevel, err)
	}

	opts := []log.Option{log.LevelOption(level)}
	switch format := v.GetString(flags.FlagLogFormat); format {
	case flags.OutputFormatJSON:
		opts = append(opts, log.OutputJSONOption())
	case "plain", "":
		opts = append(opts, log.ColorOption(false))
	default:
		return nil, fmt.Errorf("invalid %s %q", flags.FlagLogFormat, format)
	}

	return log.NewLogger(w, opts...), nil
}
