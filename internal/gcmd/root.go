// Package gcmd contains the cobra commands for the gordering binary.
package gcmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variables
// that override command line flags.
// For example, GORDERING_HTTP_ADDR sets --http-addr.
const EnvPrefix = "GORDERING"

// NewRootCmd returns the root gordering command.
//
// If lv is not nil, the --log-level flag adjusts it.
func NewRootCmd(log *slog.Logger, lv *slog.LevelVar) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gordering",
		Short: "On-demand ordering gate node and tools",

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if lv == nil {
				return nil
			}

			s, err := cmd.Flags().GetString("log-level")
			if err != nil {
				return err
			}
			if err := lv.UnmarshalText([]byte(s)); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("log-level", "info", "minimum log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCmd(log),
		newStatusCmd(),
		newSubmitCmd(),
	)

	return rootCmd
}

// newViper returns a viper instance bound to cmd's flags,
// reading overrides from GORDERING_* environment variables
// and, if --config was set, from that file.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}
