// Package cli wires the concierge commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"concierge/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "concierge",
		Short: "Hotel concierge chat in the terminal",
		Long: `Concierge streams a conversation with a Responses API model, runs local
tools and MCP plugins, and renders hotel, price and destination results as cards.

Without a subcommand it opens the chat.`,
		SilenceUsage: true,
		RunE:         runChat,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "user config file (default is <data_dir>/config.toml)")
	flags.String("server-url", "", `turn endpoint, or "direct" to call the Responses API in process`)
	flags.String("model", "", "model name")

	_ = viper.BindPFlag("server_url", flags.Lookup("server-url"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
}

func initViper() {
	viper.SetEnvPrefix("concierge")
	viper.AutomaticEnv()
}

// loadConfig reads the TOML settings and applies flag overrides on top.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v := viper.GetString("server_url"); v != "" {
		cfg.ServerURL = v
	}
	if v := viper.GetString("model"); v != "" {
		cfg.Model = v
	}

	config.InitDebugLog(cfg.DataDir())
	return cfg, nil
}
