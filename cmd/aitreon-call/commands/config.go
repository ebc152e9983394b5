package commands

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var (
	initBackendURL string
	initUserID     string
	initMicDevice  string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the initial configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if initBackendURL != "" {
			cfg.Backend.BaseURL = initBackendURL
		}
		if initUserID != "" {
			cfg.UserID = initUserID
		}
		if initMicDevice != "" {
			cfg.Call.MicDevice = initMicDevice
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", cfg.Path())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		// Never echo the API key.
		display := *cfg
		if display.Backend.APIKey != "" {
			display.Backend.APIKey = "(set)"
		}
		data, err := yaml.Marshal(&display)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", cfg.Path(), data)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&initBackendURL, "backend", "", "backend base URL")
	configInitCmd.Flags().StringVar(&initUserID, "user", "", "user id")
	configInitCmd.Flags().StringVar(&initMicDevice, "mic", "", "default mic source path")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
