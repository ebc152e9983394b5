package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieledinun/aitreon-sub001/cmd/aitreon-call/internal/config"
)

var (
	// Global flags
	verbose bool

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "aitreon-call",
	Short: "Voice calls with aitreon creators from the terminal",
	Long: `aitreon-call - real-time voice calls with AI creators.

The call command connects to a creator's voice agent, publishes your
microphone, streams live transcription, and journals the finished call
locally so it can be replayed with 'aitreon-call logs'.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/aitreon/
  Linux:   ~/.config/aitreon/
  Windows: %AppData%/aitreon/

Examples:
  # One-time setup
  aitreon-call config init --backend https://aitreon.app --user user_123

  # Call a creator (Ctrl+C hangs up)
  aitreon-call call creator_456

  # Replay a past call
  aitreon-call logs
  aitreon-call logs show <session-id>`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		// Store error for deferred reporting — commands that need config
		// will get a clear error via GetConfig(). This avoids failing
		// commands like 'aitreon-call version'.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
// Returns an error if the config could not be loaded (e.g., HOME not set).
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
