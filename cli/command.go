package cli

import (
	"context"
	"os"

	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/paths"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommandOptions holds the options shared by every deskd command.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a command with the standard deskd flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to deskd.yml or deskd.toml")

	SetStyledHelp(cmd)

	return cmd
}

// Execute runs root and reports any error through the ErrorHandler.
// It returns the process exit code.
func Execute(ctx context.Context, root *cobra.Command) int {
	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	if cmd == nil {
		cmd = root
	}
	NewErrorHandler(GetOptions(cmd).Verbose).HandleFor(cmd, err)
	return 1
}

// GetLogger returns the CLI logger adjusted for --verbose and --json.
func GetLogger(cmd *cobra.Command) *logrus.Logger {
	logger := logging.NewLogger("deskd-cli").Logger

	opts := GetOptions(cmd)
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if opts.JSONOutput {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}

// GetOptions extracts the standard options from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// InitConfig resolves the configuration file path. An empty result means no
// file exists and defaults apply.
func InitConfig(configFile string) (string, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return "", errors.ConfigNotFound(configFile)
		}
		return configFile, nil
	}

	found, err := config.FindConfigFile(paths.ConfigDir())
	if err != nil {
		return "", nil
	}
	return found, nil
}

// LoadConfig loads the configuration selected by --config.
func LoadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := InitConfig(GetOptions(cmd).ConfigFile)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
