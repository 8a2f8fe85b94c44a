package cmd

import (
	"github.com/grovetools/deskd/cli"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the paths deskd reads and writes.
type PathsOutput struct {
	ConfigDir      string   `json:"config_dir"`
	StateDir       string   `json:"state_dir"`
	CacheDir       string   `json:"cache_dir"`
	LogDir         string   `json:"log_dir"`
	Socket         string   `json:"socket"`
	PidFile        string   `json:"pid_file"`
	FrequencyCache string   `json:"frequency_cache"`
	CliphistDB     string   `json:"cliphist_db"`
	DesktopDirs    []string `json:"desktop_dirs"`
}

func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by deskd",
		Long: `Print the paths used by deskd.

Paths follow the XDG Base Directory Specification. DESKD_HOME moves every
deskd-owned path under a single root.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				cfg = nil
			}
			output := PathsOutput{
				ConfigDir:      paths.ConfigDir(),
				StateDir:       paths.StateDir(),
				CacheDir:       paths.CacheDir(),
				LogDir:         paths.LogDir(),
				Socket:         socketPath(cfg),
				PidFile:        paths.PidFilePath(),
				FrequencyCache: paths.FrequencyCachePath(),
				CliphistDB:     paths.CliphistDBPath(),
				DesktopDirs:    paths.DesktopFileDirs(),
			}

			if cli.GetOptions(cmd).JSONOutput {
				return printValue(cmd.OutOrStdout(), output)
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Path("config", output.ConfigDir)
			pretty.Path("state", output.StateDir)
			pretty.Path("cache", output.CacheDir)
			pretty.Path("logs", output.LogDir)
			pretty.Path("socket", output.Socket)
			pretty.Path("pid file", output.PidFile)
			pretty.Path("frequency", output.FrequencyCache)
			pretty.Path("cliphist", output.CliphistDB)
			pretty.Divider()
			for _, dir := range output.DesktopDirs {
				pretty.Path("desktop", dir)
			}
			return nil
		},
	}
}
