package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/deskd/cli"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/paths"
	"github.com/grovetools/deskd/tui/theme"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		Long: `Print the most recent daemon log file. Structured (JSON) log lines are
reformatted for reading; other lines are printed as they are.

Examples:
  # Follow the daemon log
  deskd logs -f

  # Last 100 lines from the audio service only
  deskd logs --tail 100 --service audio
`,
		Args: cobra.NoArgs,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().String("service", "", "Only show lines from this service")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd)
	opts := cli.GetOptions(cmd)
	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")
	serviceFilter, _ := cmd.Flags().GetString("service")

	logFile, err := findLogFile(cmd)
	if err != nil {
		return err
	}
	logger.WithField("log_file", logFile).Debug("Reading log file")

	emit := func(line string) {
		if line == "" || !matchesService(line, serviceFilter) {
			return
		}
		if opts.JSONOutput {
			printLogJSON(cmd.OutOrStdout(), line)
		} else {
			printLogText(cmd.OutOrStdout(), line)
		}
	}

	if !follow || tailLines >= 0 {
		lines, err := readLines(logFile, tailLines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			emit(line)
		}
	}
	if !follow {
		return nil
	}

	// Start at the end when the existing content was already printed or
	// skipped on purpose.
	location := &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	t, err := tail.TailFile(logFile, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  location,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", logFile, err)
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				logger.WithError(line.Err).Debug("Tail error")
				continue
			}
			emit(strings.TrimRight(line.Text, "\r"))
		}
	}
}

// findLogFile returns the file configured under logging.file, or the most
// recently written file in the daemon log directory.
func findLogFile(cmd *cobra.Command) (string, error) {
	if cfg, _, err := cli.LoadConfig(cmd); err == nil {
		var logCfg logging.Config
		if err := cfg.UnmarshalExtension("logging", &logCfg); err == nil && logCfg.File.Enabled && logCfg.File.Path != "" {
			path := logCfg.File.Path
			if strings.HasPrefix(path, "~") {
				if home, err := os.UserHomeDir(); err == nil {
					path = filepath.Join(home, path[1:])
				}
			}
			return path, nil
		}
	}
	return findLatestLogFile(paths.LogDir())
}

// findLatestLogFile finds the most recently modified non-empty file in a
// directory, falling back to the newest empty one.
func findLatestLogFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	var latest, latestNonEmpty os.FileInfo
	var latestPath, latestNonEmptyPath string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == nil || info.ModTime().After(latest.ModTime()) {
			latest = info
			latestPath = filepath.Join(dir, entry.Name())
		}
		if info.Size() > 0 && (latestNonEmpty == nil || info.ModTime().After(latestNonEmpty.ModTime())) {
			latestNonEmpty = info
			latestNonEmptyPath = filepath.Join(dir, entry.Name())
		}
	}

	if latestNonEmpty != nil {
		return latestNonEmptyPath, nil
	}
	if latest == nil {
		return "", fmt.Errorf("no log files found in %s", dir)
	}
	return latestPath, nil
}

// readLines returns the last n lines of path, or all of them when n < 0.
func readLines(path string, n int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if n >= 0 && n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func matchesService(line, service string) bool {
	if service == "" {
		return true
	}
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err == nil {
		s, _ := logMap["service"].(string)
		return s == service
	}
	return strings.Contains(line, "service="+service)
}

// printLogJSON re-emits a structured line compactly. Text lines are wrapped
// so the output stays one JSON object per line.
func printLogJSON(w io.Writer, line string) {
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		logMap = map[string]interface{}{"raw_line": line}
	}
	data, _ := json.Marshal(logMap)
	fmt.Fprintln(w, string(data))
}

// printLogText pretty-prints a log line for human consumption.
func printLogText(w io.Writer, line string) {
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		fmt.Fprintln(w, line)
		return
	}

	t := theme.DefaultTheme
	ts, _ := logMap["time"].(string)
	level, _ := logMap["level"].(string)
	msg, _ := logMap["msg"].(string)
	component, _ := logMap["component"].(string)

	parsedTime, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		parsedTime, _ = time.Parse(time.RFC3339, ts)
	}

	var levelStyle lipgloss.Style
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = t.Error
	case "warning":
		levelStyle = t.Warning
	case "info":
		levelStyle = t.Info
	default:
		levelStyle = t.Muted
	}

	var keys []string
	for k := range logMap {
		switch k {
		case "time", "level", "msg", "component":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", t.Muted.Render(k), logMap[k]))
	}

	fmt.Fprintf(w, "%s %s %s [%s] %s\n",
		parsedTime.Format("15:04:05"),
		levelStyle.Render(strings.ToUpper(level)),
		msg,
		t.Accent.Render(component),
		strings.Join(fields, " "),
	)
}
