package cmd

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/buildrecorder/internal/logging"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View recorder logs",
	Long: `View and filter the recorder log, including rotated backups.

By default, reads recorder.log from logging.dir and shows the last 50
entries. Use flags to filter and format the output.

Examples:
  # Show last 50 entries
  buildrecorder logs

  # Show everything one module logged
  buildrecorder logs -n 0 --module org.acme:core:1.0

  # Filter by log level
  buildrecorder logs --level warn

  # Show logs from the last hour as CSV
  buildrecorder logs --since 1h --format csv

  # Search for specific patterns
  buildrecorder logs --grep "upload|publish"`,
	RunE: runLogs,
}

var (
	logsDir    string
	logsTail   int
	logsLevel  string
	logsSince  string
	logsGrep   string
	logsModule string
	logsWorker string
	logsPhase  string
	logsBuild  string
	logsFormat string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsDir, "dir", "d", "", "Log directory (default: logging.dir)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsModule, "module", "", "Only entries for this module id")
	logsCmd.Flags().StringVar(&logsWorker, "worker", "", "Only entries for this worker")
	logsCmd.Flags().StringVar(&logsPhase, "phase", "", "Only entries for this deploy phase")
	logsCmd.Flags().StringVar(&logsBuild, "build", "", "Only entries for this build name")
	logsCmd.Flags().StringVar(&logsFormat, "format", "", "Output format: json, text or csv (default: colored)")
}

// Level colors for terminal output
var (
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	contextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	levelStyles  = map[string]lipgloss.Style{
		logging.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		logging.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		logging.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

// logQuery is the parsed form of the logs flags.
type logQuery struct {
	filter logging.LogFilter
	grep   *regexp.Regexp
	tail   int
	format string
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		dir = viper.GetString("logging.dir")
	}
	if dir == "" {
		return fmt.Errorf("no log directory: set logging.dir or pass --dir (recorder logs go to stderr otherwise)")
	}

	q, err := parseLogQuery(time.Now())
	if err != nil {
		return err
	}

	entries, err := logging.AggregateLogs(dir)
	if err != nil {
		return err
	}
	return writeLogs(cmd.OutOrStdout(), entries, q)
}

func parseLogQuery(now time.Time) (logQuery, error) {
	q := logQuery{
		filter: logging.LogFilter{
			Build:    logsBuild,
			ModuleID: logsModule,
			Worker:   logsWorker,
			Phase:    logsPhase,
		},
		tail:   logsTail,
		format: logsFormat,
	}

	if logsLevel != "" {
		q.filter.Level = logging.ParseLevel(logsLevel)
	}

	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return logQuery{}, fmt.Errorf("invalid duration format: %w", err)
		}
		q.filter.StartTime = now.Add(-duration)
	}

	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return logQuery{}, fmt.Errorf("invalid grep pattern: %w", err)
		}
		q.grep = re
	}
	return q, nil
}

// writeLogs filters entries with q and writes the newest q.tail of them.
func writeLogs(w io.Writer, entries []logging.LogEntry, q logQuery) error {
	entries = logging.FilterLogs(entries, q.filter)
	if q.grep != nil {
		var matched []logging.LogEntry
		for _, e := range entries {
			if q.grep.MatchString(searchText(e)) {
				matched = append(matched, e)
			}
		}
		entries = matched
	}

	// Apply tail limit
	if q.tail > 0 && len(entries) > q.tail {
		entries = entries[len(entries)-q.tail:]
	}

	if q.format != "" {
		return logging.ExportLogEntries(w, entries, q.format)
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No matching log entries found.")
		return err
	}
	for i := range entries {
		if _, err := fmt.Fprintln(w, formatLogEntry(&entries[i])); err != nil {
			return err
		}
	}
	return nil
}

// searchText is the message plus every attribute value.
func searchText(e logging.LogEntry) string {
	parts := []string{e.Message}
	for _, v := range e.Attrs {
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, " ")
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(entry *logging.LogEntry) string {
	var sb strings.Builder

	sb.WriteString(timeStyle.Render("[" + entry.Timestamp.Format("15:04:05.000") + "]"))

	level := strings.ToUpper(entry.Level)
	style, ok := levelStyles[level]
	if !ok {
		style = lipgloss.NewStyle()
	}
	sb.WriteString(" ")
	sb.WriteString(style.Render("[" + level + "]"))

	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	// Context fields
	for _, kv := range [][2]string{
		{"build", entry.Build},
		{"module_id", entry.ModuleID},
		{"worker", entry.Worker},
		{"phase", entry.Phase},
	} {
		if kv[1] != "" {
			sb.WriteString(" ")
			sb.WriteString(contextStyle.Render(kv[0] + "=" + kv[1]))
		}
	}

	// Extra fields, sorted for stable output
	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(" ")
		sb.WriteString(contextStyle.Render(key + "="))
		sb.WriteString(fmt.Sprintf("%v", entry.Attrs[key]))
	}

	return sb.String()
}
