package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"streamline/config"
	"streamline/logger"
	"streamline/logview"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	logsFile  string
	logsLevel string
	logsLines int
)

func selectedLogPath() string {
	switch strings.ToLower(logsFile) {
	case "app":
		return config.AppConfig.Logging.AppLogPath
	case "proxy", "":
		return config.AppConfig.Logging.ProxyLogPath
	}
	fmt.Fprintf(os.Stderr, "Error: unknown log file %q (use proxy or app)\n", logsFile)
	os.Exit(1)
	return ""
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View, follow or clear the proxy and app logs",
}

var logsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the tail of a log, optionally filtered by minimum level",
	Run: func(cmd *cobra.Command, args []string) {
		if !logview.ValidLevel(logsLevel) {
			fmt.Fprintf(os.Stderr, "Error: unknown level %q (one of %s)\n", logsLevel, strings.Join(logview.Levels, ", "))
			os.Exit(1)
		}
		path := selectedLogPath()
		lines, err := logview.Tail(path, logsLines)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("%s does not exist yet.\n", path)
				return
			}
			logger.Error("Failed to read %s: %v", path, err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, line := range logview.FilterByLevel(lines, logsLevel) {
			fmt.Println(line)
		}
	},
}

var logsFollowCmd = &cobra.Command{
	Use:   "follow",
	Short: "Stream new log lines until Ctrl+C",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		path := selectedLogPath()
		minLevel := strings.ToUpper(logsLevel)
		err := logview.Follow(ctx, path, func(line string) {
			if len(logview.FilterByLevel([]string{line}, minLevel)) > 0 {
				fmt.Println(line)
			}
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("Following %s failed: %v", path, err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Truncate a log file",
	Run: func(cmd *cobra.Command, args []string) {
		path := selectedLogPath()
		if err := logview.Clear(path); err != nil {
			logger.Error("Failed to clear %s: %v", path, err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Cleared %s.\n", path)
	},
}

func init() {
	logsCmd.PersistentFlags().StringVarP(&logsFile, "file", "f", "proxy", "Which log to use: proxy or app")
	logsShowCmd.Flags().StringVarP(&logsLevel, "level", "l", logview.AllLevels, "Minimum level to show (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	logsShowCmd.Flags().IntVarP(&logsLines, "lines", "n", logview.DefaultLines, "Number of trailing lines to read")
	logsFollowCmd.Flags().StringVarP(&logsLevel, "level", "l", logview.AllLevels, "Minimum level to show")

	logsCmd.AddCommand(logsShowCmd, logsFollowCmd, logsClearCmd)
	rootCmd.AddCommand(logsCmd)
}
