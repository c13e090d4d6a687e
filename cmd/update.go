package cmd

import (
	"context"
	"fmt"
	"os"
	"streamline/config"
	"streamline/logger"
	"streamline/update"
	"streamline/version"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Release update tools",
}

var updateCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Checks whether a newer release has been published",
	Run: func(cmd *cobra.Command, args []string) {
		timeout := config.AppConfig.Update.Timeout
		if timeout <= 0 {
			timeout = update.DefaultTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		res, err := update.Check(ctx, nil, config.AppConfig.Update.CheckURL, version.AppVersion)
		if err != nil {
			logger.Error("Update check failed: %v", err)
			fmt.Fprintf(os.Stderr, "Update check failed: %v\n", err)
			os.Exit(1)
		}
		if res.UpdateAvailable {
			fmt.Printf("A new version is available: %s (current %s).\n", res.Latest, res.Current)
			return
		}
		fmt.Printf("You are running the latest version (%s).\n", res.Current)
	},
}

func init() {
	updateCmd.AddCommand(updateCheckCmd)
	rootCmd.AddCommand(updateCmd)
}
