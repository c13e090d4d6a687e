package cmd

import (
	"fmt"
	"os"
	"streamline/config"
	"streamline/database"
	"streamline/logger"
	"streamline/models"
	"strconv"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change persisted application settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print stored settings and the effective proxy port",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := database.GetAppSettings()
		if err != nil {
			logger.Error("Failed to read settings: %v", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		stored := s.ProxyPort
		if stored == "" {
			stored = "(not set)"
		}
		fmt.Printf("proxy_port (stored):  %s\n", stored)
		fmt.Printf("proxy.port (config):  %s\n", config.AppConfig.Proxy.Port)
		port, err := config.ResolvePort(s.ProxyPort, config.AppConfig.Proxy.Port)
		if err != nil {
			fmt.Printf("effective proxy port: invalid (%v)\n", err)
			return
		}
		fmt.Printf("effective proxy port: %d\n", port)
	},
}

var settingsSetPortCmd = &cobra.Command{
	Use:   "set-port <port>",
	Short: "Persist the proxy port used by the next proxy start (\"\" clears it)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		value := args[0]
		if value != "" {
			port, err := config.ParsePort(value)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			value = strconv.Itoa(port)
		}
		if err := database.SetSetting(models.ProxyPortKey, value); err != nil {
			logger.Error("Failed to store proxy port: %v", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if value == "" {
			logger.Info("Stored proxy port cleared")
			fmt.Println("Stored proxy port cleared.")
			return
		}
		logger.Info("Stored proxy port set to %s", value)
		fmt.Printf("Proxy port set to %s. It applies from the next proxy start.\n", value)
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetPortCmd)
	rootCmd.AddCommand(settingsCmd)
}
