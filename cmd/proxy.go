package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"streamline/config"
	"streamline/core"
	"streamline/database"
	"streamline/logger"
	"syscall"

	"github.com/spf13/cobra"
)

var standaloneProxyPort string

// newProxyService builds the controller from the loaded configuration.
func newProxyService(metrics *core.Metrics) (*core.ProxyService, error) {
	ca, err := core.LoadCA(config.AppConfig.Proxy.CACertPath, config.AppConfig.Proxy.CAKeyPath)
	if err != nil {
		return nil, err
	}
	if config.AppConfig.Proxy.CACertPath == "" {
		logger.ProxyWarn("No proxy.ca_cert_path configured; intercepting HTTPS with the built-in goproxy CA.")
	} else {
		logger.ProxyInfo("Proxy using CA Cert: %s, CA Key: %s", config.AppConfig.Proxy.CACertPath, config.AppConfig.Proxy.CAKeyPath)
	}

	// Runs left open by a process that died mid-run.
	if n, err := database.MarkAbandonedRuns(); err != nil {
		logger.Error("Failed to close abandoned proxy runs: %v", err)
	} else if n > 0 {
		logger.Warn("Marked %d abandoned proxy run(s) as faulted", n)
	}

	ctrl := core.NewController(core.NewEventBus(), core.ControllerOptions{
		ListenHost:         config.AppConfig.Proxy.ListenHost,
		CA:                 &ca,
		SkipUpstreamVerify: config.AppConfig.Proxy.UpstreamSkipTLSVerify,
		HTTP2:              config.AppConfig.Proxy.HTTP2,
		ShutdownTimeout:    config.AppConfig.Proxy.ShutdownTimeout,
		Logger:             logger.Proxy(),
		Metrics:            metrics,
		Recorder:           database.RunStore{},
	})
	return core.NewProxyService(ctrl, config.AppConfig.Proxy.Port), nil
}

// exitCodeForStartError keeps the refusal kinds distinguishable for scripts.
func exitCodeForStartError(err error) int {
	kind, ok := core.StartErrorKindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case core.NoActiveRules:
		return 3
	case core.PortUnavailable:
		return 4
	case core.AlreadyRunning:
		return 5
	}
	return 1
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Manages the blocking proxy (can be run standalone or as part of 'start')",
}

var proxyStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the blocking proxy in the foreground",
	Long: `Starts the proxy with a snapshot of the currently active block rules and runs
until Ctrl+C. Port precedence: --port, then the stored proxy_port setting, then proxy.port.
Rule changes take effect on the next start.`,
	Run: func(cmd *cobra.Command, args []string) {
		override := ""
		if cmd.Flags().Changed("port") {
			override = standaloneProxyPort
		}

		logger.MirrorProxyTo(os.Stdout)
		defer logger.MirrorProxyTo(nil)

		svc, err := newProxyService(nil)
		if err != nil {
			logger.Error("Proxy setup failed: %v", err)
			os.Exit(1)
		}
		run, err := svc.Start(override)
		if err != nil {
			logger.ProxyError("Error starting proxy: %v", err)
			os.Exit(exitCodeForStartError(err))
		}
		fmt.Printf("Proxy listening on %s with %d active pattern(s). Press Ctrl+C to stop.\n", run.Addr(), run.PatternCount)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
			logger.ProxyInfo("Shutdown signal received, draining connections...")
			if err := run.Stop(context.Background()); err != nil {
				logger.ProxyError("Proxy stopped with error: %v", err)
				os.Exit(1)
			}
			logger.ProxyInfo("Proxy stopped.")
		case <-run.Done():
			var fault *core.RuntimeFault
			if errors.As(run.Err(), &fault) {
				logger.ProxyError("Proxy terminated unexpectedly: %v", fault)
				os.Exit(2)
			}
		}
	},
}

var proxyPortCheckCmd = &cobra.Command{
	Use:   "check-port [port]",
	Short: "Reports whether the effective (or given) proxy port can be bound",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		override := ""
		if len(args) == 1 {
			override = args[0]
		}
		svc := core.NewProxyService(nil, config.AppConfig.Proxy.Port)
		port, err := svc.EffectivePort(override)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if !core.IsPortAvailable(config.AppConfig.Proxy.ListenHost, port) {
			fmt.Printf("Port %d is in use.\n", port)
			os.Exit(4)
		}
		fmt.Printf("Port %d is available.\n", port)
	},
}

func init() {
	proxyStartCmd.Flags().StringVarP(&standaloneProxyPort, "port", "p", "", "Port for the proxy to listen on (overrides the stored setting and config)")

	proxyCmd.AddCommand(proxyStartCmd)
	proxyCmd.AddCommand(proxyPortCheckCmd)
	rootCmd.AddCommand(proxyCmd)
}
