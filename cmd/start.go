package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"streamline/core"
	"streamline/logger"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	startServerPort string
	startProxyPort  string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the control API and the blocking proxy together",
	Long: `Starts the control API and immediately starts the proxy with the active rules.
Press Ctrl+C to stop both. If the proxy faults, the API is shut down too.`,
	Run: func(cmd *cobra.Command, args []string) {
		metrics := core.NewMetrics()
		svc, err := newProxyService(metrics)
		if err != nil {
			logger.Fatal("Proxy setup failed: %v", err)
		}
		unsubscribe := logRunEvents(svc.Controller.Bus())
		defer unsubscribe()

		override := ""
		if cmd.Flags().Changed("proxy-port") {
			override = startProxyPort
		}
		run, err := svc.Start(override)
		if err != nil {
			logger.Error("Error starting proxy: %v", err)
			os.Exit(exitCodeForStartError(err))
		}

		server := newAPIServer(svc, metrics, apiPort(cmd, "server-port", startServerPort))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		go func() {
			logger.Info("API server listening on http://%s/api", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cancel(fmt.Errorf("api server: %w", err))
			}
		}()
		go func() {
			select {
			case <-run.Done():
				if err := run.Err(); err != nil {
					cancel(err)
				}
			case <-ctx.Done():
			}
		}()

		fmt.Printf("Proxy on %s, API on http://%s/api. Press Ctrl+C to stop.\n", run.Addr(), server.Addr)
		<-ctx.Done()

		exitCode := 0
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			logger.Error("Shutting down after failure: %v", cause)
			exitCode = 1
			var fault *core.RuntimeFault
			if errors.As(cause, &fault) {
				exitCode = 2
			}
		} else {
			logger.Info("Shutdown signal received.")
		}

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := svc.Stop(stopCtx); err != nil && !errors.Is(err, core.ErrNotRunning) {
			logger.Error("Stopping proxy: %v", err)
		}
		shutdownAPI(server)

		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	startCmd.Flags().StringVar(&startServerPort, "server-port", "", "Port for the API server (overrides server.port)")
	startCmd.Flags().StringVarP(&startProxyPort, "proxy-port", "p", "", "Port for the proxy (overrides the stored setting and proxy.port)")
	rootCmd.AddCommand(startCmd)
}
