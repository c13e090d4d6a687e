package cmd

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"streamline/api"
	"streamline/api/router/handlers"
	"streamline/config"
	"streamline/core"
	"streamline/logger"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var standaloneServerPort string

// newAPIServer wires the API around svc. The server is not started.
func newAPIServer(svc *core.ProxyService, metrics *core.Metrics, port string) *http.Server {
	handler := api.NewHandler(api.Options{
		Proxy:   svc,
		Metrics: metrics,
		Logs: handlers.LogPaths{
			App:   config.AppConfig.Logging.AppLogPath,
			Proxy: config.AppConfig.Logging.ProxyLogPath,
		},
		UpdateURL: config.AppConfig.Update.CheckURL,
		UpdateClient: &http.Client{
			Timeout:   config.AppConfig.Update.Timeout,
			Transport: &http.Transport{Proxy: nil},
		},
	})
	return &http.Server{
		Addr:              net.JoinHostPort(config.AppConfig.Server.Host, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(logger.PrintfLogger{L: logger.App()}, "", 0),
	}
}

func apiPort(cmd *cobra.Command, flagName, flagValue string) string {
	if cmd.Flags().Changed(flagName) {
		return flagValue
	}
	if config.AppConfig.Server.Port != "" {
		return config.AppConfig.Server.Port
	}
	return config.DefaultServerPort
}

func shutdownAPI(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("API server graceful shutdown failed: %v", err)
		return
	}
	logger.Info("API server stopped.")
}

// logRunEvents copies proxy run transitions into the app log.
func logRunEvents(bus *core.EventBus) func() {
	events, unsubscribe := bus.Subscribe(16)
	go func() {
		for e := range events {
			switch e.Type {
			case core.EventStarted:
				logger.Info("Proxy run %s started on port %d with %d pattern(s)", e.RunID, e.Port, e.PatternCount)
			case core.EventStopped:
				logger.Info("Proxy run %s stopped", e.RunID)
			case core.EventFaulted:
				logger.Error("Proxy run %s faulted: %v", e.RunID, e.Err)
			}
		}
	}()
	return unsubscribe
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the control API (the proxy is started and stopped through it)",
	Run: func(cmd *cobra.Command, args []string) {
		metrics := core.NewMetrics()
		svc, err := newProxyService(metrics)
		if err != nil {
			logger.Fatal("Proxy setup failed: %v", err)
		}
		server := newAPIServer(svc, metrics, apiPort(cmd, "port", standaloneServerPort))
		unsubscribe := logRunEvents(svc.Controller.Bus())
		defer unsubscribe()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("API server listening on http://%s/api", server.Addr)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("Could not start API server: %v", err)
			}
		case <-ctx.Done():
			logger.Info("Shutdown signal received.")
			shutdownAPI(server)
		}

		if err := svc.Stop(context.Background()); err != nil && !errors.Is(err, core.ErrNotRunning) {
			logger.Error("Stopping proxy: %v", err)
		}
	},
}

func init() {
	serverCmd.Flags().StringVarP(&standaloneServerPort, "port", "p", config.DefaultServerPort, "Port for the API server (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}
