package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MaceGrim/ruhroh/internal/adapters/driving/httpapi"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the evaluation worker",
	Long: `Starts the local HTTP API (chat over Server-Sent Events, search,
thread management, evaluation runs) and the background evaluation
worker. Configuration file edits are picked up live.

Runs until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if chatService == nil || configStore == nil {
		return errors.New("services not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := serveAddr
	if addr == "" {
		addr = configStore.Server().ListenAddr
	}

	server := httpapi.NewServer(httpapi.Config{ListenAddr: addr},
		chatService, threadService, searchService, evalService)
	if err := server.Start(); err != nil {
		return err
	}

	if evalRunner != nil {
		go evalRunner.Run(ctx)
	}

	go func() {
		if err := configStore.Watch(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watcher stopped: %v", err)
		}
	}()

	cmd.Printf("Listening on http://%s (config: %s)\n", server.Addr(), configStore.Path())

	<-ctx.Done()
	logger.Info("shutting down")
	return server.Shutdown(context.Background())
}
