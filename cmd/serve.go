package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/lqasync/internal/api"
	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/internal/syncer"
)

const shutdownTimeout = 10 * time.Second

// serveCmd exposes the interactive path over HTTP.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API used by the ticket form",
	Long: `Serve the JSON API used by the interactive ticket form:

  GET  /api/details/{itemId}          prefill values for a subitem
  POST /api/create                    create a ticket from the submitted form
  POST /api/items/{itemId}/request    hand a ticket request to the board automation
  GET  /healthz                       liveness

The request route is only enabled when MONDAY_REQUEST_COLUMN_ID is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return err
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if addr == "" {
			addr = ":" + cfg.Server.Port
		}

		srv, err := newAPIServer(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return listen(ctx, addr, srv.Router())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Address to listen on (default \":$PORT\")")
}

func newAPIServer(cfg *config.Config) (*api.Server, error) {
	board, err := newBoard(cfg)
	if err != nil {
		return nil, err
	}
	tracker, err := newTracker(cfg)
	if err != nil {
		return nil, err
	}
	m, err := newMapper(cfg, true)
	if err != nil {
		return nil, err
	}

	var requests *syncer.Engine
	if cfg.Monday.Columns.Request != "" {
		requests, err = newRequestEngine(cfg, board)
		if err != nil {
			return nil, err
		}
	} else {
		logging.Warn("ticket request route disabled", "reason", "MONDAY_REQUEST_COLUMN_ID not set")
	}

	return api.NewServer(board, tracker, m, requests), nil
}

// listen serves handler until ctx is done, then shuts down gracefully.
func listen(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	logging.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
