package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depsolve/pkg/api"
	"github.com/matzehuels/depsolve/pkg/resolve"
)

// serveCommand creates the HTTP API command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		src  sourceFlags
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP resolution API",
		Long: `Serve exposes resolution over HTTP. Clients POST a project manifest to
/api/v1/resolve and receive one resolution document per configuration.
The server shares one metadata source and cache across requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), src, addr)
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, src sourceFlags, addr string) error {
	logger := loggerFromContext(ctx)

	source, cleanup, err := src.open(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(source, resolve.Options{}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
