// In file: cmd/assistant/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP chat API",
		Long: `Serve the HTTP chat API.

Endpoints:
  POST   /api/v1/chat              {"user_name": "...", "message": "..."}
  GET    /api/v1/memories/:user    List a user's stored conversation turns
  DELETE /api/v1/memories/:user    Forget a user's conversation turns
  GET    /healthz                  Liveness
  GET    /metrics                  Prometheus metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if cmd.Flags().Changed("port") {
				a.cfg.HTTPPort = port
			}
			return a.serve(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port (overrides HTTP_PORT)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(a.log))
	NewChatHandler(a.orch, a.memory, a.log).Routes(engine)

	srv := &http.Server{Addr: a.cfg.Addr(), Handler: engine}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("assistant is listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.log.Info().Msg("server exited gracefully")
	return nil
}
