// Semgrep MCP server — exposes Semgrep static-analysis tools to MCP
// clients over stdio or streamable HTTP, bridging tool calls to the
// external semgrep binary in daemon (RPC) or one-shot CLI mode.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/semgrep-mcp/semgrep-mcp/pkg/server"
)

var opts server.Options

var rootCmd = &cobra.Command{
	Use:          "semgrep-mcp",
	Short:        "MCP server for Semgrep",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&opts.Transport, "transport", "t", "",
		"transport protocol: stdio or streamable-http (default from MCP_TRANSPORT)")
	rootCmd.Flags().IntVar(&opts.Port, "port", 0,
		"HTTP port for the streamable-http transport (default from MCP_PORT)")
	rootCmd.Flags().StringVar(&opts.SemgrepPath, "semgrep-path", "",
		"explicit path to the semgrep binary (default from SEMGREP_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// MCP stdio owns stdout, so all logging goes to stderr.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	srv, err := server.New(ctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize server")
		return err
	}
	defer func() {
		if err := srv.ShutdownFunc(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Shutdown reported errors")
		}
	}()

	log.Info().
		Str("transport", srv.Config.Transport).
		Str("version", srv.Config.Version).
		Msg("Semgrep MCP server starting")

	switch srv.Config.Transport {
	case "stdio":
		return mcpgo.ServeStdio(srv.MCP)
	case "streamable-http":
		return serveHTTP(srv)
	default:
		return fmt.Errorf("invalid transport %q: must be stdio or streamable-http", srv.Config.Transport)
	}
}

func serveHTTP(srv *server.Server) error {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Config.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", srv.Config.Port).Msg("Listening for MCP connections")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
