package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"concierge/provider"
	"concierge/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the turn endpoint",
	Long: `Serve POST /api/turn_response. Each request is forwarded to the Responses API
and its events are streamed back as SSE frames, so chat clients can run
without an API key of their own.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", ":3000", "address to listen on")
	_ = viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	streamer, err := provider.NewResponsesStreamer(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.Model)
	if err != nil {
		return err
	}
	srv := server.New(streamer)
	listen := viper.GetString("listen")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(listen) }()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s (model %s)\n", server.TurnPath, listen, streamer.Model())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
	return nil
}
