package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"voiceeval/internal/apihandlers"
	"voiceeval/internal/app"
	"voiceeval/internal/progress"
)

var (
	serveAddr      string // Listen address
	servePort      string // Listen port
	embeddedWorker bool
)

const relayRetryDelay = 5 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the submission API and progress WebSocket",
	Long: `Starts the HTTP server: POST /agent/tts-naturalness accepts tasks, GET /ws streams
progress events and GET /health reports liveness. By default an Asynq worker runs
in the same process; disable it with --embedded-worker=false when running
standalone "worker" processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if cmd.Flags().Changed("embedded-worker") {
			cfg.Worker.Embedded = embeddedWorker
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, appInstance)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides server.port)")
	serveCmd.Flags().BoolVar(&embeddedWorker, "embedded-worker", true, "Run the pipeline worker inside the server process")
}

func runServer(ctx context.Context, appInstance *app.App) error {
	cfg := appInstance.Config

	router := gin.Default()
	apihandlers.RegisterRoutes(router, apihandlers.NewAPIHandler(appInstance))

	listenAddr := fmt.Sprintf("%s:%s", cfg.Server.Addr, cfg.Server.Port)
	httpSrv := &http.Server{Addr: listenAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Starting API server on http://%s", listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down API server...")
		// Closing subscribers first lets their handlers return before Shutdown waits on them.
		appInstance.Broadcaster.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if cfg.Worker.Embedded {
		srv, mux := newWorkerServer(appInstance)
		log.Printf("Starting embedded Asynq worker (Concurrency: %d, Queues: %v)", cfg.Worker.Concurrency, cfg.Worker.Queues)
		if err := srv.Start(mux); err != nil {
			return fmt.Errorf("failed to start Asynq server: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			srv.Stop()
			srv.Shutdown()
			return nil
		})
	}

	if ch := cfg.Progress.RelayChannel; ch != "" {
		relay := progress.NewRelay(appInstance.Redis, ch, appInstance.Broadcaster)
		g.Go(func() error {
			runRelay(gctx, relay)
			return nil
		})
	}

	return g.Wait()
}

// runRelay keeps the Redis relay alive until ctx is done.
func runRelay(ctx context.Context, relay *progress.Relay) {
	for {
		err := relay.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Warnf("Progress relay stopped: %v; retrying in %s", err, relayRetryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(relayRetryDelay):
		}
	}
}
