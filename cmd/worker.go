package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"voiceeval/internal/app"
	"voiceeval/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background pipeline worker",
	Long: `Starts an Asynq worker process that runs queued TTS naturalness tasks. Run it
next to "serve --embedded-worker=false" to scale pipeline runs independently of
the HTTP API. Set progress.relay_channel so that progress reaches the API's
WebSocket subscribers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}

		if err := runWorker(appInstance); err != nil {
			log.Errorf("Worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// newWorkerServer builds the asynq server and its handler mux from app.
func newWorkerServer(appInstance *app.App) (*asynq.Server, *asynq.ServeMux) {
	cfg := appInstance.Config

	srv := asynq.NewServer(
		appInstance.RedisClientOpt(),
		asynq.Config{
			Concurrency:     cfg.Worker.Concurrency,
			Queues:          cfg.Worker.Queues,
			ShutdownTimeout: cfg.Worker.ShutdownTimeout,
			Logger:          log.StandardLogger(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithFields(log.Fields{
					"task_id": task.ResultWriter().TaskID(),
					"type":    task.Type(),
				}).Errorf("Asynq task failed: %v", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.NaturalnessDeps{Runner: appInstance.Orchestrator})
	return srv, mux
}

// runWorker runs the asynq worker until SIGINT or SIGTERM.
func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config
	if cfg.Progress.RelayChannel == "" {
		log.Warn("progress.relay_channel is empty; progress events from this worker stay in-process and reach no WebSocket subscriber")
	}

	srv, mux := newWorkerServer(appInstance)

	log.Printf("Starting Asynq worker server (Concurrency: %d, Queues: %v)...", cfg.Worker.Concurrency, cfg.Worker.Queues)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Println("Shutdown signal received. Initiating graceful shutdown...")
	srv.Stop()
	srv.Shutdown()

	log.Println("Worker shutdown complete.")
	return nil
}
