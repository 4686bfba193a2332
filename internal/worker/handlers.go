package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"voiceeval/internal/pipeline"
	"voiceeval/internal/tasks"
)

// Runner executes one pipeline job to completion. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job)
}

// NaturalnessDeps holds dependencies for the naturalness run handler.
type NaturalnessDeps struct {
	Runner Runner
}

// RegisterHandlers wires every task type this service processes into mux.
func RegisterHandlers(mux *asynq.ServeMux, deps NaturalnessDeps) {
	log.Infof("Registering handler for %s", tasks.TypeNaturalnessRun)
	mux.HandleFunc(tasks.TypeNaturalnessRun, HandleNaturalnessRun(deps))
}

// HandleNaturalnessRun returns the asynq handler for TypeNaturalnessRun. The
// pipeline reports its own outcome, so only an undecodable payload is an error.
func HandleNaturalnessRun(deps NaturalnessDeps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := tasks.ParseRunPayload(t)
		if err != nil {
			log.Errorf("Dropping malformed %s task: %v", t.Type(), err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}

		deps.Runner.Run(ctx, pipeline.Job{
			TaskName:      payload.TaskName,
			Request:       payload.Request,
			OriginalKey:   payload.OriginalKey,
			TranslatedKey: payload.TranslatedKey,
		})
		return nil
	}
}
