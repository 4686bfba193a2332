package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"voiceeval/internal/tasks"
)

// AsynqJobClient enqueues pipeline runs on the Redis-backed asynq queue.
var _ JobClient = (*AsynqJobClient)(nil)

type AsynqJobClient struct {
	client *asynq.Client
	queue  string
}

func NewAsynqJobClient(redisOpts asynq.RedisClientOpt, queue string) (*AsynqJobClient, error) {
	if queue == "" {
		return nil, fmt.Errorf("queue name cannot be empty for AsynqJobClient")
	}
	cli := asynq.NewClient(redisOpts)
	return &AsynqJobClient{client: cli, queue: queue}, nil
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Enqueue hands a task to asynq on the client's queue unless opts override it.
func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if jc.client == nil {
		return nil, fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	opts = append([]asynq.Option{asynq.Queue(jc.queue)}, opts...)

	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		log.Printf("ERROR: Failed to enqueue task type '%s': %v", task.Type(), err)
		return nil, err
	}
	log.Debugf("Enqueued task type '%s': id=%s queue=%s", task.Type(), info.ID, info.Queue)
	return info, nil
}

// EnqueueNaturalnessRun queues one pipeline run. The task ID is the task name, so
// the same task can never be queued twice.
func (jc *AsynqJobClient) EnqueueNaturalnessRun(ctx context.Context, payload tasks.RunPayload) error {
	task, err := tasks.NewRunTask(payload)
	if err != nil {
		return err
	}
	_, err = jc.Enqueue(ctx, task, asynq.TaskID(payload.TaskName))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue naturalness run %s: %w", payload.TaskName, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("enqueue naturalness run %s: %w", payload.TaskName, err)
	}
	return nil
}
