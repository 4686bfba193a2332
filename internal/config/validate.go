package config

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

/*
Validate checks the settings every command relies on:
- Redis (task queue and progress relay)
- Worker queues
- Artifact storage for the selected driver
- Gateway endpoints
- Log level
*/
func (c *Config) Validate() error {
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}

	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}
	if _, ok := c.Worker.Queues[c.Worker.Queue]; !ok {
		return fmt.Errorf("worker.queue '%s' is not listed in worker.queues", c.Worker.Queue)
	}

	switch c.Storage.Driver {
	case StorageDriverS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required when storage.driver is s3")
		}
		if c.Storage.Region == "" {
			return errors.New("storage.region is required when storage.driver is s3")
		}
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir is required when storage.driver is local")
		}
	default:
		return fmt.Errorf("unknown storage.driver '%s' (expected s3 or local)", c.Storage.Driver)
	}

	if c.Synthesis.ElevenLabs.URL == "" {
		return errors.New("synthesis.elevenlabs.url is required")
	}
	if c.Synthesis.ElevenLabs.RatePerSecond < 0 {
		return errors.New("synthesis.elevenlabs.rate_per_second must not be negative")
	}

	if c.Scoring.URL == "" {
		return errors.New("scoring.url is required")
	}

	if c.Progress.WriteTimeout <= 0 {
		return errors.New("progress.write_timeout must be positive")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got '%s'", c.Log.Format)
	}

	return nil
}
