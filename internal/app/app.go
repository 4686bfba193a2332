package app

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"voiceeval/internal/config"
	"voiceeval/internal/pipeline"
	"voiceeval/internal/progress"
	"voiceeval/internal/services"
	"voiceeval/internal/store"
	"voiceeval/internal/store/artifact"
)

type App struct {
	Config *config.Config

	Artifacts store.ArtifactStore
	JobClient store.JobClient
	Redis     redis.UniversalClient

	// Broadcaster fans events out to this process's WebSocket subscribers.
	// Publisher is what the pipeline publishes to: the Broadcaster itself, or a
	// Redis channel relayed into every serve process when progress.relay_channel is set.
	Broadcaster *progress.Broadcaster
	Publisher   progress.Publisher

	Synthesizers []services.SynthesisProvider
	Scorer       services.Scorer
	Reporter     services.Reporter
	Orchestrator *pipeline.Orchestrator
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg}

	configureLogging(cfg)

	if err := app.initArtifactStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initRedis(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	app.initProgress()
	app.initServices()

	app.Orchestrator = pipeline.New(pipeline.Deps{
		Providers: app.Synthesizers,
		Scorer:    app.Scorer,
		Artifacts: app.Artifacts,
		Publisher: app.Publisher,
		Reporter:  app.Reporter,
	})

	log.Println("Application initialization complete.")
	return app, nil
}

// RedisClientOpt is the asynq connection derived from the redis config section.
func (a *App) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

// Close releases every connection held by the app.
func (a *App) Close() {
	if a.Broadcaster != nil {
		a.Broadcaster.Close()
	}
	a.cleanupPartialInit()
}

// --- Private Helper Methods ---

func configureLogging(cfg *config.Config) {
	if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stderr)
}

func (a *App) initArtifactStore(ctx context.Context) error {
	sc := a.Config.Storage
	switch sc.Driver {
	case config.StorageDriverLocal:
		ls, err := artifact.NewLocalDirStore(sc.LocalDir, sc.PublicBaseURL)
		if err != nil {
			return fmt.Errorf("init local artifact store: %w", err)
		}
		log.Printf("Using local artifact store at %s", sc.LocalDir)
		a.Artifacts = ls
	case config.StorageDriverS3:
		s3Store, err := artifact.NewS3Store(ctx, artifact.S3Options{
			Bucket:        sc.Bucket,
			Region:        sc.Region,
			DefaultRegion: sc.DefaultRegion,
			Timeout:       sc.Timeout,
		})
		if err != nil {
			return fmt.Errorf("init s3 artifact store: %w", err)
		}
		log.Printf("Using S3 artifact store (bucket=%s region=%s)", sc.Bucket, sc.Region)
		a.Artifacts = s3Store
	default:
		return fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
	return nil
}

func (a *App) initRedis() error {
	a.Redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	return nil
}

func (a *App) initJobClient() error {
	jc, err := store.NewAsynqJobClient(a.RedisClientOpt(), a.Config.Worker.Queue)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

func (a *App) initProgress() {
	a.Broadcaster = progress.NewBroadcaster(progress.WithWriteTimeout(a.Config.Progress.WriteTimeout))
	if ch := a.Config.Progress.RelayChannel; ch != "" {
		log.Printf("Publishing progress events to Redis channel %q", ch)
		a.Publisher = progress.NewRedisPublisher(a.Redis, ch)
		return
	}
	a.Publisher = a.Broadcaster
}

func (a *App) initServices() {
	cfg := a.Config

	el := cfg.Synthesis.ElevenLabs
	a.Synthesizers = []services.SynthesisProvider{
		services.NewElevenLabsProvider(services.ElevenLabsOptions{
			APIKey:        el.APIKey,
			URL:           el.URL,
			ModelID:       el.ModelID,
			Voices:        el.Voices,
			Timeout:       el.Timeout,
			RatePerSecond: el.RatePerSecond,
			Burst:         el.Burst,
		}),
	}

	a.Scorer = services.NewHTTPScorer(cfg.Scoring.URL, cfg.Scoring.Timeout, a.Artifacts)

	if cfg.Reporter.URL == "" {
		log.Warn("reporter.url is not set; results will only be logged")
		a.Reporter = services.LogReporter{}
	} else {
		a.Reporter = services.NewHTTPReporter(cfg.Reporter.URL, cfg.Reporter.Timeout)
	}
}

func (a *App) cleanupPartialInit() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.Printf("Error closing job client: %v", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("Error closing redis client: %v", err)
		}
	}
}
