package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/config"
	"github.com/canopylabs/canopy/internal/pipeline"
	chrepo "github.com/canopylabs/canopy/internal/repository/clickhouse"
	"github.com/canopylabs/canopy/internal/repository/postgres"
	"github.com/canopylabs/canopy/internal/storage"
)

// Server is the worker server
type Server struct {
	logger    *zap.Logger
	config    *config.Config
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	client    *asynq.Client
}

// Dependencies holds the stores and engine the workers run against
type Dependencies struct {
	JobRepo    *postgres.JobRepository
	ShardRepo  *postgres.ShardRepository
	SiteRepo   *postgres.SiteRepository
	SampleRepo *chrepo.SampleRepository
	Builder    *pipeline.Builder
	Exports    *storage.ExportStore
}

// NewServer creates a new worker server
func NewServer(
	logger *zap.Logger,
	cfg *config.Config,
	deps *Dependencies,
) (*Server, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				cfg.Worker.QueueCritical: 6,
				cfg.Worker.QueueDefault:  3,
				cfg.Worker.QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
			Logger: &asynqLogger{logger: logger},
		},
	)

	// Client for follow-up tasks enqueued from inside handlers.
	client := asynq.NewClient(redisOpt)
	enqueuer := NewEnqueuer(client, cfg.Worker.QueueDefault, cfg.Worker.QueueLow)

	shardWorker := NewShardWorker(
		logger,
		deps.JobRepo,
		deps.ShardRepo,
		deps.SiteRepo,
		deps.SampleRepo,
		deps.Builder,
		deps.Exports,
		enqueuer,
	)

	exportWorker := NewExportWorker(
		logger,
		deps.SampleRepo,
		deps.Exports,
	)

	cleanupWorker := NewCleanupWorker(
		logger,
		deps.JobRepo,
		deps.SampleRepo,
		deps.Exports,
		cfg.Retention.Days,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSamplingShard, shardWorker.ProcessSamplingTask)
	mux.HandleFunc(TypeMappingShard, shardWorker.ProcessMappingTask)
	mux.HandleFunc(TypeSampleExport, exportWorker.ProcessSampleExportTask)
	mux.HandleFunc(TypeRetentionCleanup, cleanupWorker.ProcessRetentionTask)

	scheduler := asynq.NewScheduler(redisOpt, nil)

	return &Server{
		logger:    logger,
		config:    cfg,
		server:    server,
		mux:       mux,
		scheduler: scheduler,
		client:    client,
	}, nil
}

// Start starts the worker server
func (s *Server) Start() error {
	if err := s.registerScheduledTasks(); err != nil {
		return fmt.Errorf("failed to register scheduled tasks: %w", err)
	}

	go func() {
		if err := s.scheduler.Run(); err != nil {
			s.logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	s.logger.Info("starting worker server",
		zap.Int("concurrency", s.config.Worker.Concurrency),
		zap.Bool("retention_enabled", s.config.Retention.Enabled),
	)

	return s.server.Run(s.mux)
}

// Stop stops the worker server
func (s *Server) Stop() {
	s.server.Shutdown()
	s.scheduler.Shutdown()
	s.client.Close()
}

// Client returns the asynq client for enqueuing tasks
func (s *Server) Client() *asynq.Client {
	return s.client
}

// registerScheduledTasks registers periodic tasks with the scheduler
func (s *Server) registerScheduledTasks() error {
	if !s.config.Retention.Enabled {
		return nil
	}

	task, err := NewRetentionTask(&RetentionPayload{RetentionDays: s.config.Retention.Days})
	if err != nil {
		return err
	}

	// Nightly sweep at 3 AM UTC
	_, err = s.scheduler.Register("0 3 * * *", task, asynq.Queue(s.config.Worker.QueueLow))
	if err != nil {
		return fmt.Errorf("failed to register retention task: %w", err)
	}
	return nil
}

// asynqLogger adapts zap.Logger to asynq.Logger
type asynqLogger struct {
	logger *zap.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
