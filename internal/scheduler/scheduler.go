package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/config"
	"github.com/sapdesk/sapdesk/internal/pipeline"
)

const heartbeatKey = "sapdesk:scheduler:heartbeat"

// Scheduler triggers the email pipeline once a day at the configured UTC
// time. Failures are logged and the next run is scheduled regardless.
type Scheduler struct {
	processor *pipeline.Processor
	cfg       config.SchedulerConfig
	cache     *redis.Client
	logger    *zap.Logger

	stopCh chan struct{}
	doneWg sync.WaitGroup
	mu     sync.Mutex
	active bool

	now func() time.Time
}

// New constructs the scheduler. cache may be nil; the heartbeat is then
// skipped.
func New(processor *pipeline.Processor, cfg config.SchedulerConfig, cache *redis.Client, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		processor: processor,
		cfg:       cfg,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// NextRunAfter computes the next daily trigger strictly after t.
func (s *Scheduler) NextRunAfter(t time.Time) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), s.cfg.EmailHourUTC, s.cfg.EmailMinuteUTC, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start launches the background loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.stopCh = make(chan struct{})

	s.doneWg.Add(1)
	go s.loop(ctx)

	s.logger.Info("scheduler started",
		zap.Int("hour_utc", s.cfg.EmailHourUTC),
		zap.Int("minute_utc", s.cfg.EmailMinuteUTC))
}

// Stop signals the loop to exit and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stopCh)
	s.mu.Unlock()

	s.doneWg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.doneWg.Done()

	heartbeat := s.cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 5 * time.Minute
	}
	heartbeatTicker := time.NewTicker(heartbeat)
	defer heartbeatTicker.Stop()

	runTimer := time.NewTimer(time.Until(s.NextRunAfter(s.now())))
	defer runTimer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-heartbeatTicker.C:
			s.beat(ctx)
		case <-runTimer.C:
			s.runOnce(ctx)
			runTimer.Reset(time.Until(s.NextRunAfter(s.now())))
		}
	}
}

// runOnce executes a scheduled pipeline pass. Errors never break the loop.
func (s *Scheduler) runOnce(ctx context.Context) {
	s.logger.Info("scheduled email pipeline run triggered")
	result, err := s.processor.Run(ctx, pipeline.RunOptions{})
	if err != nil {
		s.logger.Error("scheduled pipeline run rejected", zap.Error(err))
		return
	}
	if result.Failure != "" {
		s.logger.Error("scheduled pipeline run failed", zap.String("failure", result.Failure))
	}
}

func (s *Scheduler) beat(ctx context.Context) {
	if s.cache == nil {
		return
	}
	ttl := 2 * s.cfg.HeartbeatInterval
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if err := s.cache.Set(ctx, heartbeatKey, s.now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		s.logger.Warn("scheduler heartbeat write failed", zap.Error(err))
	}
}
