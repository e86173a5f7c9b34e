package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"solar-impact-insights/api"
	"solar-impact-insights/pipeline"
)

// Scheduler periodically runs the live pipeline
type Scheduler struct {
	collector api.Collector
	opts      pipeline.RunOptions
	interval  time.Duration
	log       *zap.Logger
	done      chan struct{}
	stopped   chan struct{}

	// afterRun observes each report, used by tests
	afterRun func(*pipeline.RunReport)
}

// NewScheduler creates a scheduler that runs every interval
func NewScheduler(collector api.Collector, opts pipeline.RunOptions, interval time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		collector: collector,
		opts:      opts,
		interval:  interval,
		log:       log,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start begins the collection loop and blocks until Stop or ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.stopped)
	s.log.Info("⏱️ Scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial run
	s.collect(ctx)

	for {
		select {
		case <-ticker.C:
			s.collect(ctx)
		case <-s.done:
			s.log.Info("⏱️ Scheduler stopped")
			return
		case <-ctx.Done():
			s.log.Info("⏱️ Scheduler stopped", zap.Error(ctx.Err()))
			return
		}
	}
}

// Stop ends the loop and waits for an in-flight run to return. Call it only after Start.
func (s *Scheduler) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	<-s.stopped
}

func (s *Scheduler) collect(ctx context.Context) {
	s.log.Info("🔄 Scheduled collection starting")

	report, err := s.collector.Run(ctx, s.opts)
	if err != nil {
		s.log.Warn("⚠️ Scheduled collection interrupted", zap.Error(err))
		return
	}

	s.log.Info("✅ Scheduled collection finished",
		zap.String("run_id", report.RunID),
		zap.String("status", report.Status()),
		zap.Int("alerts", len(report.Alerts)),
	)
	if s.afterRun != nil {
		s.afterRun(report)
	}
}
