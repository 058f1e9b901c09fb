// Package scheduler runs periodic maintenance jobs next to the HTTP server.
package scheduler

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/metrics"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

type statsSource interface {
	Stats() sql.DBStats
}

type Scheduler struct {
	db        statsSource
	metrics   *metrics.Collector
	log       *zap.Logger
	interval  time.Duration
	scheduler *gocron.Scheduler
}

func New(db statsSource, m *metrics.Collector, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		db:        db,
		metrics:   m,
		log:       log,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start samples the connection pool immediately and then every interval.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.recordPoolStats)
	if err != nil {
		return fmt.Errorf("scheduling pool stats job: %w", err)
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler started", zap.Duration("db_stats_interval", s.interval))
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) recordPoolStats() {
	st := s.db.Stats()
	s.metrics.DBConnections.WithLabelValues("open").Set(float64(st.OpenConnections))
	s.metrics.DBConnections.WithLabelValues("in_use").Set(float64(st.InUse))
	s.metrics.DBConnections.WithLabelValues("idle").Set(float64(st.Idle))

	if st.WaitCount > 0 {
		s.log.Debug("database pool waits",
			zap.Int64("wait_count", st.WaitCount),
			zap.Duration("wait_duration", st.WaitDuration),
		)
	}
}
