package conflict

import (
	"context"
	"time"

	"github.com/managemate/mmrt/pkg/jobs"
	"github.com/managemate/mmrt/pkg/log"
)

// DefaultInterval is how often the scheduler runs the detector
const DefaultInterval = 30 * time.Minute

// JobName labels the scheduler's logs and metrics
const JobName = "conflict-detection"

// Scheduler runs the detector periodically, once at start and then every
// interval. Runs never overlap.
type Scheduler struct {
	detector *Detector
	runner   *jobs.Runner
}

// NewScheduler creates a scheduler for d. A non-positive interval uses
// DefaultInterval.
func NewScheduler(d *Detector, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s := &Scheduler{detector: d}
	runner, err := jobs.NewRunner(jobs.Config{
		Name:       JobName,
		Interval:   interval,
		RunAtStart: true,
		Timeout:    interval,
	}, func(ctx context.Context) error {
		_, err := d.Run(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.runner = runner
	return s, nil
}

// Start begins the schedule
func (s *Scheduler) Start() {
	s.runner.Start()
	l := log.WithComponent("conflict")
	l.Info().Msg("Conflict detection scheduler started")
}

// Stop ends the schedule, waiting for an in-flight run
func (s *Scheduler) Stop() {
	s.runner.Stop()
}

// RunNow triggers a run outside the schedule. It fails with
// jobs.ErrAlreadyRunning while another run is in progress.
func (s *Scheduler) RunNow(ctx context.Context) (RunResult, error) {
	var res RunResult
	err := s.runner.Run(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.detector.Run(ctx)
		return err
	})
	return res, err
}
