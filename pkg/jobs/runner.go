package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by RunOnce when a run is in progress
var ErrAlreadyRunning = errors.New("job already running")

// Func is one run of a periodic job
type Func func(ctx context.Context) error

// Config describes a periodic job
type Config struct {
	// Name labels logs and metrics
	Name string
	// Interval between run starts
	Interval time.Duration
	// RunAtStart runs the job once immediately on Start
	RunAtStart bool
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
}

// Runner executes a job on a ticker. Runs never overlap: ticks that fire
// while a run is in progress are skipped. Errors and panics are logged and
// the loop keeps going.
type Runner struct {
	cfg Config
	fn  Func

	running atomic.Bool
	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once

	log zerolog.Logger
}

// NewRunner creates a runner for fn
func NewRunner(cfg Config, fn Func) (*Runner, error) {
	if cfg.Name == "" {
		return nil, errors.New("job name is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("job %s: interval must be positive, got %s", cfg.Name, cfg.Interval)
	}
	if fn == nil {
		return nil, fmt.Errorf("job %s: nil func", cfg.Name)
	}

	return &Runner{
		cfg:    cfg,
		fn:     fn,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		log:    log.WithComponent("jobs").With().Str("job", cfg.Name).Logger(),
	}, nil
}

// Name returns the job name
func (r *Runner) Name() string {
	return r.cfg.Name
}

// Start begins the job loop
func (r *Runner) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-r.stopCh
		cancel()
	}()
	go r.run(ctx)

	r.log.Info().
		Dur("interval", r.cfg.Interval).
		Bool("run_at_start", r.cfg.RunAtStart).
		Msg("Job scheduled")
}

// Stop stops the loop and waits for an in-flight run to return
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	if r.started.Load() {
		<-r.doneCh
	}
}

// RunOnce executes the job immediately. It returns ErrAlreadyRunning
// instead of starting a second concurrent run.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.Run(ctx, r.fn)
}

// Run executes fn in place of the job's own func, under the same
// no-overlap guard, timeout and metrics.
func (r *Runner) Run(ctx context.Context, fn Func) error {
	if !r.running.CompareAndSwap(false, true) {
		metrics.JobRuns.WithLabelValues(r.cfg.Name, "skipped").Inc()
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	timer := metrics.NewTimer()
	err := r.call(ctx, fn)
	timer.ObserveDurationVec(metrics.JobDuration, r.cfg.Name)

	if err != nil {
		metrics.JobRuns.WithLabelValues(r.cfg.Name, "error").Inc()
		return err
	}
	metrics.JobRuns.WithLabelValues(r.cfg.Name, "success").Inc()
	r.log.Debug().Dur("duration", timer.Duration()).Msg("Job run complete")
	return nil
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.doneCh)

	if r.cfg.RunAtStart {
		r.tick(ctx)
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.stopCh:
			return
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			r.log.Warn().Msg("Previous run still in progress, skipping")
			return
		}
		r.log.Error().Err(err).Msg("Job run failed")
	}
}

func (r *Runner) call(ctx context.Context, fn Func) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("Job panicked")
			err = fmt.Errorf("job %s panicked: %v", r.cfg.Name, p)
		}
	}()
	return fn(ctx)
}
