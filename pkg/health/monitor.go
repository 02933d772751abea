package health

import (
	"context"
	"sync"
	"time"

	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/rs/zerolog"
)

// Monitor runs dependency probes on an interval and publishes each
// dependency's status to the process health registry
type Monitor struct {
	config   Config
	checkers []Checker

	mu       sync.Mutex
	statuses map[string]*Status

	logger zerolog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewMonitor creates a monitor for the given checkers. Zero config fields
// fall back to DefaultConfig.
func NewMonitor(config Config, checkers ...Checker) *Monitor {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Retries <= 0 {
		config.Retries = def.Retries
	}

	statuses := make(map[string]*Status, len(checkers))
	for _, c := range checkers {
		statuses[c.Component()] = NewStatus()
	}

	return &Monitor{
		config:   config,
		checkers: checkers,
		statuses: statuses,
		logger:   log.WithComponent("health"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs one probe round immediately, then one per interval
func (m *Monitor) Start() {
	go func() {
		defer close(m.doneCh)

		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()

		m.CheckAll(context.Background())
		for {
			select {
			case <-ticker.C:
				m.CheckAll(context.Background())
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts the probe loop and waits for it to exit
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.stopCh)
	})
	<-m.doneCh
}

// CheckAll runs every probe once and reports the results
func (m *Monitor) CheckAll(ctx context.Context) {
	for _, c := range m.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
		result := c.Check(checkCtx)
		cancel()

		m.record(c.Component(), result)
	}
}

// Status returns a copy of the named component's status
func (m *Monitor) Status(component string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.statuses[component]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

func (m *Monitor) record(component string, result Result) {
	m.mu.Lock()
	status := m.statuses[component]
	wasHealthy := status.Healthy
	status.Update(result, m.config)
	healthy := status.Healthy
	m.mu.Unlock()

	message := result.Message
	if !result.Healthy && healthy {
		message = "degraded: " + message
	}
	metrics.UpdateComponent(component, healthy, message)

	switch {
	case wasHealthy && !healthy:
		m.logger.Warn().
			Str("dependency", component).
			Str("reason", result.Message).
			Msg("Dependency marked unhealthy")
	case !wasHealthy && healthy:
		m.logger.Info().
			Str("dependency", component).
			Msg("Dependency recovered")
	case !result.Healthy:
		m.logger.Debug().
			Str("dependency", component).
			Str("reason", result.Message).
			Msg("Probe failed")
	}
}
