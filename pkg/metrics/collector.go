package metrics

import (
	"time"
)

// GatewayStats is the view of the realtime gateway the collector samples
type GatewayStats interface {
	ConnectionCount() int
	RoomCount() int
}

// Collector periodically samples gateway gauges
type Collector struct {
	gateway  GatewayStats
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(gw GatewayStats, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		gateway:  gw,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	GatewayConnections.Set(float64(c.gateway.ConnectionCount()))
	GatewayRooms.Set(float64(c.gateway.RoomCount()))
}
