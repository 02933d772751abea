package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrAlreadyStarted is returned when Connect is called twice
var ErrAlreadyStarted = errors.New("bridge already started")

// Router receives decoded events from the bridge. *gateway.Hub satisfies it.
type Router interface {
	Deliver(room, event string, payload json.RawMessage) int
	Broadcast(event string, payload json.RawMessage) int
}

// BridgeConfig tunes the subscriber's reconnect behaviour
type BridgeConfig struct {
	// InitialBackoff is the first wait before a resubscribe attempt
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between attempts
	MaxBackoff time.Duration
	// MaxReconnectAttempts is the number of consecutive failures before
	// the bridge gives up. Zero retries forever.
	MaxReconnectAttempts int
	// SubscribeTimeout bounds a single subscribe attempt
	SubscribeTimeout time.Duration
	// HealthCheckInterval is how long the receive loop waits for traffic
	// before pinging the broker
	HealthCheckInterval time.Duration
}

// DefaultBridgeConfig returns the reconnect settings used by serve
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		InitialBackoff:       500 * time.Millisecond,
		MaxBackoff:           30 * time.Second,
		MaxReconnectAttempts: 10,
		SubscribeTimeout:     5 * time.Second,
		HealthCheckInterval:  30 * time.Second,
	}
}

// Bridge holds the process's single broker subscription and forwards
// every valid event to the router.
type Bridge struct {
	client *redis.Client
	router Router
	cfg    BridgeConfig

	mu      sync.RWMutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	onState func(State)

	log zerolog.Logger
}

// NewBridge creates a bridge that routes broker messages to router
func NewBridge(client *redis.Client, router Router, cfg BridgeConfig) *Bridge {
	def := DefaultBridgeConfig()
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.InitialBackoff)
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = def.SubscribeTimeout
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = def.HealthCheckInterval
	}

	return &Bridge{
		client: client,
		router: router,
		cfg:    cfg,
		state:  StateIdle,
		log:    log.WithComponent("bus"),
	}
}

// OnStateChange registers fn to be called after every state transition.
// Must be called before Connect.
func (b *Bridge) OnStateChange(fn func(State)) {
	b.mu.Lock()
	b.onState = fn
	b.mu.Unlock()
}

// State returns the current connection state
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Connect subscribes to every event channel and starts the receive loop.
// An unreachable broker is reported as an error.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateIdle {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.mu.Unlock()

	ps, err := b.subscribe(ctx)
	if err != nil {
		b.setState(StateFailed, err.Error())
		return fmt.Errorf("failed to subscribe to broker: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.cancel = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()

	b.setState(StateConnected, "")
	b.log.Info().
		Strs("channels", channelNames()).
		Msg("Subscribed to broker")

	go b.run(runCtx, ps)
	return nil
}

// Close stops the receive loop and releases the subscription
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.state == StateClosed {
		b.mu.Unlock()
		return nil
	}
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	b.setState(StateClosed, "")
	b.log.Info().Msg("Broker bridge closed")
	return nil
}

// HandleMessage decodes a raw broker message and routes it. Malformed
// messages are logged and dropped.
func (b *Bridge) HandleMessage(channel events.Channel, raw []byte) {
	metrics.BusMessages.WithLabelValues(string(channel)).Inc()

	evt, err := events.Decode(channel, raw)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, events.ErrUnknownChannel) {
			reason = "unknown_channel"
		}
		metrics.BusMessagesDropped.WithLabelValues(string(channel), reason).Inc()
		b.log.Error().
			Err(err).
			Str("channel", string(channel)).
			Int("bytes", len(raw)).
			Msg("Dropping malformed broker message")
		return
	}

	var delivered int
	room := evt.Room()
	if room == "" {
		delivered = b.router.Broadcast(evt.Name(), evt.Payload())
	} else {
		delivered = b.router.Deliver(room, evt.Name(), evt.Payload())
	}

	b.log.Debug().
		Str("channel", string(channel)).
		Str("event", evt.Name()).
		Str("room", room).
		Int("delivered", delivered).
		Msg("Routed broker message")
}

func (b *Bridge) run(ctx context.Context, ps *redis.PubSub) {
	defer close(b.done)

	for {
		err := b.receive(ctx, ps)
		_ = ps.Close()
		if ctx.Err() != nil {
			return
		}

		b.log.Warn().Err(err).Msg("Broker subscription lost")
		ps = b.reconnect(ctx)
		if ps == nil {
			return
		}
	}
}

func (b *Bridge) receive(ctx context.Context, ps *redis.PubSub) error {
	for {
		msg, err := ps.ReceiveTimeout(ctx, b.cfg.HealthCheckInterval)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !isTimeout(err) {
				return err
			}
			if err := ps.Ping(ctx); err != nil {
				return fmt.Errorf("broker ping failed: %w", err)
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Message:
			b.HandleMessage(events.Channel(m.Channel), []byte(m.Payload))
		case *redis.Subscription, *redis.Pong:
		default:
			b.log.Debug().Msgf("Ignoring broker reply %T", m)
		}
	}
}

// reconnect resubscribes with exponential backoff. It returns nil when the
// context is cancelled or the attempt budget is exhausted.
func (b *Bridge) reconnect(ctx context.Context) *redis.PubSub {
	b.setState(StateReconnecting, "")

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.cfg.InitialBackoff
	bo.MaxInterval = b.cfg.MaxBackoff
	bo.Reset()

	var lastErr error
	for attempt := 1; b.cfg.MaxReconnectAttempts <= 0 || attempt <= b.cfg.MaxReconnectAttempts; attempt++ {
		wait := bo.NextBackOff()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		ps, err := b.subscribe(ctx)
		if err == nil {
			metrics.BusReconnects.WithLabelValues("success").Inc()
			b.setState(StateConnected, "")
			b.log.Info().Int("attempt", attempt).Msg("Resubscribed to broker")
			return ps
		}
		if ctx.Err() != nil {
			return nil
		}

		lastErr = err
		metrics.BusReconnects.WithLabelValues("failure").Inc()
		b.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("waited", wait).
			Msg("Broker resubscribe failed")
	}

	msg := fmt.Sprintf("gave up after %d attempts: %v", b.cfg.MaxReconnectAttempts, lastErr)
	b.setState(StateFailed, msg)
	b.log.Error().Err(lastErr).Int("attempts", b.cfg.MaxReconnectAttempts).Msg("Broker bridge failed")
	return nil
}

func (b *Bridge) subscribe(ctx context.Context) (*redis.PubSub, error) {
	subCtx, cancel := context.WithTimeout(ctx, b.cfg.SubscribeTimeout)
	defer cancel()

	ps := b.client.Subscribe(subCtx, channelNames()...)
	if _, err := ps.Receive(subCtx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return ps, nil
}

func (b *Bridge) setState(s State, detail string) {
	b.mu.Lock()
	b.state = s
	fn := b.onState
	b.mu.Unlock()

	metrics.BusState.Set(float64(s))
	msg := s.String()
	if detail != "" {
		msg += ": " + detail
	}
	metrics.UpdateComponent(metrics.ComponentBus, s == StateConnected, msg)

	if fn != nil {
		fn(s)
	}
}

func channelNames() []string {
	names := make([]string, len(events.Channels))
	for i, ch := range events.Channels {
		names[i] = string(ch)
	}
	return names
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
