package transport

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/zonewars/liveclient/go/internal/metrics"
)

// Manager owns exactly one of two mutually exclusive update channels: the
// push stream (preferred, lower latency) or the polling loop (degraded mode
// for networks that block the push transport). Each channel keeps its own
// failure counter; three consecutive stream failures fall back to polling,
// ten consecutive poll failures retry the stream from scratch, and a
// successful poll opportunistically re-attempts the stream without waiting.
// The threshold-then-fallback policy avoids flapping on a single transient
// error while still recovering automatically once the network stabilizes.
type Manager struct {
	cfg        Config
	dialer     Dialer
	fetcher    Fetcher
	sink       Sink
	vis        Visibility
	clock      clockwork.Clock
	metrics    *metrics.Metrics
	instanceID string

	// OnStateChange, when set before Run, is invoked on every state
	// transition. Callers use it to reflect degraded mode in their status
	// surface. Must not block.
	OnStateChange func(State)

	mu          sync.Mutex
	state       State
	retry       time.Duration
	streamFails int
	pollFails   int
}

// Status is a point-in-time view of the manager for status surfaces.
type Status struct {
	State          State         `json:"state"`
	StreamFailures int           `json:"streamFailures"`
	PollFailures   int           `json:"pollFailures"`
	RetryDelay     time.Duration `json:"retryDelayMs"`
}

// NewManager wires a failover manager. vis may be nil for always-visible
// (headless) deployments; m may be nil to skip metrics.
func NewManager(cfg Config, dialer Dialer, fetcher Fetcher, sink Sink, vis Visibility, clock clockwork.Clock, m *metrics.Metrics) *Manager {
	if vis == nil {
		vis = AlwaysVisible{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		cfg:        cfg,
		dialer:     dialer,
		fetcher:    fetcher,
		sink:       sink,
		vis:        vis,
		clock:      clock,
		metrics:    m,
		instanceID: uuid.New().String()[:8],
		state:      StateIdle,
		retry:      cfg.StreamRetryFloor,
	}
}

// Run drives the state machine until ctx is cancelled (logout). It always
// returns with the manager back in Idle and every timer and connection of
// the superseded states released.
func (m *Manager) Run(ctx context.Context, token string) error {
	if token == "" {
		log.Warn().Str("instance", m.instanceID).Msg("no session token; transport stays idle")
		return nil
	}
	m.setState(StateStreaming)
	log.Info().Str("instance", m.instanceID).Msg("transport manager started")

	for {
		if ctx.Err() != nil {
			m.setState(StateIdle)
			log.Info().Str("instance", m.instanceID).Msg("transport manager stopped")
			return nil
		}
		switch m.State() {
		case StateStreaming:
			m.runStream(ctx, token)
		case StateStreamReconnectWait:
			m.waitReconnect(ctx)
		case StatePolling:
			m.runPolling(ctx, token)
		case StateIdle:
			return nil
		}
	}
}

// State returns the currently active state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a snapshot of the manager's counters for status surfaces.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:          m.state,
		StreamFailures: m.streamFails,
		PollFailures:   m.pollFails,
		RetryDelay:     m.retry,
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	if prev != s {
		log.Info().Str("instance", m.instanceID).Stringer("from", prev).Stringer("to", s).Msg("transport state change")
		m.metrics.SetTransportState(int(s))
		if m.OnStateChange != nil {
			m.OnStateChange(s)
		}
	}
}

// runStream opens the push channel and delivers snapshots until it fails.
func (m *Manager) runStream(ctx context.Context, token string) {
	stream, err := m.dialer.Dial(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			m.setState(StateIdle)
			return
		}
		log.Warn().Err(err).Str("instance", m.instanceID).Msg("push stream open failed")
		m.onStreamError()
		return
	}
	defer stream.Close()

	m.mu.Lock()
	m.retry = m.cfg.StreamRetryFloor
	m.streamFails = 0
	m.mu.Unlock()
	log.Info().Str("instance", m.instanceID).Msg("push stream open")

	for {
		snap, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				m.setState(StateIdle)
				return
			}
			log.Warn().Err(err).Str("instance", m.instanceID).Msg("push stream delivery failed")
			m.onStreamError()
			return
		}
		m.metrics.SnapshotDelivered("stream")
		m.sink(snap)
	}
}

// onStreamError counts a stream failure and picks the recovery path: retry
// the stream after a backoff wait, or give up on it for now and poll.
func (m *Manager) onStreamError() {
	m.metrics.StreamFailure()
	m.mu.Lock()
	m.streamFails++
	fails := m.streamFails
	m.mu.Unlock()

	if fails >= m.cfg.StreamFailoverAfter {
		log.Warn().Str("instance", m.instanceID).Int("failures", fails).Msg("push stream unreliable; falling back to polling")
		m.metrics.Failover()
		m.setState(StatePolling)
		return
	}
	m.setState(StateStreamReconnectWait)
}

// nextReconnectDelay clamps the stored retry interval to its bounds, returns
// it, and advances the stored interval by the growth factor for the next
// wait. Growth happens at schedule time, not at error time.
func (m *Manager) nextReconnectDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.retry
	if d < m.cfg.StreamRetryMin {
		d = m.cfg.StreamRetryMin
	}
	if d > m.cfg.StreamRetryCap {
		d = m.cfg.StreamRetryCap
	}
	next := time.Duration(math.Round(float64(d) * m.cfg.StreamRetryFactor))
	if next > m.cfg.StreamRetryCap {
		next = m.cfg.StreamRetryCap
	}
	m.retry = next
	return d
}

// waitReconnect sleeps out one backoff interval, then re-enters Streaming.
// There is exactly one pending timer; cancellation supersedes it.
func (m *Manager) waitReconnect(ctx context.Context) {
	delay := m.nextReconnectDelay()
	log.Debug().Str("instance", m.instanceID).Dur("delay", delay).Msg("stream reconnect scheduled")
	timer := m.clock.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		m.setState(StateStreaming)
	case <-ctx.Done():
		m.setState(StateIdle)
	}
}

// runPolling fetches immediately, then on a fixed cadence, until the state
// machine moves on or ctx is cancelled.
func (m *Manager) runPolling(ctx context.Context, token string) {
	m.mu.Lock()
	m.pollFails = 0
	m.mu.Unlock()

	m.pollOnce(ctx, token)
	ticker := m.clock.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for m.State() == StatePolling {
		select {
		case <-ctx.Done():
			m.setState(StateIdle)
			return
		case <-ticker.Chan():
			m.pollOnce(ctx, token)
		}
	}
}

// pollOnce performs one snapshot fetch. Hidden surfaces skip the fetch
// entirely. A success resets the poll failure counter and, while the stream
// is still considered unreliable, re-attempts it: a working poll is evidence
// the network is healthy enough to retry the preferred channel.
func (m *Manager) pollOnce(ctx context.Context, token string) {
	if !m.vis.Visible() {
		return
	}
	snap, err := m.fetcher.FetchState(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.metrics.PollFailure()
		m.mu.Lock()
		m.pollFails++
		fails := m.pollFails
		m.mu.Unlock()
		log.Warn().Err(err).Str("instance", m.instanceID).Int("failures", fails).Msg("snapshot poll failed")
		if fails >= m.cfg.PollGiveUpAfter {
			m.mu.Lock()
			m.pollFails = 0
			m.streamFails = 0
			m.mu.Unlock()
			log.Info().Str("instance", m.instanceID).Msg("polling exhausted; retrying push stream from scratch")
			m.setState(StateStreamReconnectWait)
		}
		return
	}

	m.mu.Lock()
	m.pollFails = 0
	streamFails := m.streamFails
	m.mu.Unlock()

	m.metrics.SnapshotDelivered("poll")
	m.sink(snap)

	if streamFails >= m.cfg.StreamFailoverAfter {
		log.Info().Str("instance", m.instanceID).Msg("poll succeeded; re-attempting push stream")
		m.setState(StateStreaming)
	}
}
