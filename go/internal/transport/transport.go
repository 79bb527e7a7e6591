package transport

import (
	"context"
	"time"

	"github.com/zonewars/liveclient/go/internal/snapshot"
)

// State is one of the four mutually exclusive transport states. Exactly one
// is active at a time; entering a state tears down the resources of the
// previous one (open connection closed, timers stopped).
type State int

const (
	// StateIdle means no session token is present; nothing runs.
	StateIdle State = iota
	// StateStreaming means the push channel is open (or being opened) and
	// delivering snapshots.
	StateStreaming
	// StateStreamReconnectWait means a single reconnect timer is pending
	// before the push channel is retried.
	StateStreamReconnectWait
	// StatePolling means the push channel was given up on for now and
	// snapshots arrive via fixed-interval polling.
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateStreamReconnectWait:
		return "stream_reconnect_wait"
	case StatePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// Config tunes the failover state machine. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// StreamRetryFloor is the reconnect delay restored after a successful
	// stream open.
	StreamRetryFloor time.Duration
	// StreamRetryMin and StreamRetryCap clamp the delay actually waited.
	StreamRetryMin time.Duration
	StreamRetryCap time.Duration
	// StreamRetryFactor multiplies the stored delay each time a reconnect
	// wait is scheduled.
	StreamRetryFactor float64
	// StreamFailoverAfter is how many consecutive stream failures switch the
	// manager to polling.
	StreamFailoverAfter int
	// PollInterval is the fixed polling cadence.
	PollInterval time.Duration
	// PollGiveUpAfter is how many consecutive poll failures send the manager
	// back to retrying the stream from scratch.
	PollGiveUpAfter int
}

// DefaultConfig returns the production failover tuning.
func DefaultConfig() Config {
	return Config{
		StreamRetryFloor:    750 * time.Millisecond,
		StreamRetryMin:      250 * time.Millisecond,
		StreamRetryCap:      30 * time.Second,
		StreamRetryFactor:   1.7,
		StreamFailoverAfter: 3,
		PollInterval:        3 * time.Second,
		PollGiveUpAfter:     10,
	}
}

// Fetcher pulls one full snapshot over the request/response channel.
type Fetcher interface {
	FetchState(ctx context.Context, token string) (*snapshot.Snapshot, error)
}

// Stream is an open push subscription. Recv blocks until the next snapshot
// or a channel failure; Close releases the connection.
type Stream interface {
	Recv() (*snapshot.Snapshot, error)
	Close() error
}

// Dialer opens the push subscription. A nil error means the channel opened
// successfully, which resets the backoff schedule.
type Dialer interface {
	Dial(ctx context.Context, token string) (Stream, error)
}

// Visibility reports whether the host surface is currently visible. Polls
// are skipped entirely while hidden so a backgrounded client costs no
// network traffic. A headless client is always visible.
type Visibility interface {
	Visible() bool
}

// AlwaysVisible is the Visibility for headless deployments.
type AlwaysVisible struct{}

// Visible always returns true.
func (AlwaysVisible) Visible() bool { return true }

// Sink receives every snapshot the active channel delivers.
type Sink func(*snapshot.Snapshot)
