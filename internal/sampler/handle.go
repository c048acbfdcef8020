package sampler

import (
	"sync"
	"time"
)

type State int

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PollerHandle tracks the lifecycle of one exchange's poller. The
// supervisor owns it; the poller reports through it.
type PollerHandle struct {
	exchange string

	mu        sync.Mutex
	state     State
	startedAt time.Time
	stoppedAt time.Time
	successes int
	failures  int
	lastErr   error
	reason    error
}

// PollerStats is a point-in-time copy of a PollerHandle.
type PollerStats struct {
	Exchange  string    `json:"exchange"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Successes int       `json:"successes"`
	Failures  int       `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

func newHandle(exchange string, now time.Time) *PollerHandle {
	return &PollerHandle{exchange: exchange, state: StateStarting, startedAt: now}
}

func (h *PollerHandle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the reason the poller failed, or nil.
func (h *PollerHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

func (h *PollerHandle) setState(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateFailed || h.state == StateStopped {
		return
	}
	h.state = s
}

func (h *PollerHandle) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.successes++
}

func (h *PollerHandle) recordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures++
	h.lastErr = err
}

func (h *PollerHandle) fail(err error, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateStopped || h.state == StateFailed {
		return
	}
	h.state = StateFailed
	h.reason = err
	h.lastErr = err
	h.stoppedAt = now
}

func (h *PollerHandle) finish(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateFailed || h.state == StateStopped {
		return
	}
	h.state = StateStopped
	h.stoppedAt = now
}

func (h *PollerHandle) Stats() PollerStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := PollerStats{
		Exchange:  h.exchange,
		State:     h.state.String(),
		StartedAt: h.startedAt,
		StoppedAt: h.stoppedAt,
		Successes: h.successes,
		Failures:  h.failures,
	}
	if h.lastErr != nil {
		stats.LastError = h.lastErr.Error()
	}
	if h.reason != nil {
		stats.Reason = h.reason.Error()
	}
	return stats
}
