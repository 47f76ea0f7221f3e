package resilience

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker for one logical
// operation class.
type BreakerConfig struct {
	Name         string
	FailMax      int           // consecutive failures before opening
	ResetTimeout time.Duration // cooldown before a half-open probe
	// CountTimeouts controls whether KindTimeout failures increment
	// the failure counter. Command-style adapters disable this.
	CountTimeouts bool
	Exclude       []Kind // kinds that never affect breaker state
}

// BreakerSnapshot is a point-in-time view of breaker state for
// diagnostics endpoints and logs.
type BreakerSnapshot struct {
	Name                string     `json:"name"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}

// Breaker gates calls for one operation class. All state access is
// serialized; one instance is shared by every caller of that class.
type Breaker struct {
	name          string
	failMax       int
	resetTimeout  time.Duration
	countTimeouts bool
	exclude       map[Kind]bool

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewBreaker creates a closed breaker. Zero-valued config fields get
// the defaults the original call sites used (5 failures, 30s reset).
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailMax <= 0 {
		cfg.FailMax = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	excluded := make(map[Kind]bool, len(cfg.Exclude))
	for _, k := range cfg.Exclude {
		excluded[k] = true
	}
	return &Breaker{
		name:          cfg.Name,
		failMax:       cfg.FailMax,
		resetTimeout:  cfg.ResetTimeout,
		countTimeouts: cfg.CountTimeouts,
		exclude:       excluded,
		state:         StateClosed,
		now:           time.Now,
	}
}

// Name returns the operation-class identifier.
func (b *Breaker) Name() string {
	return b.name
}

// Call invokes op through the breaker. When the circuit is open and
// the reset timeout has not elapsed, op is not invoked and
// ErrCircuitOpen is returned. When the timeout has elapsed, exactly
// one caller is admitted as the half-open probe; concurrent callers
// are rejected until the probe completes.
func (b *Breaker) Call(op func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = op()
	b.record(err, probe)
	return err
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a diagnostic view of the breaker.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := BreakerSnapshot{
		Name:                b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.failures,
	}
	if b.state != StateClosed && !b.openedAt.IsZero() {
		t := b.openedAt
		snap.OpenedAt = &t
	}
	return snap
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(err error, probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}

	if err == nil {
		if probe {
			b.state = StateClosed
			b.failures = 0
			return
		}
		if b.state == StateClosed {
			b.failures = 0
		}
		return
	}

	kind := Classify(err)
	if b.exclude[kind] || (kind == KindTimeout && !b.countTimeouts) {
		return
	}

	b.failures++
	if probe {
		// Failed probe reopens immediately, regardless of threshold.
		b.state = StateOpen
		b.openedAt = b.now()
		return
	}
	if b.state == StateClosed && b.failures >= b.failMax {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}
