package breaker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/persistence"
)

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second
)

// Config sets the thresholds for one breaker.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Breaker guards calls to one external dependency. Transitions run under a
// single critical section so concurrent callers never observe a lost update,
// and every transition is written through the state store before the next
// admission decision.
//
// The breaker never retries; retry policy belongs to the caller.
type Breaker struct {
	name   string
	store  persistence.StateStore
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         *models.CircuitState
	trialInFlight bool
}

// New creates a breaker for the named dependency, restoring persisted state
// if any exists so a restart does not silently retry a known-bad dependency.
func New(ctx context.Context, name string, store persistence.StateStore, logger *slog.Logger, config Config) (*Breaker, error) {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}

	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultResetTimeout
	}

	state, err := store.CircuitState(ctx, name)
	if err != nil {
		if !persistence.IsCircuitStateNotFound(err) {
			return nil, err
		}

		state = models.NewCircuitState(config.FailureThreshold, config.ResetTimeout)
	} else {
		// Thresholds follow current configuration, not the persisted record.
		state.FailureThreshold = config.FailureThreshold
		state.ResetTimeout = config.ResetTimeout
	}

	return &Breaker{
		name:   name,
		store:  store,
		logger: logger.With("module", "breaker", "circuit", name),
		now:    time.Now,
		state:  state,
	}, nil
}

// Name returns the protected dependency's name.
func (b *Breaker) Name() string {
	return b.name
}

// Do runs fn under the breaker: it either rejects immediately with
// *CircuitOpenError or invokes fn exactly once and records the outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(ctx); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(ctx, err)

	return err
}

// Execute is the typed form of Breaker.Do for operations with a result.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var result T

	err := b.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)

		return innerErr
	})

	return result, err
}

// Snapshot returns a copy of the current state for inspection.
func (b *Breaker) Snapshot() models.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return *b.state
}

func (b *Breaker) allow(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state.Status {
	case models.CircuitClosed:
		return nil

	case models.CircuitOpen:
		elapsed := b.now().Sub(b.state.OpenedAt)
		if elapsed < b.state.ResetTimeout {
			return &CircuitOpenError{
				Circuit:    b.name,
				RetryAfter: b.state.ResetTimeout - elapsed,
			}
		}

		// Cooldown elapsed: let exactly one trial through.
		b.state.Status = models.CircuitHalfOpen
		b.trialInFlight = true
		b.persist(ctx)

		b.logger.Info("Circuit half-open, admitting trial call")

		return nil

	case models.CircuitHalfOpen:
		if b.trialInFlight {
			return &CircuitOpenError{Circuit: b.name, RetryAfter: b.state.ResetTimeout}
		}

		// Restored half-open state with no trial in flight (e.g. after a
		// restart): this call becomes the trial.
		b.trialInFlight = true

		return nil
	}

	return nil
}

func (b *Breaker) record(ctx context.Context, callErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasTrial := b.state.Status == models.CircuitHalfOpen
	b.trialInFlight = false

	if callErr == nil {
		// Only consecutive failures count; any success resets the count.
		changed := b.state.FailureCount != 0 || b.state.Status != models.CircuitClosed

		b.state.FailureCount = 0
		b.state.Status = models.CircuitClosed
		b.state.OpenedAt = time.Time{}

		if changed {
			b.persist(ctx)

			if wasTrial {
				b.logger.Info("Trial call succeeded, circuit closed")
			}
		}

		return
	}

	if wasTrial {
		b.state.Status = models.CircuitOpen
		b.state.OpenedAt = b.now()
		b.persist(ctx)

		b.logger.Warn("Trial call failed, circuit reopened", "error", callErr)

		return
	}

	b.state.FailureCount++
	if b.state.FailureCount >= b.state.FailureThreshold {
		b.state.Status = models.CircuitOpen
		b.state.OpenedAt = b.now()

		b.logger.Warn("Failure threshold reached, circuit opened",
			"failures", b.state.FailureCount, "error", callErr)
	}

	b.persist(ctx)
}

// persist writes state through synchronously. A storage failure is logged and
// does not fail the guarded call; the in-memory state stays authoritative for
// this process.
func (b *Breaker) persist(ctx context.Context) {
	if err := b.store.SaveCircuitState(ctx, b.name, b.state); err != nil {
		b.logger.Error("Failed to persist circuit state", "error", err)
	}
}
