// Package strategy defines the strategy capability interface, the
// lifecycle state machine wrapping every running instance, and the
// built-in reference strategies.
package strategy

import (
	"fmt"
	"sync"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/aristath/sentinel-okx/internal/marketdata"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Strategy is the capability set every strategy implementation provides.
// Runtime holds its mutex around every call into the instance, so calls
// never overlap and implementations need no internal locking of their
// own state.
type Strategy interface {
	Initialize(params map[string]string) error
	OnMarketData(bar marketdata.Bar) ([]domain.Signal, error)
	OnOrderFill(fill events.OrderFilledData) error
	OnOrderReject(reject events.OrderRejectedData) error
	GetMetrics() domain.PerformanceMetrics
	SerializeState() ([]byte, error)
	DeserializeState([]byte) error
	Shutdown() error
}

// Runtime wraps one Strategy instance with the lifecycle state machine
// from spec §4.4 and the hot-reload procedure: state is serialized before
// a reload and rolled back to Paused if the reloaded code rejects it.
type Runtime struct {
	mu     sync.Mutex
	record domain.StrategyRecord
	impl   Strategy
	bus    *events.Bus
	log    zerolog.Logger
}

// NewRuntime wraps impl with Draft lifecycle state.
func NewRuntime(record domain.StrategyRecord, impl Strategy, bus *events.Bus, log zerolog.Logger) *Runtime {
	record.State = domain.StrategyDraft
	return &Runtime{
		record: record,
		impl:   impl,
		bus:    bus,
		log:    log.With().Str("component", "strategy.Runtime").Str("strategy_id", record.ID).Logger(),
	}
}

// Validate moves Draft -> Validated, running the strategy's Initialize
// against its configured parameters without starting it.
func (r *Runtime) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.transition(domain.StrategyValidated); err != nil {
		return err
	}
	if err := r.impl.Initialize(r.record.Params); err != nil {
		_ = r.transitionLocked(domain.StrategyFailed)
		return err
	}
	return nil
}

// Start moves Validated|Paused -> Running.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition(domain.StrategyRunning)
}

// Pause moves Running -> Paused.
func (r *Runtime) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition(domain.StrategyPaused)
}

// Stop moves Running|Paused -> Stopping -> Stopped, calling Shutdown on
// the underlying implementation.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.transition(domain.StrategyStopping); err != nil {
		return err
	}
	shutdownErr := r.impl.Shutdown()
	if err := r.transition(domain.StrategyStopped); err != nil {
		return err
	}
	return shutdownErr
}

// OnMarketData dispatches a bar to the strategy if it is Running, and
// publishes each resulting signal to the event bus.
func (r *Runtime) OnMarketData(bar marketdata.Bar) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.record.State != domain.StrategyRunning {
		return nil
	}
	signals, err := r.impl.OnMarketData(bar)
	if err != nil {
		r.log.Error().Err(err).Msg("strategy OnMarketData failed")
		_ = r.transitionLocked(domain.StrategyFailed)
		return err
	}
	for _, sig := range signals {
		r.bus.Publish(&events.SignalGeneratedData{StrategyID: r.record.ID, Signal: sig})
	}
	return nil
}

// OnOrderFilled forwards a fill notification to the strategy if it is
// Running.
func (r *Runtime) OnOrderFilled(fill events.OrderFilledData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.record.State != domain.StrategyRunning {
		return nil
	}
	if err := r.impl.OnOrderFill(fill); err != nil {
		r.log.Error().Err(err).Msg("strategy OnOrderFill failed")
		return err
	}
	return nil
}

// HotReload serializes current state, swaps in newImpl, and attempts to
// restore state into it. If newImpl fails to initialize or rejects the
// state, the runtime stays Paused with the old implementation; if the
// current state cannot be serialized, nothing changes.
func (r *Runtime) HotReload(newImpl Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasRunning := r.record.State == domain.StrategyRunning
	state, err := r.impl.SerializeState()
	if err != nil {
		return fmt.Errorf("hot reload: failed to serialize current state: %w", err)
	}

	if err := r.transition(domain.StrategyPaused); err != nil && r.record.State != domain.StrategyPaused {
		return err
	}

	if err := newImpl.Initialize(r.record.Params); err != nil {
		return fmt.Errorf("hot reload: new implementation failed to initialize, remaining paused: %w", err)
	}
	if err := newImpl.DeserializeState(state); err != nil {
		return fmt.Errorf("hot reload: new implementation rejected prior state, remaining paused: %w", err)
	}

	r.impl = newImpl
	r.record.Version++

	if wasRunning {
		return r.transition(domain.StrategyRunning)
	}
	return nil
}

// Record returns a snapshot of the runtime's persisted record.
func (r *Runtime) Record() domain.StrategyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record
}

func (r *Runtime) transition(to domain.StrategyState) error {
	return r.transitionLocked(to)
}

func (r *Runtime) transitionLocked(to domain.StrategyState) error {
	if !domain.CanTransitionStrategy(r.record.State, to) {
		return domain.NewError(domain.ErrInvalidTransition, fmt.Sprintf("cannot move strategy %s from %s to %s", r.record.ID, r.record.State, to))
	}
	from := r.record.State
	r.record.State = to
	r.record.UpdatedAt = domain.Now()
	r.bus.Publish(&events.StrategyStateChangedData{StrategyID: r.record.ID, From: from, To: to})
	return nil
}

// marshalState is the msgpack helper every built-in strategy uses to
// implement SerializeState/DeserializeState, so hot-reload state
// round-trips compactly and without reflection surprises across versions.
func marshalState(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func unmarshalState(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
