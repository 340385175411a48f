package monitoring

import (
	"sync"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/rs/zerolog"
)

// Condition reports whether an alert rule's breach condition currently
// holds. Evaluated on every tick of the AlertEvaluator's check loop.
type Condition func() bool

type watchedRule struct {
	rule       domain.AlertRule
	condition  Condition
	breachedAt time.Time // zero means "not currently breaching"
	firedAt    time.Time // zero means "never fired, or cooldown has elapsed"
}

// AlertEvaluator periodically checks a set of registered rules and fires
// an AlertFiredData event once a breach has persisted continuously for
// PersistFor. Firing restarts the persistence timer at the firing instant;
// the rule fires again once CooldownFor has elapsed and the breach has
// held for PersistFor since that instant. The condition does not have to
// clear in between, so a breach that never clears re-fires periodically.
type AlertEvaluator struct {
	mu    sync.Mutex
	rules []*watchedRule
	bus   *events.Bus
	log   zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewAlertEvaluator constructs an evaluator publishing fired alerts to bus.
func NewAlertEvaluator(bus *events.Bus, log zerolog.Logger) *AlertEvaluator {
	return &AlertEvaluator{
		bus:  bus,
		log:  log.With().Str("component", "monitoring.AlertEvaluator").Logger(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Register adds a rule and the condition function that evaluates its
// breach state.
func (e *AlertEvaluator) Register(rule domain.AlertRule, condition Condition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, &watchedRule{rule: rule, condition: condition})
}

// Run checks every registered rule every interval until Stop is called.
// Intended to run on its own goroutine, following the single periodic
// check-loop idiom used throughout the engine's background tasks.
func (e *AlertEvaluator) Run(interval time.Duration) {
	defer close(e.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case now := <-ticker.C:
			e.checkAll(now)
		}
	}
}

// Stop halts the evaluation loop and waits for it to exit.
func (e *AlertEvaluator) Stop() {
	close(e.stop)
	<-e.done
}

func (e *AlertEvaluator) checkAll(now time.Time) {
	e.mu.Lock()
	rules := append([]*watchedRule(nil), e.rules...)
	e.mu.Unlock()

	for _, wr := range rules {
		e.checkOne(wr, now)
	}
}

func (e *AlertEvaluator) checkOne(wr *watchedRule, now time.Time) {
	breaching := wr.condition()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !breaching {
		wr.breachedAt = time.Time{}
		return
	}

	if wr.breachedAt.IsZero() {
		wr.breachedAt = now
	}

	if !wr.firedAt.IsZero() {
		// Still within cooldown from the last firing: do not fire again
		// yet, however long the breach has persisted.
		if now.Sub(wr.firedAt) < time.Duration(wr.rule.CooldownFor) {
			return
		}
	}

	if now.Sub(wr.breachedAt) < time.Duration(wr.rule.PersistFor) {
		return
	}

	wr.firedAt = now
	wr.breachedAt = now // persistence timer resets on firing, it does not merely pause
	alert := domain.Alert{Rule: wr.rule.Name, Severity: wr.rule.Severity, FiredAt: domain.NewTimestamp(now)}
	e.log.Warn().Str("rule", wr.rule.Name).Str("severity", string(wr.rule.Severity)).Msg("alert fired")
	e.bus.Publish(&events.AlertFiredData{Alert: alert})
}
