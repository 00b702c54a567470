package simulation

import (
	"context"

	"terrafort/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a tick takes longer than its period.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventPhaseTimeout is emitted when a parallel phase outlives its guard.
	EventPhaseTimeout logging.EventType = "simulation.phase_timeout"
	// EventScheduledCallbackFailed is emitted when a scheduled callback panics.
	EventScheduledCallbackFailed logging.EventType = "simulation.scheduled_callback_failed"
	// EventInvariantViolation is emitted when an operation is aborted because
	// the simulation state would become inconsistent.
	EventInvariantViolation logging.EventType = "simulation.invariant_violation"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

type PhaseTimeoutPayload struct {
	Phase          string `json:"phase"`
	DurationMillis int64  `json:"durationMillis"`
	LimitMillis    int64  `json:"limitMillis"`
}

type ScheduledCallbackFailedPayload struct {
	Handle     uint64 `json:"handle"`
	TargetTick uint64 `json:"targetTick"`
	Error      string `json:"error"`
}

type InvariantViolationPayload struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload) {
	publish(ctx, pub, EventTickBudgetOverrun, tick, logging.SeverityWarn, payload)
}

func PhaseTimeout(ctx context.Context, pub logging.Publisher, tick uint64, payload PhaseTimeoutPayload) {
	publish(ctx, pub, EventPhaseTimeout, tick, logging.SeverityWarn, payload)
}

func ScheduledCallbackFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload ScheduledCallbackFailedPayload) {
	publish(ctx, pub, EventScheduledCallbackFailed, tick, logging.SeverityError, payload)
}

func InvariantViolation(ctx context.Context, pub logging.Publisher, tick uint64, payload InvariantViolationPayload) {
	publish(ctx, pub, EventInvariantViolation, tick, logging.SeverityError, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, severity logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Severity: severity,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}
