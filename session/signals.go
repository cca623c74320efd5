package session

import "github.com/zoobzio/capitan"

// Signal definitions for session lifecycle events.
// Signals follow the pattern: reasonloop.<entity>.<event>.
var (
	SessionCreated = capitan.NewSignal(
		"reasonloop.session.created",
		"New reasoning session initialized with task and mode",
	)
	SessionTerminated = capitan.NewSignal(
		"reasonloop.session.terminated",
		"Session reached a final step, its step ceiling, or was finished by the operator",
	)

	TurnStarted = capitan.NewSignal(
		"reasonloop.turn.started",
		"Turn began with a directive applied to the session",
	)
	TurnCompleted = capitan.NewSignal(
		"reasonloop.turn.completed",
		"Step accepted and appended to history",
	)
	TurnRetried = capitan.NewSignal(
		"reasonloop.turn.retried",
		"Provider or validation failure, retrying with the same step id",
	)
	TurnFailed = capitan.NewSignal(
		"reasonloop.turn.failed",
		"Turn failed on every attempt, history unchanged",
	)

	UsageRejected = capitan.NewSignal(
		"reasonloop.usage.rejected",
		"Usage record could not be priced, totals unchanged",
	)
)

// Field keys for session event data.
var (
	FieldSessionID = capitan.NewStringKey("session_id")
	FieldTask      = capitan.NewStringKey("task")
	FieldStepID    = capitan.NewIntKey("step_id")
	FieldMaxSteps  = capitan.NewIntKey("max_steps")
	FieldMode      = capitan.NewStringKey("mode")
	FieldLanguage  = capitan.NewStringKey("reasoning_language")
	FieldDirective = capitan.NewStringKey("directive")
	FieldReason    = capitan.NewStringKey("reason")

	FieldAttempt  = capitan.NewIntKey("attempt")
	FieldTurnCost = capitan.NewFloat32Key("turn_cost") // USD
	FieldDuration = capitan.NewDurationKey("duration")

	FieldError = capitan.NewErrorKey("error")
)
