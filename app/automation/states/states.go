package states

import "time"

var (
	// RUNNING Run has been opened in the ledger and is executing.
	RUNNING = "running"

	// SUCCEEDED Run has finished and every executed action succeeded.
	SUCCEEDED = "succeeded"

	// FAILED Run has finished with an error.
	FAILED = "failed"

	CompleteStates = []string{
		SUCCEEDED, FAILED,
	}
)

var (
	// DISABLED Automation is switched off and has no next run.
	DISABLED = "disabled"

	// SCHEDULED Automation is enabled and its next run lies in the future.
	SCHEDULED = "scheduled"

	// DUE Automation's next run has been reached and nobody claimed it yet.
	DUE = "due"

	// CLAIMED Automation is held by an engine invocation and executing.
	CLAIMED = "running"

	// WAITING Automation is enabled but only runs on an event or manually.
	WAITING = "waiting"
)

// Run modes.
var (
	ModeLive   = "live"
	ModeDryRun = "dryRun"
)

// Run origins, recorded on the ledger entry.
var (
	OriginSchedule = "schedule"
	OriginManual   = "manual"
	OriginEvent    = "event"
)

func IsCompleted(state string) bool {
	for _, s := range CompleteStates {
		if s == state {
			return true
		}
	}
	return false
}

func IsRunning(state string) bool {
	return state == RUNNING
}

func IsSuccess(state string) bool {
	return state == SUCCEEDED
}

// AutomationState derives the automation's state machine value from its
// persisted fields.
func AutomationState(enabled, schedule bool, nextRunAt, claimedUntil *time.Time, now time.Time) string {
	if !enabled {
		return DISABLED
	}
	if claimedUntil != nil && claimedUntil.After(now) {
		return CLAIMED
	}
	if !schedule || nextRunAt == nil {
		return WAITING
	}
	if !nextRunAt.After(now) {
		return DUE
	}
	return SCHEDULED
}
