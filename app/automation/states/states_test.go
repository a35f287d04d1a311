package states

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAutomationState(t *testing.T) {
	asserter := assert.New(t)

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	asserter.Equal(DISABLED, AutomationState(false, true, &future, nil, now))
	asserter.Equal(SCHEDULED, AutomationState(true, true, &future, nil, now))
	asserter.Equal(DUE, AutomationState(true, true, &past, nil, now))
	asserter.Equal(DUE, AutomationState(true, true, &now, &past, now))
	asserter.Equal(CLAIMED, AutomationState(true, true, &past, &future, now))
	asserter.Equal(WAITING, AutomationState(true, false, nil, nil, now))
}

func TestRunStates(t *testing.T) {
	asserter := assert.New(t)

	asserter.True(IsCompleted(SUCCEEDED))
	asserter.True(IsCompleted(FAILED))
	asserter.False(IsCompleted(RUNNING))
	asserter.True(IsRunning(RUNNING))
	asserter.True(IsSuccess(SUCCEEDED))
}
