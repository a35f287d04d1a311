package ledger

import (
	"testing"
	"time"

	"autoflow/app/automation/states"
	"autoflow/app/db/dbtest"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginComplete(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))

	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	l := New().WithClock(func() time.Time { return clock })

	a := objects.NewAutomation()
	a.ID = "a1"
	a.TenantID = "u1"

	run, err := l.Begin(ctx, a, states.ModeLive)
	require.NoError(t, err)
	asserter.Equal(states.RUNNING, run.Status)
	asserter.Nil(run.FinishedAt)

	visible, err := objects.QueryAutomationRunByID(ctx, run.ID)
	if asserter.NoError(err) {
		asserter.Equal(states.RUNNING, visible.Status)
	}

	clock = clock.Add(time.Minute)
	done, err := l.Complete(ctx, run.ID, Outcome{
		Status:         states.SUCCEEDED,
		ItemsProcessed: 3,
		Output:         map[string]interface{}{"message": "ok"},
	})
	if asserter.NoError(err) {
		asserter.Equal(states.SUCCEEDED, done.Status)
		asserter.True(done.FinishedAt.Equal(clock))
	}

	_, err = l.Complete(ctx, run.ID, Outcome{Status: states.FAILED, Error: "late"})
	asserter.ErrorIs(err, ErrRunFinished)

	stored, err := objects.QueryAutomationRunByID(ctx, run.ID)
	if asserter.NoError(err) {
		asserter.Equal(states.SUCCEEDED, stored.Status)
		asserter.Equal(3, stored.ItemsProcessed)
		asserter.Equal("ok", stored.Output.GetString("message"))
		asserter.Empty(stored.Error)
	}

	_, err = l.Complete(ctx, run.ID, Outcome{Status: states.RUNNING})
	asserter.True(objects.IsValidationError(err))

	_, err = l.Complete(ctx, "nope", Outcome{Status: states.FAILED})
	asserter.True(objects.IsNotFoundError(err))
}

func TestList(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New().WithClock(func() time.Time { return clock })
	a := objects.NewAutomation()
	a.ID = "a1"

	var ids []string
	for i := 0; i < 5; i++ {
		clock = clock.Add(time.Hour)
		run, err := l.Begin(ctx, a, states.ModeLive)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	page, err := l.List(ctx, "a1", 1, 2)
	if asserter.NoError(err) {
		asserter.EqualValues(5, page.Total)
		asserter.Equal(3, page.Pages)
		if asserter.Len(page.Runs, 2) {
			asserter.Equal(ids[4], page.Runs[0].ID)
			asserter.Equal(ids[3], page.Runs[1].ID)
		}
	}

	page, err = l.List(ctx, "a1", 3, 2)
	if asserter.NoError(err) && asserter.Len(page.Runs, 1) {
		asserter.Equal(ids[0], page.Runs[0].ID)
	}

	page, err = l.List(ctx, "a1", 0, 1000)
	if asserter.NoError(err) {
		asserter.Equal(1, page.Page)
		asserter.Equal(MaxLimit, page.Limit)
		asserter.Equal(1, page.Pages)
	}

	page, err = l.List(ctx, "a1", 9, -4)
	if asserter.NoError(err) {
		asserter.Equal(1, page.Limit)
		asserter.Equal(5, page.Pages)
		asserter.Empty(page.Runs)
	}

	page, err = l.List(ctx, "other", 1, 0)
	if asserter.NoError(err) {
		asserter.Equal(DefaultLimit, page.Limit)
		asserter.Zero(page.Pages)
	}
}
