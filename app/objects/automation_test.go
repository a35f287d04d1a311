package objects

import (
	"testing"
	"time"

	"autoflow/app/db/dbtest"
	"autoflow/app/db/models"
	"autoflow/pkg/contextx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduled(t *testing.T, ctx *contextx.Context, tenant string, next *time.Time) *Automation {
	a := NewAutomation()
	a.TenantID = tenant
	a.Name = "overdue invoices"
	a.TriggerType = models.TriggerSchedule
	a.SetTriggerConfig(models.TriggerConfig{Schedule: "daily", Time: "09:00"})
	a.SetActions([]models.ActionSpec{{Action: "send_notification"}})
	a.Enabled = true
	a.NextRunAt = next
	require.NoError(t, a.Save(ctx))
	return a
}

func TestAutomation_SaveAndQuery(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))

	a := newScheduled(t, ctx, "tenant-1", nil)
	asserter.NotEmpty(a.ID)
	asserter.Equal(models.OnFailureAbort, a.OnFailure)

	got, err := QueryAutomationByID(ctx, "tenant-1", a.ID)
	if asserter.NoError(err) {
		asserter.Equal("daily", got.GetTriggerConfig().Schedule)
		asserter.Equal("09:00", got.GetTriggerConfig().Time)
		asserter.Len(got.GetActions(), 1)
		asserter.False(got.ContinueOnFailure())
	}

	_, err = QueryAutomationByID(ctx, "tenant-2", a.ID)
	asserter.True(IsNotFoundError(err))

	got.Enabled = false
	got.NextRunAt = nil
	if asserter.NoError(got.Update(ctx, "Enabled", "NextRunAt")) {
		again, err := QueryAutomationByID(ctx, "", a.ID)
		if asserter.NoError(err) {
			asserter.False(again.Enabled)
			asserter.Nil(again.NextRunAt)
		}
	}

	if asserter.NoError(got.Delete(ctx)) {
		_, err = QueryAutomationByID(ctx, "", a.ID)
		asserter.True(IsNotFoundError(err))
	}
}

func TestQueryDueAutomations(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := newScheduled(t, ctx, "t1", &past)
	newScheduled(t, ctx, "t1", &future)
	newScheduled(t, ctx, "t1", nil)

	disabled := newScheduled(t, ctx, "t1", &past)
	disabled.Enabled = false
	require.NoError(t, disabled.Update(ctx, "Enabled"))

	list, err := QueryDueAutomations(ctx, now, 10)
	if asserter.NoError(err) && asserter.Len(list, 1) {
		asserter.Equal(due.ID, list[0].ID)
	}
}

func TestClaimAndRelease(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	a := newScheduled(t, ctx, "t1", &past)

	ok, err := ClaimAutomation(ctx, a.ID, "tok-1", now, now.Add(10*time.Minute), true)
	asserter.NoError(err)
	asserter.True(ok)

	ok, err = ClaimAutomation(ctx, a.ID, "tok-2", now, now.Add(10*time.Minute), true)
	asserter.NoError(err)
	asserter.False(ok, "second claim must miss while the first is live")

	list, err := QueryDueAutomations(ctx, now, 10)
	asserter.NoError(err)
	asserter.Empty(list)

	released, err := ReleaseAutomation(ctx, a.ID, "tok-2", now, nil)
	asserter.NoError(err)
	asserter.False(released, "foreign token cannot release")

	next := now.Add(23 * time.Hour)
	released, err = ReleaseAutomation(ctx, a.ID, "tok-1", now, &next)
	asserter.NoError(err)
	asserter.True(released)

	got, err := QueryAutomationByID(ctx, "", a.ID)
	if asserter.NoError(err) {
		asserter.Nil(got.ClaimedUntil)
		asserter.Empty(got.ClaimToken)
		if asserter.NotNil(got.NextRunAt) {
			asserter.True(got.NextRunAt.Equal(next))
		}
		if asserter.NotNil(got.LastRunAt) {
			asserter.True(got.LastRunAt.Equal(now))
		}
	}

	// no longer due
	ok, err = ClaimAutomation(ctx, a.ID, "tok-3", now, now.Add(time.Minute), true)
	asserter.NoError(err)
	asserter.False(ok)

	// a manual claim ignores the schedule
	ok, err = ClaimAutomation(ctx, a.ID, "tok-4", now, now.Add(time.Minute), false)
	asserter.NoError(err)
	asserter.True(ok)

	// an expired claim can be taken over
	ok, err = ClaimAutomation(ctx, a.ID, "tok-5", now.Add(2*time.Minute), now.Add(5*time.Minute), false)
	asserter.NoError(err)
	asserter.True(ok)
}

func TestRelease_DisabledSinceClaimKeepsNoNextRun(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	a := newScheduled(t, ctx, "t1", &past)

	ok, err := ClaimAutomation(ctx, a.ID, "tok-1", now, now.Add(10*time.Minute), true)
	require.NoError(t, err)
	require.True(t, ok)

	a.Enabled = false
	a.NextRunAt = nil
	require.NoError(t, a.Update(ctx, "Enabled", "NextRunAt"))

	next := now.Add(23 * time.Hour)
	released, err := ReleaseAutomation(ctx, a.ID, "tok-1", now, &next)
	asserter.NoError(err)
	asserter.True(released)

	got, err := QueryAutomationByID(ctx, "", a.ID)
	if asserter.NoError(err) {
		asserter.False(got.Enabled)
		asserter.Nil(got.NextRunAt)
		asserter.Nil(got.ClaimedUntil)
		if asserter.NotNil(got.LastRunAt) {
			asserter.True(got.LastRunAt.Equal(now))
		}
	}
}

func TestQueryEventAutomations(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))

	for _, ev := range []string{"invoice.paid", "quote.accepted"} {
		a := NewAutomation()
		a.TenantID = "t1"
		a.TriggerType = models.TriggerEvent
		a.SetTriggerConfig(models.TriggerConfig{Event: ev})
		a.Enabled = true
		require.NoError(t, a.Save(ctx))
	}

	list, err := QueryEventAutomations(ctx, "t1", "invoice.paid")
	if asserter.NoError(err) && asserter.Len(list, 1) {
		asserter.Equal("invoice.paid", list[0].GetTriggerConfig().Event)
	}
	list, err = QueryEventAutomations(ctx, "t2", "invoice.paid")
	asserter.NoError(err)
	asserter.Empty(list)
}

func TestAutomationRuns(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r := NewAutomationRun()
		r.AutomationID = "a1"
		r.Status = "running"
		r.StartedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, r.Create(ctx))
	}

	runs, total, err := QueryAutomationRuns(ctx, "a1", 0, 2)
	if asserter.NoError(err) {
		asserter.EqualValues(3, total)
		if asserter.Len(runs, 2) {
			asserter.True(runs[0].StartedAt.After(runs[1].StartedAt))
		}
	}

	r := runs[0]
	finished := base.Add(5 * time.Hour)
	r.Status = "succeeded"
	r.FinishedAt = &finished
	ok, err := r.Finish(ctx, "running")
	asserter.NoError(err)
	asserter.True(ok)

	r.Status = "failed"
	ok, err = r.Finish(ctx, "running")
	asserter.NoError(err)
	asserter.False(ok)

	got, err := QueryAutomationRunByID(ctx, r.ID)
	if asserter.NoError(err) {
		asserter.Equal("succeeded", got.Status)
		asserter.True(got.IsFinished())
	}

	n, err := CountAutomationRuns(ctx, "a1", "running")
	asserter.NoError(err)
	asserter.EqualValues(2, n)
}
