// Package ledger records every live execution of an automation.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"autoflow/app/automation/states"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/gormx"
	"autoflow/pkg/log"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrRunFinished is returned when completing a run that already left running.
var ErrRunFinished = errors.New("automation run already finished")

type Outcome struct {
	Status         string
	ItemsProcessed int
	Error          string
	Output         map[string]interface{}
}

type Page struct {
	Runs  []*objects.AutomationRun `json:"runs"`
	Total int64                    `json:"total"`
	Page  int                      `json:"page"`
	Limit int                      `json:"limit"`
	Pages int                      `json:"pages"`
}

type Ledger struct {
	now func() time.Time
}

func New() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Begin opens a run in the running state. The row is committed before Begin
// returns so concurrent observers see it.
func (l *Ledger) Begin(ctx *contextx.Context, a *objects.Automation, mode string) (*objects.AutomationRun, error) {
	run := objects.NewAutomationRun()
	run.AutomationID = a.ID
	run.TenantID = a.TenantID
	run.Mode = mode
	run.Status = states.RUNNING
	run.StartedAt = l.now()
	if err := run.Create(ctx); err != nil {
		return nil, fmt.Errorf("begin run for automation %s: %w", a.ID, err)
	}
	log.Debugf(ctx, "run %s of automation %s started", run.ID, a.ID)
	return run, nil
}

// Complete writes the single terminal update of a run.
func (l *Ledger) Complete(ctx *contextx.Context, runID string, outcome Outcome) (*objects.AutomationRun, error) {
	if !states.IsCompleted(outcome.Status) {
		return nil, objects.NewValidationError("invalid run status", map[string]string{
			"status": fmt.Sprintf("%q is not a terminal status", outcome.Status),
		})
	}
	run, err := objects.QueryAutomationRunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	finished := l.now()
	if finished.Before(run.StartedAt) {
		finished = run.StartedAt
	}
	run.Status = outcome.Status
	run.FinishedAt = &finished
	run.ItemsProcessed = outcome.ItemsProcessed
	run.Error = outcome.Error
	run.Output = gormx.MapJson(outcome.Output)

	ok, err := run.Finish(ctx, states.RUNNING)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunFinished
	}
	log.Infof(ctx, "run %s of automation %s finished %s, %d item(s)", run.ID, run.AutomationID, run.Status, run.ItemsProcessed)
	return run, nil
}

// List pages through an automation's runs, newest first. page starts at 1
// and limit is clamped to [1, MaxLimit]; zero values pick the defaults.
func (l *Ledger) List(ctx *contextx.Context, automationID string, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	runs, total, err := objects.QueryAutomationRuns(ctx, automationID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &Page{
		Runs:  runs,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}
