// Package engine drives automations: it finds the due ones, claims them so
// overlapping invocations never run the same automation twice, executes them
// and reschedules them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"autoflow/app/actions"
	"autoflow/app/automation/executor"
	"autoflow/app/automation/ledger"
	"autoflow/app/automation/states"
	"autoflow/app/automation/trigger"
	"autoflow/app/config"
	"autoflow/app/events"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrClaimMissed means another invocation holds the automation.
var ErrClaimMissed = errors.New("automation is claimed by another run")

type Engine struct {
	registry  *actions.Registry
	executor  *executor.Executor
	ledger    *ledger.Ledger
	publisher events.Publisher

	workers   int
	batchSize int
	claimTTL  time.Duration
	location  *time.Location
	now       func() time.Time
}

func New(registry *actions.Registry, publisher events.Publisher, cfg config.EngineConfig) (*Engine, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("engine timezone: %w", err)
		}
		loc = l
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	e := &Engine{
		registry:  registry,
		executor:  executor.NewExecutor(registry, cfg.ActionTimeoutDuration()),
		ledger:    ledger.New(),
		publisher: publisher,
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
		claimTTL:  cfg.ClaimTTLDuration(),
		location:  loc,
	}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.claimTTL <= 0 {
		e.claimTTL = 10 * time.Minute
	}
	return e.WithClock(func() time.Time { return time.Now().UTC() }), nil
}

// WithClock replaces the time source of the engine and its collaborators.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	e.executor.WithClock(now)
	e.ledger.WithClock(now)
	return e
}

func (e *Engine) Registry() *actions.Registry {
	return e.registry
}

// nextRun is the scheduling decision for a's current configuration: nil
// unless it is an enabled schedule automation.
func (e *Engine) nextRun(a *objects.Automation, now time.Time) *time.Time {
	if !a.Enabled || !a.IsSchedule() {
		return nil
	}
	return trigger.ComputeNextRun(a.GetTriggerConfig(), now.In(e.location))
}

// RunReport is the outcome of one claimed execution.
type RunReport struct {
	Run    *objects.AutomationRun `json:"run"`
	Result *executor.RunResult    `json:"result"`
}

// RunScheduledAutomations executes every automation that is due, at most
// once each, and returns how many it executed. It is safe to call
// concurrently: automations claimed elsewhere are skipped. A failing
// automation is logged and rescheduled; it never stops the others.
func (e *Engine) RunScheduledAutomations(ctx *contextx.Context) (int, error) {
	now := e.now()
	due, err := objects.QueryDueAutomations(ctx, now, e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("query due automations: %w", err)
	}
	if len(due) == 0 {
		log.Debugf(ctx, "no automation due at %s", now.Format(time.RFC3339))
		return 0, nil
	}
	log.Infof(ctx, "%d automation(s) due at %s", len(due), now.Format(time.RFC3339))

	var processed int64
	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for _, a := range due {
		id := a.ID
		g.Go(func() error {
			_, err := e.runClaimed(ctx, id, true, states.OriginSchedule, &executor.Trigger{})
			switch {
			case errors.Is(err, ErrClaimMissed):
				log.Debugf(ctx, "automation %s claimed elsewhere, skipped", id)
			case err != nil:
				log.Errorf(ctx, "automation %s run failed: %s", id, err.Error())
				atomic.AddInt64(&processed, 1)
			default:
				atomic.AddInt64(&processed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(processed), nil
}

// runClaimed claims automation id, runs it live inside a ledger bracket, then
// reschedules it from its current configuration and drops the claim.
func (e *Engine) runClaimed(parent *contextx.Context, id string, requireDue bool, origin string, trig *executor.Trigger) (report *RunReport, err error) {
	ctx := detach(parent)
	ctx.Set(contextx.KeyAutomationID, id)

	token := uuid.NewString()
	claimedAt := e.now()
	ok, err := objects.ClaimAutomation(ctx, id, token, claimedAt, claimedAt.Add(e.claimTTL), requireDue)
	if err != nil {
		return nil, fmt.Errorf("claim automation %s: %w", id, err)
	}
	if !ok {
		return nil, ErrClaimMissed
	}

	defer func() {
		if rerr := e.release(ctx, id, token, claimedAt); rerr != nil && err == nil {
			err = rerr
		}
	}()

	a, err := objects.QueryAutomationByID(ctx, "", id)
	if err != nil {
		return nil, err
	}
	ctx.Set(contextx.KeyTenantID, a.TenantID)

	run, err := e.ledger.Begin(ctx, a, states.ModeLive)
	if err != nil {
		return nil, err
	}
	trig.RunID = run.ID

	result, execErr := e.execute(ctx, a, trig)
	outcome := ledger.Outcome{Status: states.FAILED, Output: map[string]interface{}{}}
	if execErr != nil {
		outcome.Error = execErr.Error()
	} else {
		outcome.Status = result.Status
		outcome.Error = result.Error
		outcome.ItemsProcessed = result.ItemsProcessed
		outcome.Output = result.Summary()
	}
	outcome.Output["origin"] = origin
	if trig.Event != "" {
		outcome.Output["event"] = trig.Event
	}

	run, err = e.ledger.Complete(ctx, run.ID, outcome)
	if err != nil {
		return nil, err
	}
	e.publishRun(ctx, a, run)
	return &RunReport{Run: run, Result: result}, nil
}

// detach keeps parent's values and database handle but not its
// cancellation. A claimed run always reaches its terminal update and release.
func detach(parent *contextx.Context) *contextx.Context {
	if parent.Context == nil {
		return parent.WithParent(context.Background())
	}
	return parent.WithParent(context.WithoutCancel(parent.Context))
}

// execute shields the engine from a panicking executor.
func (e *Engine) execute(ctx *contextx.Context, a *objects.Automation, trig *executor.Trigger) (result *executor.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf(ctx, "automation %s panicked: %v", a.ID, r)
			result, err = nil, fmt.Errorf("automation panicked: %v", r)
		}
	}()
	return e.executor.Execute(ctx, a, states.ModeLive, trig)
}

// release always runs after a claim, whatever happened in between, so a
// failed automation is rescheduled rather than stuck due.
func (e *Engine) release(ctx *contextx.Context, id, token string, ranAt time.Time) error {
	var next *time.Time
	if current, err := objects.QueryAutomationByID(ctx, "", id); err == nil {
		next = e.nextRun(current, e.now())
	} else if !objects.IsNotFoundError(err) {
		log.Errorf(ctx, "reload automation %s before release failed: %s", id, err.Error())
		return err
	}
	released, err := objects.ReleaseAutomation(ctx, id, token, ranAt, next)
	if err != nil {
		log.Errorf(ctx, "release automation %s failed: %s", id, err.Error())
		return err
	}
	if !released {
		log.Warnf(ctx, "claim on automation %s expired before release", id)
	}
	return nil
}

func (e *Engine) publishRun(ctx *contextx.Context, a *objects.Automation, run *objects.AutomationRun) {
	payload := map[string]interface{}{
		"automationId":   a.ID,
		"automationName": a.Name,
		"runId":          run.ID,
		"mode":           run.Mode,
		"origin":         run.Output.GetString("origin"),
		"status":         run.Status,
		"itemsProcessed": run.ItemsProcessed,
	}
	if run.Error != "" {
		payload["error"] = run.Error
	}
	ev := events.NewEvent(ctx, events.TopicRunCompleted, a.TenantID, payload)
	if err := e.publisher.Publish(ctx, ev); err != nil {
		log.Warnf(ctx, "publish run %s completion failed: %s", run.ID, err.Error())
	}
}
