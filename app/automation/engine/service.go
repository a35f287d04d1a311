package engine

import (
	"errors"
	"fmt"

	"autoflow/app/automation/executor"
	"autoflow/app/automation/ledger"
	"autoflow/app/automation/states"
	"autoflow/app/db/models"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"
)

// View is an automation as returned to callers, with its derived state.
type View struct {
	*models.Automation
	State string `json:"state"`
}

func (e *Engine) view(a *objects.Automation) *View {
	return &View{
		Automation: a.Automation,
		State:      states.AutomationState(a.Enabled, a.IsSchedule(), a.NextRunAt, a.ClaimedUntil, e.now()),
	}
}

// requireUpcoming rejects an enabled schedule automation that never runs.
func requireUpcoming(a *objects.Automation) error {
	if a.Enabled && a.IsSchedule() && a.NextRunAt == nil {
		return objects.NewValidationError("trigger has no upcoming run",
			map[string]string{"triggerConfig": "cannot compute a next run"})
	}
	return nil
}

func (e *Engine) Create(ctx *contextx.Context, tenantID string, in *AutomationInput) (*View, error) {
	if tenantID == "" {
		return nil, objects.NewValidationError("tenant is required", map[string]string{"tenantId": "required"})
	}
	a := objects.NewAutomation()
	a.TenantID = tenantID
	a.Enabled = true
	in.apply(a)
	if err := validateAutomation(e.registry, a); err != nil {
		return nil, err
	}
	a.NextRunAt = e.nextRun(a, e.now())
	if err := requireUpcoming(a); err != nil {
		return nil, err
	}
	if err := a.Save(ctx); err != nil {
		return nil, err
	}
	log.Infof(ctx, "automation %s (%s) created for tenant %s", a.ID, a.Name, tenantID)
	return e.view(a), nil
}

// Update applies in to the automation. The schedule is recomputed when the
// trigger or the enabled flag changes, and like Toggle it refuses to leave a
// schedule enabled without a next run. Claim columns are never written here,
// so an update during a run does not steal the claim.
func (e *Engine) Update(ctx *contextx.Context, tenantID, id string, in *AutomationInput) (*View, error) {
	a, err := objects.QueryAutomationByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	fields := in.apply(a)
	if len(fields) == 0 {
		return e.view(a), nil
	}
	if err := validateAutomation(e.registry, a); err != nil {
		return nil, err
	}
	if objects.SliceString(fields).Has("TriggerType") || objects.SliceString(fields).Has("TriggerConfig") ||
		objects.SliceString(fields).Has("Enabled") {
		a.NextRunAt = e.nextRun(a, e.now())
		fields = append(fields, "NextRunAt")
		if err := requireUpcoming(a); err != nil {
			return nil, err
		}
	}
	if err := a.Update(ctx, fields...); err != nil {
		return nil, err
	}
	return e.view(a), nil
}

// Toggle flips the enabled flag, or sets it when enabled is given. Enabling
// a schedule automation whose trigger yields no next run is rejected.
func (e *Engine) Toggle(ctx *contextx.Context, tenantID, id string, enabled *bool) (*View, error) {
	a, err := objects.QueryAutomationByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if enabled != nil {
		a.Enabled = *enabled
	} else {
		a.Enabled = !a.Enabled
	}
	a.NextRunAt = e.nextRun(a, e.now())
	if err := requireUpcoming(a); err != nil {
		return nil, err
	}
	if err := a.Update(ctx, "Enabled", "NextRunAt"); err != nil {
		return nil, err
	}
	log.Infof(ctx, "automation %s enabled=%t next=%v", a.ID, a.Enabled, a.NextRunAt)
	return e.view(a), nil
}

// Delete removes an automation with its runs. System seeded automations are
// disabled instead, so seeding does not bring them back.
func (e *Engine) Delete(ctx *contextx.Context, tenantID, id string) (deleted bool, err error) {
	a, err := objects.QueryAutomationByID(ctx, tenantID, id)
	if err != nil {
		return false, err
	}
	if a.IsDefault {
		a.Enabled = false
		a.NextRunAt = nil
		if err := a.Update(ctx, "Enabled", "NextRunAt"); err != nil {
			return false, err
		}
		log.Infof(ctx, "default automation %s disabled instead of deleted", a.ID)
		return false, nil
	}
	err = objects.Transaction(ctx, func(subCtx *contextx.Context) error {
		if err := objects.DeleteAutomationRuns(subCtx, a.ID); err != nil {
			return err
		}
		return a.Delete(subCtx)
	})
	if err != nil {
		return false, fmt.Errorf("delete automation %s: %w", id, err)
	}
	log.Infof(ctx, "automation %s deleted", id)
	return true, nil
}

func (e *Engine) Get(ctx *contextx.Context, tenantID, id string) (*View, error) {
	a, err := objects.QueryAutomationByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return e.view(a), nil
}

func (e *Engine) List(ctx *contextx.Context, filter objects.AutomationFilter) ([]*View, error) {
	all, err := objects.QueryAutomations(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(all))
	for _, a := range all {
		views = append(views, e.view(a))
	}
	return views, nil
}

// Test previews the automation without side effects. Nothing is written, not
// even a ledger entry.
func (e *Engine) Test(ctx *contextx.Context, tenantID, id string) (*executor.RunResult, error) {
	a, err := objects.QueryAutomationByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return e.executor.Execute(ctx, a, states.ModeDryRun, &executor.Trigger{})
}

// RunNow executes the automation immediately, whether due or not.
func (e *Engine) RunNow(ctx *contextx.Context, tenantID, id string) (*RunReport, error) {
	if _, err := objects.QueryAutomationByID(ctx, tenantID, id); err != nil {
		return nil, err
	}
	report, err := e.runClaimed(ctx, id, false, states.OriginManual, &executor.Trigger{})
	if errors.Is(err, ErrClaimMissed) {
		return nil, objects.NewValidationError("automation is already running", nil)
	}
	return report, err
}

// HandleEvent runs every enabled automation of the tenant listening on event
// and returns how many ran. One failing automation does not stop the others.
func (e *Engine) HandleEvent(ctx *contextx.Context, tenantID, event string, payload map[string]interface{}) (int, error) {
	if tenantID == "" || event == "" {
		return 0, objects.NewValidationError("tenant and event are required", nil)
	}
	matched, err := objects.QueryEventAutomations(ctx, tenantID, event)
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, a := range matched {
		_, err := e.runClaimed(ctx, a.ID, false, states.OriginEvent, &executor.Trigger{Event: event, Payload: payload})
		if err != nil {
			log.Errorf(ctx, "event %s: automation %s failed: %s", event, a.ID, err.Error())
			if errors.Is(err, ErrClaimMissed) {
				continue
			}
		}
		ran++
	}
	log.Infof(ctx, "event %s for tenant %s ran %d automation(s)", event, tenantID, ran)
	return ran, nil
}

// Runs lists the ledger of one of the tenant's automations.
func (e *Engine) Runs(ctx *contextx.Context, tenantID, id string, page, limit int) (*ledger.Page, error) {
	if _, err := objects.QueryAutomationByID(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return e.ledger.List(ctx, id, page, limit)
}
