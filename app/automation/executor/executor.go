// Package executor evaluates an automation's conditions against tenant data
// and runs its action list, or previews what a run would do.
package executor

import (
	"fmt"
	"strings"
	"time"

	"autoflow/app/actions"
	"autoflow/app/automation/states"
	"autoflow/app/expressions"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"
)

// ActionOutcome is the result of one entry of the action list.
type ActionOutcome struct {
	Index   int         `json:"index"`
	Action  string      `json:"action"`
	Name    string      `json:"name"`
	Status  string      `json:"status"`
	Calls   int         `json:"calls"`
	Output  interface{} `json:"output,omitempty"`
	Error   string      `json:"error,omitempty"`
	ErrCode string      `json:"errorCode,omitempty"`
}

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

type AutomationSummary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	TriggerType string      `json:"triggerType"`
	Trigger     interface{} `json:"triggerConfig"`
	Enabled     bool        `json:"enabled"`
	OnFailure   string      `json:"onFailure"`
}

type PlannedAction struct {
	Action     string                 `json:"action"`
	Name       string                 `json:"name"`
	ForEach    bool                   `json:"forEach"`
	Supported  bool                   `json:"supported"`
	Executions int                    `json:"executions"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Preview is what a dry run returns.
type Preview struct {
	Automation     AutomationSummary `json:"automation"`
	WouldTrigger   bool              `json:"wouldTrigger"`
	CandidateCount int               `json:"candidateCount"`
	Actions        []PlannedAction   `json:"actions"`
	Message        string            `json:"message"`
}

type RunResult struct {
	Mode           string          `json:"mode"`
	WouldTrigger   bool            `json:"wouldTrigger"`
	ItemsProcessed int             `json:"itemsProcessed"`
	Status         string          `json:"status"`
	Actions        []ActionOutcome `json:"actions,omitempty"`
	Error          string          `json:"error,omitempty"`
	Message        string          `json:"message"`
	Preview        *Preview        `json:"preview,omitempty"`
}

// Summary is the compact form stored as a run's output.
func (r *RunResult) Summary() map[string]interface{} {
	outcomes := make([]map[string]interface{}, 0, len(r.Actions))
	for _, o := range r.Actions {
		m := map[string]interface{}{
			"action": o.Action,
			"name":   o.Name,
			"status": o.Status,
			"calls":  o.Calls,
		}
		if o.Error != "" {
			m["error"] = o.Error
		}
		outcomes = append(outcomes, m)
	}
	return map[string]interface{}{
		"wouldTrigger":   r.WouldTrigger,
		"itemsProcessed": r.ItemsProcessed,
		"actions":        outcomes,
		"message":        r.Message,
	}
}

// Trigger describes why a run happens. Payload is the event for event
// triggered runs.
type Trigger struct {
	Event   string
	Payload map[string]interface{}
	RunID   string
}

type Executor struct {
	registry      *actions.Registry
	actionTimeout time.Duration
	now           func() time.Time
}

func NewExecutor(registry *actions.Registry, actionTimeout time.Duration) *Executor {
	return &Executor{
		registry:      registry,
		actionTimeout: actionTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, for tests.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute runs a in mode (states.ModeLive or states.ModeDryRun). The returned
// error is reserved for failures to evaluate the automation at all; action
// failures are reported in the result.
func (e *Executor) Execute(ctx *contextx.Context, a *objects.Automation, mode string, trigger *Trigger) (*RunResult, error) {
	if trigger == nil {
		trigger = &Trigger{}
	}
	now := e.now()

	items, wouldTrigger, err := e.candidates(ctx, a, trigger, now)
	if err != nil {
		return nil, err
	}

	if mode == states.ModeDryRun {
		preview := e.preview(a, items, wouldTrigger)
		return &RunResult{
			Mode:           mode,
			WouldTrigger:   wouldTrigger,
			ItemsProcessed: 0,
			Status:         states.SUCCEEDED,
			Message:        preview.Message,
			Preview:        preview,
		}, nil
	}

	result := &RunResult{
		Mode:         states.ModeLive,
		WouldTrigger: wouldTrigger,
		Status:       states.SUCCEEDED,
	}
	if !wouldTrigger {
		result.Message = "conditions not met, no actions executed"
		return result, nil
	}
	result.ItemsProcessed = len(items)

	wctx := e.workflowContext(ctx, a, trigger)
	data := map[string]interface{}{
		"automation": map[string]interface{}{
			"id":       a.ID,
			"name":     a.Name,
			"category": a.Category,
		},
		"tenant": a.TenantID,
		"user": map[string]interface{}{
			"id":    wctx.UserID,
			"name":  wctx.UserName,
			"email": wctx.UserEmail,
		},
		"items": items,
		"item":  nil,
		"event": trigger.Payload,
		"now":   now,
		"run":   map[string]interface{}{"id": trigger.RunID},
	}
	if len(items) > 0 {
		data["item"] = items[0]
	}
	steps := map[string]interface{}{}
	data["steps"] = steps

	failed := false
	var errs []string
	for i, spec := range a.GetActions() {
		outcome := ActionOutcome{Index: i, Action: spec.Action, Name: spec.StepName()}
		if failed && !a.ContinueOnFailure() {
			outcome.Status = OutcomeSkipped
			result.Actions = append(result.Actions, outcome)
			continue
		}

		output, calls, err := e.runAction(ctx, spec.Action, spec.Parameters, spec.ForEach, items, data, wctx)
		outcome.Calls = calls
		if err != nil {
			failed = true
			outcome.Status = OutcomeFailed
			outcome.Error = err.Error()
			outcome.ErrCode = objects.ErrorCode(err)
			errs = append(errs, fmt.Sprintf("%s: %s", outcome.Name, err.Error()))
			log.Warnf(ctx, "automation %s action %d (%s) failed: %s", a.ID, i, spec.Action, err.Error())
		} else {
			outcome.Status = OutcomeSucceeded
			outcome.Output = output
			steps[outcome.Name] = output
		}
		result.Actions = append(result.Actions, outcome)
	}

	if failed {
		result.Status = states.FAILED
		result.Error = strings.Join(errs, "; ")
		result.Message = fmt.Sprintf("%d of %d action(s) failed", len(errs), len(a.GetActions()))
	} else {
		result.Message = fmt.Sprintf("%d action(s) executed on %d item(s)", len(result.Actions), len(items))
	}
	return result, nil
}

// runAction executes one action spec, once or once per item. With forEach,
// the first failing item stops the action.
func (e *Executor) runAction(ctx *contextx.Context, name string, params map[string]interface{}, forEach bool, items []map[string]interface{}, data map[string]interface{}, wctx *objects.WorkflowContext) (interface{}, int, error) {
	h, ok := e.registry.Lookup(name)
	if !ok {
		return nil, 0, &objects.UnsupportedActionError{Action: name}
	}

	if !forEach {
		out, err := e.call(ctx, h, params, data, wctx)
		return out, 1, err
	}

	outputs := make([]interface{}, 0, len(items))
	for i, item := range items {
		scoped := make(map[string]interface{}, len(data)+1)
		for k, v := range data {
			scoped[k] = v
		}
		scoped["item"] = item
		scoped["index"] = i
		out, err := e.call(ctx, h, params, scoped, wctx)
		if err != nil {
			return outputs, i + 1, fmt.Errorf("item %d: %w", i, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, len(items), nil
}

func (e *Executor) call(ctx *contextx.Context, h actions.Handler, params map[string]interface{}, data map[string]interface{}, wctx *objects.WorkflowContext) (interface{}, error) {
	rendered, err := expressions.EvaluateRecursively(params, data)
	if err != nil {
		return nil, objects.NewValidationError("parameter template failed", map[string]string{"parameters": err.Error()})
	}
	p, _ := rendered.(map[string]interface{})
	if p == nil {
		p = map[string]interface{}{}
	}
	out, err := actions.CallWithTimeout(ctx, h, p, wctx, e.actionTimeout)
	if err != nil {
		if objects.ErrorCode(err) == objects.CodeInternal {
			err = &objects.ExecutionError{Action: h.Name(), Err: err}
		}
		return nil, err
	}
	return out, nil
}

func (e *Executor) workflowContext(ctx *contextx.Context, a *objects.Automation, trigger *Trigger) *objects.WorkflowContext {
	wctx := &objects.WorkflowContext{
		UserID:       a.TenantID,
		Permissions:  objects.SliceString{objects.PermissionWildcard},
		AutomationID: a.ID,
		RunID:        trigger.RunID,
	}
	if u, err := objects.QueryUserByID(ctx, a.TenantID); err == nil {
		wctx.UserName = u.Name
		wctx.UserEmail = u.Email
	}
	return wctx
}

// candidates returns the items a run would process and whether it triggers.
// Event runs trivially match with the payload as their single item; schedule
// runs without a record condition trigger with no items.
func (e *Executor) candidates(ctx *contextx.Context, a *objects.Automation, trigger *Trigger, now time.Time) ([]map[string]interface{}, bool, error) {
	if !a.IsSchedule() {
		payload := trigger.Payload
		if payload == nil {
			payload = map[string]interface{}{}
		}
		return []map[string]interface{}{payload}, true, nil
	}

	cs := a.GetConditions()
	if cs.Record == "" {
		return nil, true, nil
	}

	records, err := objects.QueryRecords(ctx, objects.RecordFilter{TenantID: a.TenantID, Kind: cs.Record})
	if err != nil {
		return nil, false, err
	}
	var items []map[string]interface{}
	for _, r := range records {
		item := r.AsMap()
		ok, err := Match(cs.Where, item, now)
		if err != nil {
			return nil, false, objects.NewValidationError("condition evaluation failed", map[string]string{"conditions": err.Error()})
		}
		if ok {
			items = append(items, item)
		}
	}
	return items, len(items) > 0, nil
}

func (e *Executor) preview(a *objects.Automation, items []map[string]interface{}, wouldTrigger bool) *Preview {
	p := &Preview{
		Automation: AutomationSummary{
			ID:          a.ID,
			Name:        a.Name,
			Category:    a.Category,
			TriggerType: a.TriggerType,
			Trigger:     a.GetTriggerConfig(),
			Enabled:     a.Enabled,
			OnFailure:   a.OnFailure,
		},
		WouldTrigger:   wouldTrigger,
		CandidateCount: len(items),
	}
	for _, spec := range a.GetActions() {
		_, supported := e.registry.Lookup(spec.Action)
		executions := 1
		if spec.ForEach {
			executions = len(items)
		}
		if !wouldTrigger {
			executions = 0
		}
		p.Actions = append(p.Actions, PlannedAction{
			Action:     spec.Action,
			Name:       spec.StepName(),
			ForEach:    spec.ForEach,
			Supported:  supported,
			Executions: executions,
			Parameters: spec.Parameters,
		})
	}

	kind := a.GetConditions().Record
	switch {
	case !a.IsSchedule():
		p.Message = fmt.Sprintf("Would run %d action(s) when event %q fires", len(p.Actions), a.GetTriggerConfig().Event)
	case !wouldTrigger:
		p.Message = fmt.Sprintf("Conditions not met: no matching %s records, no actions would run", kind)
	case kind == "":
		p.Message = fmt.Sprintf("Would run %d action(s)", len(p.Actions))
	default:
		p.Message = fmt.Sprintf("Would run %d action(s) on %d matching %s record(s)", len(p.Actions), len(items), kind)
	}
	return p
}
