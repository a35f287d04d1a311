package engine

import (
	"errors"
	"fmt"
	"strings"

	"autoflow/app/actions"
	"autoflow/app/automation/executor"
	"autoflow/app/automation/trigger"
	"autoflow/app/db/models"
	"autoflow/app/objects"
)

var recordKinds = objects.SliceString{
	models.KindInvoice,
	models.KindQuote,
	models.KindTimeEntry,
	models.KindContact,
}

// AutomationInput is the writable part of an automation. On update, nil
// fields are left unchanged.
type AutomationInput struct {
	Name          *string               `json:"name"`
	Description   *string               `json:"description"`
	Category      *string               `json:"category"`
	TriggerType   *string               `json:"triggerType"`
	TriggerConfig *models.TriggerConfig `json:"triggerConfig"`
	Conditions    *models.ConditionSet  `json:"conditions"`
	Actions       []models.ActionSpec   `json:"actions"`
	OnFailure     *string               `json:"onFailure"`
	Enabled       *bool                 `json:"enabled"`
}

// apply copies the set fields onto a and returns the names of the changed
// columns.
func (in *AutomationInput) apply(a *objects.Automation) []string {
	var fields []string
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
		fields = append(fields, "Name")
	}
	if in.Description != nil {
		a.Description = *in.Description
		fields = append(fields, "Description")
	}
	if in.Category != nil {
		a.Category = *in.Category
		fields = append(fields, "Category")
	}
	if in.TriggerType != nil {
		a.TriggerType = *in.TriggerType
		fields = append(fields, "TriggerType")
	}
	if in.TriggerConfig != nil {
		a.SetTriggerConfig(*in.TriggerConfig)
		fields = append(fields, "TriggerConfig")
	}
	if in.Conditions != nil {
		a.SetConditions(*in.Conditions)
		fields = append(fields, "Conditions")
	}
	if in.Actions != nil {
		a.SetActions(in.Actions)
		fields = append(fields, "Actions")
	}
	if in.OnFailure != nil {
		a.OnFailure = *in.OnFailure
		if a.OnFailure == "" {
			a.OnFailure = models.OnFailureAbort
		}
		fields = append(fields, "OnFailure")
	}
	if in.Enabled != nil {
		a.Enabled = *in.Enabled
		fields = append(fields, "Enabled")
	}
	return fields
}

// validateAutomation checks the tagged variants of a before it is saved.
// Action parameters holding templates are only checked for their literal
// parts; unknown actions are accepted and fail at run time.
func validateAutomation(registry *actions.Registry, a *objects.Automation) error {
	fields := map[string]string{}
	if a.Name == "" {
		fields["name"] = "required"
	}
	for k, v := range trigger.Validate(a.TriggerType, a.GetTriggerConfig()) {
		fields["triggerConfig."+k] = v
	}
	switch a.OnFailure {
	case "", models.OnFailureAbort, models.OnFailureContinue:
	default:
		fields["onFailure"] = fmt.Sprintf("must be %s or %s", models.OnFailureAbort, models.OnFailureContinue)
	}

	cs := a.GetConditions()
	if cs.Record != "" && !recordKinds.Has(cs.Record) {
		fields["conditions.record"] = fmt.Sprintf("unknown record kind %q", cs.Record)
	}
	if cs.Where != nil {
		if cs.Record == "" {
			fields["conditions.record"] = "required when conditions.where is set"
		}
		for k, v := range executor.ValidateCondition(cs.Where, "conditions.where") {
			fields[k] = v
		}
	}

	specs := a.GetActions()
	if len(specs) == 0 {
		fields["actions"] = "at least one action is required"
	}
	for i, spec := range specs {
		prefix := fmt.Sprintf("actions[%d]", i)
		if strings.TrimSpace(spec.Action) == "" {
			fields[prefix+".action"] = "required"
			continue
		}
		h, ok := registry.Lookup(spec.Action)
		if !ok {
			continue
		}
		if err := h.Validate(spec.Parameters, true); err != nil {
			var verr *objects.ValidationError
			if errors.As(err, &verr) && len(verr.Fields) > 0 {
				for k, v := range verr.Fields {
					fields[prefix+".parameters."+k] = v
				}
			} else {
				fields[prefix+".parameters"] = err.Error()
			}
		}
	}

	if len(fields) > 0 {
		return objects.NewValidationError("invalid automation", fields)
	}
	return nil
}
