package engine

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"autoflow/app/db/models"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"gopkg.in/yaml.v2"
)

//go:embed defaults.yaml
var defaultCatalogue []byte

type seedAutomation struct {
	Key           string               `json:"key"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Category      string               `json:"category"`
	TriggerType   string               `json:"triggerType"`
	TriggerConfig models.TriggerConfig `json:"triggerConfig"`
	Conditions    models.ConditionSet  `json:"conditions"`
	Actions       []models.ActionSpec  `json:"actions"`
	OnFailure     string               `json:"onFailure"`
	Enabled       bool                 `json:"enabled"`
}

type seedCatalogue struct {
	Automations []seedAutomation `json:"automations"`
}

// normalize turns the map[interface{}]interface{} values produced by yaml.v2
// into JSON compatible maps.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		res := make(map[string]interface{}, len(t))
		for k, val := range t {
			res[fmt.Sprint(k)] = normalize(val)
		}
		return res
	case []interface{}:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}

func parseCatalogue(data []byte) ([]seedAutomation, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed catalogue: %w", err)
	}
	b, err := json.Marshal(normalize(raw))
	if err != nil {
		return nil, err
	}
	catalogue := seedCatalogue{}
	if err := json.Unmarshal(b, &catalogue); err != nil {
		return nil, fmt.Errorf("decode seed catalogue: %w", err)
	}
	return catalogue.Automations, nil
}

// SeedDefaults creates the tenant's missing system automations and returns
// how many it created. A seed already present, even disabled, is left alone.
func (e *Engine) SeedDefaults(ctx *contextx.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, objects.NewValidationError("tenant is required", map[string]string{"tenantId": "required"})
	}
	seeds, err := parseCatalogue(defaultCatalogue)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, s := range seeds {
		_, err := objects.QueryAutomationBySeedKey(ctx, tenantID, s.Key)
		if err == nil {
			continue
		}
		if !objects.IsNotFoundError(err) {
			return created, err
		}

		a := objects.NewAutomation()
		a.TenantID = tenantID
		a.SeedKey = s.Key
		a.IsDefault = true
		a.Name = s.Name
		a.Description = s.Description
		a.Category = s.Category
		a.TriggerType = s.TriggerType
		a.SetTriggerConfig(s.TriggerConfig)
		a.SetConditions(s.Conditions)
		a.SetActions(s.Actions)
		if s.OnFailure != "" {
			a.OnFailure = s.OnFailure
		}
		a.Enabled = s.Enabled
		if err := validateAutomation(e.registry, a); err != nil {
			return created, fmt.Errorf("seed %s: %w", s.Key, err)
		}
		a.NextRunAt = e.nextRun(a, e.now())
		if err := a.Save(ctx); err != nil {
			return created, err
		}
		created++
	}
	log.Infof(ctx, "seeded %d default automation(s) for tenant %s", created, tenantID)
	return created, nil
}
