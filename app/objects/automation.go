package objects

import (
	"fmt"
	"time"

	"autoflow/app/db/models"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Automation struct {
	*models.Automation
	ContextObject
	PersistentObject
}

func (a *Automation) GetTriggerConfig() models.TriggerConfig {
	return a.TriggerConfig.Data()
}

func (a *Automation) SetTriggerConfig(cfg models.TriggerConfig) {
	a.TriggerConfig = datatypes.NewJSONType(cfg)
}

func (a *Automation) GetConditions() models.ConditionSet {
	return a.Conditions.Data()
}

func (a *Automation) SetConditions(cs models.ConditionSet) {
	a.Conditions = datatypes.NewJSONType(cs)
}

func (a *Automation) GetActions() []models.ActionSpec {
	return a.Actions.Data()
}

func (a *Automation) SetActions(actions []models.ActionSpec) {
	a.Actions = datatypes.NewJSONType(actions)
}

func (a *Automation) IsSchedule() bool {
	return a.TriggerType == models.TriggerSchedule
}

// ContinueOnFailure reports whether a failed action lets the remaining ones run.
func (a *Automation) ContinueOnFailure() bool {
	return a.OnFailure == models.OnFailureContinue
}

func (a *Automation) Save(ctx *contextx.Context) error {
	now := time.Now().UTC()
	if !a.IsCreated() {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.OnFailure == "" {
		a.OnFailure = models.OnFailureAbort
	}

	if err := a.GetDB(ctx).Save(a.Automation).Error; err != nil {
		log.Errorf(ctx, "save automation %s failed, error: %s", a.ID, err.Error())
		return err
	}
	a.SetContext(ctx)
	a.SetCreated()
	return nil
}

// Update writes only the named columns.
func (a *Automation) Update(ctx *contextx.Context, fields ...string) error {
	a.UpdatedAt = time.Now().UTC()
	fields = append(fields, "UpdatedAt")
	result := a.GetDB(ctx).Model(a.Automation).Select(fields).Updates(a.Automation)
	if result.Error != nil {
		log.Errorf(ctx, "update automation %s failed, error: %s", a.ID, result.Error.Error())
		return result.Error
	}
	log.Debugf(ctx, "update automation %s fields %v, rows %d", a.ID, fields, result.RowsAffected)
	return nil
}

func (a *Automation) Delete(ctx *contextx.Context) error {
	if !a.IsCreated() {
		return fmt.Errorf("object %s isn't a persistent object, can't delete it", a.ID)
	}
	return a.GetDB(ctx).Delete(&models.Automation{}, "id = ?", a.ID).Error
}

func NewAutomation() *Automation {
	return &Automation{
		Automation: &models.Automation{
			OnFailure: models.OnFailureAbort,
		},
	}
}

func NewAutomationFromDB(ctx *contextx.Context, m *models.Automation) *Automation {
	if m == nil {
		return nil
	}
	a := &Automation{Automation: m}
	a.SetContext(ctx)
	a.SetCreated()
	return a
}

func newAutomations(ctx *contextx.Context, ms []*models.Automation) []*Automation {
	out := make([]*Automation, 0, len(ms))
	for _, m := range ms {
		out = append(out, NewAutomationFromDB(ctx, m))
	}
	return out
}

// QueryAutomationByID loads one automation; an empty tenantID matches any tenant.
func QueryAutomationByID(ctx *contextx.Context, tenantID, id string) (*Automation, error) {
	m := &models.Automation{}
	q := GetDB(ctx).Where("id = ?", id)
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if err := q.First(m).Error; err != nil {
		return nil, notFound(err, "automation", id)
	}
	return NewAutomationFromDB(ctx, m), nil
}

func QueryAutomationBySeedKey(ctx *contextx.Context, tenantID, seedKey string) (*Automation, error) {
	m := &models.Automation{}
	err := GetDB(ctx).Where("tenant_id = ? AND seed_key = ?", tenantID, seedKey).First(m).Error
	if err != nil {
		return nil, notFound(err, "automation", seedKey)
	}
	return NewAutomationFromDB(ctx, m), nil
}

type AutomationFilter struct {
	TenantID    string
	Category    string
	TriggerType string
	Enabled     *bool
}

func QueryAutomations(ctx *contextx.Context, filter AutomationFilter) ([]*Automation, error) {
	var ms []*models.Automation
	q := GetDB(ctx).Model(&models.Automation{})
	if filter.TenantID != "" {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.TriggerType != "" {
		q = q.Where("trigger_type = ?", filter.TriggerType)
	}
	if filter.Enabled != nil {
		q = q.Where("enabled = ?", *filter.Enabled)
	}
	if err := q.Order("created_at ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return newAutomations(ctx, ms), nil
}

// QueryDueAutomations lists enabled schedule automations whose next run is at
// or before now and that are not held by a live claim.
func QueryDueAutomations(ctx *contextx.Context, now time.Time, limit int) ([]*Automation, error) {
	var ms []*models.Automation
	q := GetDB(ctx).
		Where("enabled = ? AND trigger_type = ?", true, models.TriggerSchedule).
		Where("next_run_at IS NOT NULL AND next_run_at <= ?", now).
		Where("claimed_until IS NULL OR claimed_until <= ?", now).
		Order("next_run_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	return newAutomations(ctx, ms), nil
}

// QueryEventAutomations lists the tenant's enabled automations listening on event.
func QueryEventAutomations(ctx *contextx.Context, tenantID, event string) ([]*Automation, error) {
	enabled := true
	all, err := QueryAutomations(ctx, AutomationFilter{
		TenantID:    tenantID,
		TriggerType: models.TriggerEvent,
		Enabled:     &enabled,
	})
	if err != nil {
		return nil, err
	}
	var matched []*Automation
	for _, a := range all {
		if a.GetTriggerConfig().Event == event {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// ClaimAutomation takes the run claim on an automation with a single
// conditional UPDATE. It returns false when another holder has a live claim or,
// with requireDue, when the automation is no longer an enabled due schedule.
func ClaimAutomation(ctx *contextx.Context, id, token string, now, until time.Time, requireDue bool) (bool, error) {
	q := GetDB(ctx).Model(&models.Automation{}).
		Where("id = ?", id).
		Where("claimed_until IS NULL OR claimed_until <= ?", now)
	if requireDue {
		q = q.Where("enabled = ? AND trigger_type = ?", true, models.TriggerSchedule).
			Where("next_run_at IS NOT NULL AND next_run_at <= ?", now)
	}
	result := q.UpdateColumns(map[string]interface{}{
		"claimed_until": until,
		"claim_token":   token,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseAutomation drops the claim identified by token and stores the run
// bookkeeping. It is a no-op when the claim was lost. nextRunAt is computed
// from an earlier read, so a row disabled since then is cleared again in the
// same transaction.
func ReleaseAutomation(ctx *contextx.Context, id, token string, lastRunAt time.Time, nextRunAt *time.Time) (bool, error) {
	released := false
	err := Transaction(ctx, func(subCtx *contextx.Context) error {
		result := GetDB(subCtx).Model(&models.Automation{}).
			Where("id = ? AND claim_token = ?", id, token).
			UpdateColumns(map[string]interface{}{
				"claimed_until": nil,
				"claim_token":   "",
				"last_run_at":   lastRunAt,
				"next_run_at":   nextRunAt,
			})
		if result.Error != nil {
			return result.Error
		}
		released = result.RowsAffected == 1
		if !released || nextRunAt == nil {
			return nil
		}
		return GetDB(subCtx).Model(&models.Automation{}).
			Where("id = ? AND (enabled = ? OR trigger_type <> ?)", id, false, models.TriggerSchedule).
			UpdateColumn("next_run_at", nil).Error
	})
	if err != nil {
		return false, err
	}
	return released, nil
}
