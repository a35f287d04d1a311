package objects

import (
	"time"

	"autoflow/app/db/models"
	"autoflow/pkg/contextx"

	"github.com/google/uuid"
)

type AutomationRun struct {
	*models.AutomationRun
	ContextObject
	PersistentObject
}

func (r *AutomationRun) IsFinished() bool {
	return r.FinishedAt != nil
}

func (r *AutomationRun) Create(ctx *contextx.Context) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	if err := GetDB(ctx).Create(r.AutomationRun).Error; err != nil {
		return err
	}
	r.SetContext(ctx)
	r.SetCreated()
	return nil
}

// Finish writes the terminal state only if the row is still in fromStatus.
// The returned bool is false when another writer got there first.
func (r *AutomationRun) Finish(ctx *contextx.Context, fromStatus string) (bool, error) {
	result := GetDB(ctx).Model(&models.AutomationRun{}).
		Where("id = ? AND status = ?", r.ID, fromStatus).
		UpdateColumns(map[string]interface{}{
			"status":          r.Status,
			"finished_at":     r.FinishedAt,
			"items_processed": r.ItemsProcessed,
			"error":           r.Error,
			"output":          r.Output,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func NewAutomationRun() *AutomationRun {
	return &AutomationRun{AutomationRun: &models.AutomationRun{}}
}

func NewAutomationRunFromDB(ctx *contextx.Context, m *models.AutomationRun) *AutomationRun {
	if m == nil {
		return nil
	}
	r := &AutomationRun{AutomationRun: m}
	r.SetContext(ctx)
	r.SetCreated()
	return r
}

func QueryAutomationRunByID(ctx *contextx.Context, id string) (*AutomationRun, error) {
	m := &models.AutomationRun{}
	if err := GetDB(ctx).Where("id = ?", id).First(m).Error; err != nil {
		return nil, notFound(err, "automation run", id)
	}
	return NewAutomationRunFromDB(ctx, m), nil
}

// QueryAutomationRuns returns one page of an automation's runs, newest first,
// and the total number of runs.
func QueryAutomationRuns(ctx *contextx.Context, automationID string, offset, limit int) ([]*AutomationRun, int64, error) {
	var total int64
	q := GetDB(ctx).Model(&models.AutomationRun{}).Where("automation_id = ?", automationID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []*models.AutomationRun
	err := GetDB(ctx).Where("automation_id = ?", automationID).
		Order("started_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, 0, err
	}
	runs := make([]*AutomationRun, 0, len(ms))
	for _, m := range ms {
		runs = append(runs, NewAutomationRunFromDB(ctx, m))
	}
	return runs, total, nil
}

func CountAutomationRuns(ctx *contextx.Context, automationID, status string) (int64, error) {
	var n int64
	q := GetDB(ctx).Model(&models.AutomationRun{}).Where("automation_id = ?", automationID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&n).Error
	return n, err
}

func DeleteAutomationRuns(ctx *contextx.Context, automationID string) error {
	return GetDB(ctx).Where("automation_id = ?", automationID).Delete(&models.AutomationRun{}).Error
}
