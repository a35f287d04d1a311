package models

import (
	"time"

	"autoflow/pkg/gormx"
)

type AutomationRun struct {
	ID             string        `gorm:"primaryKey;size:64" json:"id"`
	AutomationID   string        `gorm:"index;size:64;not null" json:"automationId"`
	TenantID       string        `gorm:"index;size:64" json:"tenantId"`
	Mode           string        `gorm:"size:16" json:"mode"`
	Status         string        `gorm:"index;size:16" json:"status"`
	StartedAt      time.Time     `gorm:"index" json:"startedAt"`
	FinishedAt     *time.Time    `json:"finishedAt"`
	ItemsProcessed int           `json:"itemsProcessed"`
	Error          string        `gorm:"type:text" json:"error"`
	Output         gormx.MapJson `gorm:"type:text" json:"output"`
}
