package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TriggerSchedule = "schedule"
	TriggerEvent    = "event"

	OnFailureAbort    = "abort"
	OnFailureContinue = "continue"
)

// TriggerConfig is tagged by Schedule for schedule triggers and by Event for
// event triggers.
type TriggerConfig struct {
	Schedule   string `json:"schedule,omitempty"`
	Time       string `json:"time,omitempty"`
	Minute     *int   `json:"minute,omitempty"`
	Weekday    string `json:"weekday,omitempty"`
	DayOfMonth int    `json:"dayOfMonth,omitempty"`
	Cron       string `json:"cron,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	Event      string `json:"event,omitempty"`
}

// Condition is a node of a predicate tree. Type is one of all, any, not or
// compare; only compare nodes use Field, Op and Value.
type Condition struct {
	Type       string      `json:"type"`
	Conditions []Condition `json:"conditions,omitempty"`
	Field      string      `json:"field,omitempty"`
	Op         string      `json:"op,omitempty"`
	Value      interface{} `json:"value,omitempty"`
}

// ConditionSet selects the candidate items of a run: the tenant records of
// kind Record matching Where. An empty Record means the automation has no data
// condition.
type ConditionSet struct {
	Record string     `json:"record,omitempty"`
	Where  *Condition `json:"where,omitempty"`
}

// ActionSpec is tagged by Action. Parameters are decoded into the handler's
// typed parameter struct; unknown actions keep the raw map.
type ActionSpec struct {
	Action     string                 `json:"action"`
	Name       string                 `json:"name,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	ForEach    bool                   `json:"forEach,omitempty"`
}

// StepName is the key under which the action's output is exposed to later actions.
func (a ActionSpec) StepName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Action
}

type Automation struct {
	ID            string                            `gorm:"primaryKey;size:64" json:"id"`
	TenantID      string                            `gorm:"index;size:64;not null" json:"tenantId"`
	Name          string                            `gorm:"size:255" json:"name"`
	Description   string                            `gorm:"type:text" json:"description"`
	Category      string                            `gorm:"index;size:64" json:"category"`
	TriggerType   string                            `gorm:"size:32;index" json:"triggerType"`
	TriggerConfig datatypes.JSONType[TriggerConfig] `gorm:"type:text" json:"triggerConfig"`
	Conditions    datatypes.JSONType[ConditionSet]  `gorm:"type:text" json:"conditions"`
	Actions       datatypes.JSONType[[]ActionSpec]  `gorm:"type:text" json:"actions"`
	OnFailure     string                            `gorm:"size:16;default:abort" json:"onFailure"`
	Enabled       bool                              `gorm:"index" json:"enabled"`
	IsDefault     bool                              `json:"isDefault"`
	SeedKey       string                            `gorm:"size:128;index" json:"seedKey"`
	NextRunAt     *time.Time                        `gorm:"index" json:"nextRunAt"`
	LastRunAt     *time.Time                        `json:"lastRunAt"`
	ClaimedUntil  *time.Time                        `json:"claimedUntil"`
	ClaimToken    string                            `gorm:"size:64" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
