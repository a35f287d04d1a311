package models

import (
	"time"

	"gorm.io/datatypes"
)

type ServiceAccount struct {
	ID          string                       `gorm:"primaryKey;size:64" json:"id"`
	Name        string                       `gorm:"size:255" json:"name"`
	CreatedBy   string                       `gorm:"index;size:64" json:"createdBy"`
	TenantID    *string                      `gorm:"index;size:64" json:"tenantId"`
	KeyPrefix   string                       `gorm:"uniqueIndex;size:64" json:"keyPrefix"`
	KeyHash     string                       `gorm:"size:255" json:"-"`
	Active      bool                         `json:"active"`
	Permissions datatypes.JSONType[[]string] `gorm:"type:text" json:"permissions"`

	RateLimit         int        `json:"rateLimit"`
	RateWindowSeconds int        `json:"rateWindowSeconds"`
	WindowCount       int        `json:"windowCount"`
	WindowResetAt     *time.Time `json:"windowResetAt"`
	UsageCount        int64      `json:"usageCount"`
	LastUsedAt        *time.Time `json:"lastUsedAt"`
	RotatedAt         *time.Time `json:"rotatedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
