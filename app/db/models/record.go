package models

import (
	"time"

	"autoflow/pkg/gormx"
)

const (
	KindInvoice   = "invoice"
	KindQuote     = "quote"
	KindTimeEntry = "time_entry"
	KindContact   = "contact"
)

// Record is a generic tenant owned business record (invoice, quote, time entry,
// contact...). Kind specific attributes live in Data.
type Record struct {
	ID       string        `gorm:"primaryKey;size:64" json:"id"`
	TenantID string        `gorm:"index:idx_records_tenant_kind;size:64;not null" json:"tenantId"`
	Kind     string        `gorm:"index:idx_records_tenant_kind;size:32;not null" json:"kind"`
	Status   string        `gorm:"index;size:32" json:"status"`
	Title    string        `gorm:"size:255" json:"title"`
	Amount   float64       `json:"amount"`
	Data     gormx.MapJson `gorm:"type:text" json:"data"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
