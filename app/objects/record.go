package objects

import (
	"strings"
	"time"

	"autoflow/app/db/models"
	"autoflow/pkg/contextx"
	"autoflow/pkg/gormx"

	"github.com/google/uuid"
)

type Record struct {
	*models.Record
	ContextObject
	PersistentObject
}

// AsMap flattens the record for condition evaluation and templating. Data
// entries sit next to the columns; a column wins a name clash.
func (r *Record) AsMap() map[string]interface{} {
	m := map[string]interface{}{}
	for k, v := range r.Data {
		m[k] = v
	}
	m["id"] = r.ID
	m["kind"] = r.Kind
	m["status"] = r.Status
	m["title"] = r.Title
	m["amount"] = r.Amount
	m["createdAt"] = r.CreatedAt
	m["updatedAt"] = r.UpdatedAt
	m["data"] = map[string]interface{}(r.Data)
	return m
}

func (r *Record) Save(ctx *contextx.Context) error {
	now := time.Now().UTC()
	if !r.IsCreated() {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
	}
	r.UpdatedAt = now
	if r.Data == nil {
		r.Data = gormx.MapJson{}
	}
	if err := r.GetDB(ctx).Save(r.Record).Error; err != nil {
		return err
	}
	r.SetContext(ctx)
	r.SetCreated()
	return nil
}

func (r *Record) Update(ctx *contextx.Context, fields ...string) error {
	r.UpdatedAt = time.Now().UTC()
	fields = append(fields, "UpdatedAt")
	return r.GetDB(ctx).Model(r.Record).Select(fields).Updates(r.Record).Error
}

func NewRecord(tenantID, kind string) *Record {
	return &Record{Record: &models.Record{
		TenantID: tenantID,
		Kind:     kind,
		Data:     gormx.MapJson{},
	}}
}

func NewRecordFromDB(ctx *contextx.Context, m *models.Record) *Record {
	if m == nil {
		return nil
	}
	r := &Record{Record: m}
	r.SetContext(ctx)
	r.SetCreated()
	return r
}

func QueryRecordByID(ctx *contextx.Context, tenantID, id string) (*Record, error) {
	m := &models.Record{}
	err := GetDB(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(m).Error
	if err != nil {
		return nil, notFound(err, "record", id)
	}
	return NewRecordFromDB(ctx, m), nil
}

type RecordFilter struct {
	TenantID string
	Kind     string
	Status   string
	// Query matches title case-insensitively.
	Query string
	Limit int
}

// QueryRecords lists a tenant's records. TenantID is mandatory: records never
// leak across tenants.
func QueryRecords(ctx *contextx.Context, filter RecordFilter) ([]*Record, error) {
	var ms []*models.Record
	q := GetDB(ctx).Where("tenant_id = ?", filter.TenantID)
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Query != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(filter.Query)+"%")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Order("created_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(ms))
	for _, m := range ms {
		records = append(records, NewRecordFromDB(ctx, m))
	}
	return records, nil
}

func CountRecords(ctx *contextx.Context, tenantID, kind string) (int64, error) {
	var n int64
	q := GetDB(ctx).Model(&models.Record{}).Where("tenant_id = ?", tenantID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	err := q.Count(&n).Error
	return n, err
}
