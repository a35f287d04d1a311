package objects

import (
	"time"

	"autoflow/app/db/models"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const PermissionWildcard = "*"

type ServiceAccount struct {
	*models.ServiceAccount
	ContextObject
	PersistentObject
}

func (s *ServiceAccount) GetPermissions() SliceString {
	return SliceString(s.Permissions.Data())
}

func (s *ServiceAccount) SetPermissions(perms []string) {
	s.Permissions = datatypes.NewJSONType(perms)
}

func (s *ServiceAccount) BoundTenantID() string {
	if s.TenantID == nil {
		return ""
	}
	return *s.TenantID
}

func (s *ServiceAccount) Save(ctx *contextx.Context) error {
	now := time.Now().UTC()
	if !s.IsCreated() {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if err := s.GetDB(ctx).Save(s.ServiceAccount).Error; err != nil {
		log.Errorf(ctx, "save service account %s failed, error: %s", s.ID, err.Error())
		return err
	}
	s.SetContext(ctx)
	s.SetCreated()
	return nil
}

func (s *ServiceAccount) Update(ctx *contextx.Context, fields ...string) error {
	s.UpdatedAt = time.Now().UTC()
	fields = append(fields, "UpdatedAt")
	return s.GetDB(ctx).Model(s.ServiceAccount).Select(fields).Updates(s.ServiceAccount).Error
}

func NewServiceAccount() *ServiceAccount {
	return &ServiceAccount{ServiceAccount: &models.ServiceAccount{Active: true}}
}

func NewServiceAccountFromDB(ctx *contextx.Context, m *models.ServiceAccount) *ServiceAccount {
	if m == nil {
		return nil
	}
	s := &ServiceAccount{ServiceAccount: m}
	s.SetContext(ctx)
	s.SetCreated()
	return s
}

func QueryServiceAccountByID(ctx *contextx.Context, id string) (*ServiceAccount, error) {
	m := &models.ServiceAccount{}
	if err := GetDB(ctx).Where("id = ?", id).First(m).Error; err != nil {
		return nil, notFound(err, "service account", id)
	}
	return NewServiceAccountFromDB(ctx, m), nil
}

func QueryServiceAccountByPrefix(ctx *contextx.Context, prefix string) (*ServiceAccount, error) {
	m := &models.ServiceAccount{}
	if err := GetDB(ctx).Where("key_prefix = ?", prefix).First(m).Error; err != nil {
		return nil, notFound(err, "service account", prefix)
	}
	return NewServiceAccountFromDB(ctx, m), nil
}

// ConsumeServiceAccountCall records one authenticated call in a single
// conditional UPDATE: the lifetime counter and last-used time always move, the
// window counter restarts at 1 when the window expired and otherwise grows by
// one, opening a new window that ends at nextReset. It returns false, writing
// nothing, when the account is inactive or its window is exhausted.
//
// Columns are assigned in key order, so window_count is computed before
// window_reset_at moves on dialects that evaluate SET left to right.
func ConsumeServiceAccountCall(ctx *contextx.Context, id string, now, nextReset time.Time) (bool, error) {
	result := GetDB(ctx).Model(&models.ServiceAccount{}).
		Where("id = ? AND active = ?", id, true).
		Where("rate_limit <= 0 OR window_reset_at IS NULL OR window_reset_at <= ? OR window_count < rate_limit", now).
		UpdateColumns(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
			"window_count": gorm.Expr(
				"CASE WHEN window_reset_at IS NULL OR window_reset_at <= ? THEN 1 ELSE window_count + 1 END", now),
			"window_reset_at": gorm.Expr(
				"CASE WHEN window_reset_at IS NULL OR window_reset_at <= ? THEN ? ELSE window_reset_at END",
				now, nextReset),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
