package objects

import (
	"time"

	"autoflow/app/db/models"
	"autoflow/pkg/contextx"

	"github.com/google/uuid"
)

type User struct {
	*models.User
	ContextObject
	PersistentObject
}

func (u *User) Save(ctx *contextx.Context) error {
	now := time.Now().UTC()
	if !u.IsCreated() {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if err := u.GetDB(ctx).Save(u.User).Error; err != nil {
		return err
	}
	u.SetContext(ctx)
	u.SetCreated()
	return nil
}

func NewUser() *User {
	return &User{User: &models.User{}}
}

func QueryUserByID(ctx *contextx.Context, id string) (*User, error) {
	m := &models.User{}
	if err := GetDB(ctx).Where("id = ?", id).First(m).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	u := &User{User: m}
	u.SetContext(ctx)
	u.SetCreated()
	return u, nil
}

func QueryUserIDs(ctx *contextx.Context) ([]string, error) {
	var ids []string
	err := GetDB(ctx).Model(&models.User{}).Order("created_at ASC").Pluck("id", &ids).Error
	return ids, err
}
