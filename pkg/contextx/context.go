package contextx

import (
	"context"

	"gorm.io/gorm"
)

const (
	KeyRequestID    = "requestId"
	KeyTenantID     = "tenant"
	KeyAutomationID = "automation"
	KeyRunID        = "run"
)

// Context carries the request scoped values used by logging and the
// persistence layer: an optional database handle (a transaction when running
// inside objects.Transaction) and a flat map of string keyed values.
type Context struct {
	context.Context
	dbTx *gorm.DB
	data map[string]interface{}
}

func (ctx *Context) Clone() *Context {
	newCtx := &Context{
		Context: ctx.Context,
		dbTx:    ctx.dbTx,
		data:    map[string]interface{}{},
	}
	for k, v := range ctx.data {
		newCtx.data[k] = v
	}
	return newCtx
}

// WithParent returns a copy bound to parent, keeping values and database handle.
func (ctx *Context) WithParent(parent context.Context) *Context {
	newCtx := ctx.Clone()
	newCtx.Context = parent
	return newCtx
}

func (ctx *Context) Set(name string, value interface{}) {
	ctx.data[name] = value
}

func (ctx *Context) Get(name string) (interface{}, bool) {
	v, ok := ctx.data[name]
	return v, ok
}

func (ctx *Context) GetString(name string) string {
	if v, ok := ctx.data[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetDB returns the bound database handle scoped to this context, or nil.
func (ctx *Context) GetDB() *gorm.DB {
	if ctx.dbTx == nil {
		return nil
	}
	return ctx.dbTx.WithContext(ctx.Context)
}

func (ctx *Context) SetDB(tx *gorm.DB) {
	ctx.dbTx = tx
}

func (ctx *Context) GetMap() map[string]interface{} {
	return ctx.data
}

func (ctx *Context) GetRequestID() string {
	return ctx.GetString(KeyRequestID)
}

func (ctx *Context) GetTenantID() string {
	return ctx.GetString(KeyTenantID)
}

func NewContext(db *gorm.DB) *Context {
	return &Context{
		Context: context.Background(),
		dbTx:    db,
		data:    map[string]interface{}{},
	}
}

func NewContextFrom(parent context.Context, db *gorm.DB) *Context {
	return &Context{
		Context: parent,
		dbTx:    db,
		data:    map[string]interface{}{},
	}
}

func NewContextFromMap(db *gorm.DB, data map[string]interface{}) *Context {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Context{
		Context: context.Background(),
		dbTx:    db,
		data:    data,
	}
}
