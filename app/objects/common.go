package objects

import (
	"encoding/json"

	"autoflow/app/db"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"gorm.io/gorm"
)

type Table map[string]interface{}

func (t Table) Has(name string) bool {
	_, ok := t[name]
	return ok
}

func (t Table) Get(name string) interface{} {
	v, ok := t[name]
	if ok {
		return v
	}
	return nil
}

func (t Table) ToString() string {
	str, err := json.Marshal(t)
	if err != nil {
		log.Errorf(nil, "json marshal failed, error: %s", err.Error())
		return ""
	}
	return string(str)
}

func (t Table) MergeToNew(tabs ...Table) Table {
	newT := Table{}
	for k, v := range t {
		newT[k] = v
	}

	for _, tab := range tabs {
		for k, v := range tab {
			newT[k] = v
		}
	}
	return newT
}

type SliceString []string

func (s SliceString) Has(value string) bool {
	for _, v := range s {
		if v == value {
			return true
		}
	}
	return false
}

// GetDB returns the handle bound to ctx (a transaction inside Transaction), or
// the process wide connection.
func GetDB(ctx *contextx.Context) *gorm.DB {
	if ctx != nil {
		if tx := ctx.GetDB(); tx != nil {
			return tx
		}
	}
	return db.GetDBConnection()
}

type ContextObject struct {
	ctx *contextx.Context
}

func (c *ContextObject) GetContext() *contextx.Context {
	return c.ctx
}

func (c *ContextObject) SetContext(ctx *contextx.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

func (c *ContextObject) GetDB(ctx *contextx.Context) *gorm.DB {
	if ctx == nil {
		ctx = c.GetContext()
	}
	return GetDB(ctx)
}

type PersistentObject struct {
	isCreated bool
}

func (p *PersistentObject) IsCreated() bool {
	return p.isCreated
}

func (p *PersistentObject) SetCreated() {
	if !p.isCreated {
		p.isCreated = true
	}
}
