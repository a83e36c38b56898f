package config

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/fr33d0m21/pull/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const storeColumn = "store_id"

var ErrCrossStoreWrite = errors.New("row belongs to another store")

// TenantGuardPlugin keeps a store-scoped request inside its store. For
// models with a store_id column it adds "store_id = ?" to reads, updates and
// deletes, and stamps or checks store_id on inserts. Raw SQL is not scoped;
// tooling opts out with ContextKeySkipTenantScope.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	for _, err := range []error{
		cb.Query().Before("gorm:query").Register("tenant_guard:query", scopeToStore),
		cb.Row().Before("gorm:row").Register("tenant_guard:row", scopeToStore),
		cb.Update().Before("gorm:update").Register("tenant_guard:update", scopeToStore),
		cb.Delete().Before("gorm:delete").Register("tenant_guard:delete", scopeToStore),
		cb.Create().Before("gorm:create").Register("tenant_guard:create", stampStore),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// guardedStore returns the store the statement must stay in and its
// store_id field, or "" when the statement is not guarded.
func guardedStore(db *gorm.DB) (string, *schema.Field) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil || db.Statement.Schema == nil {
		return "", nil
	}
	ctx := db.Statement.Context
	if skip, _ := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); skip {
		return "", nil
	}
	storeId, _ := appctx.GetString(ctx, appctx.ContextKeyStoreId)
	if storeId == "" {
		return "", nil
	}
	field := db.Statement.Schema.LookUpField(storeColumn)
	if field == nil {
		return "", nil
	}
	return storeId, field
}

func scopeToStore(db *gorm.DB) {
	storeId, _ := guardedStore(db)
	if storeId == "" || whereMentionsStore(db.Statement.Clauses["WHERE"]) {
		return
	}
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: db.Statement.Table, Name: storeColumn}, Value: storeId},
	}})
}

// stampStore fills an empty store_id on inserted rows and refuses rows of
// another store.
func stampStore(db *gorm.DB) {
	storeId, field := guardedStore(db)
	if storeId == "" {
		return
	}
	ctx := db.Statement.Context
	rv := reflect.Indirect(db.Statement.ReflectValue)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := stampRow(ctx, field, reflect.Indirect(rv.Index(i)), storeId); err != nil {
				_ = db.AddError(err)
				return
			}
		}
	case reflect.Struct:
		if err := stampRow(ctx, field, rv, storeId); err != nil {
			_ = db.AddError(err)
		}
	}
}

func stampRow(ctx context.Context, field *schema.Field, row reflect.Value, storeId string) error {
	v, zero := field.ValueOf(ctx, row)
	if zero {
		return field.Set(ctx, row, storeId)
	}
	if s, ok := v.(string); ok && s != storeId {
		return ErrCrossStoreWrite
	}
	return nil
}

// whereMentionsStore reports an explicit store filter, so it is not doubled.
func whereMentionsStore(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	return ok && anyMentionsStore(w.Exprs)
}

func anyMentionsStore(exprs []clause.Expression) bool {
	for _, e := range exprs {
		if mentionsStore(e) {
			return true
		}
	}
	return false
}

func mentionsStore(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return isStoreColumn(v.Column)
	case clause.Neq:
		return isStoreColumn(v.Column)
	case clause.IN:
		return isStoreColumn(v.Column)
	case clause.AndConditions:
		return anyMentionsStore(v.Exprs)
	case clause.OrConditions:
		return anyMentionsStore(v.Exprs)
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), storeColumn)
	}
	return false
}

func isStoreColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, storeColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, storeColumn)
	}
	return false
}
