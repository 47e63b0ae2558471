package config

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/stock_ledger/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const storeIdColumn = "store_id"

// StoreGuardPlugin adds `store_id = <context store>` to queries, updates and deletes on
// models with a store_id column, unless the statement already filters on store_id.
// Raw SQL is not guarded. Operator tools opt out with appctx.ContextKeySkipStoreScope.
type StoreGuardPlugin struct{}

func NewStoreGuardPlugin() *StoreGuardPlugin { return &StoreGuardPlugin{} }

func (p *StoreGuardPlugin) Name() string { return "store_guard" }

func (p *StoreGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("store_guard:query", scopeToStore); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("store_guard:update", scopeToStore); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("store_guard:delete", scopeToStore)
}

func scopeToStore(db *gorm.DB) {
	stmt := db.Statement
	if stmt == nil || stmt.Context == nil || stmt.Schema == nil {
		return
	}
	storeId, ok := contextStoreId(stmt.Context)
	if !ok || stmt.Schema.LookUpField(storeIdColumn) == nil {
		return
	}
	if filtersOnStore(stmt.Clauses["WHERE"]) {
		return
	}
	stmt.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: stmt.Table, Name: storeIdColumn}, Value: storeId},
	}})
}

func contextStoreId(ctx context.Context) (string, bool) {
	if skip, ok := appctx.GetBool(ctx, appctx.ContextKeySkipStoreScope); ok && skip {
		return "", false
	}
	storeId, ok := appctx.GetString(ctx, appctx.ContextKeyStoreId)
	return storeId, ok && storeId != ""
}

// filtersOnStore looks for store_id in the WHERE clause. Ledger queries are written as
// string conditions ("store_id = ? AND ..."); struct conditions and the guard itself produce Eq.
func filtersOnStore(c clause.Clause) bool {
	where, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range where.Exprs {
		switch v := e.(type) {
		case clause.Eq:
			if col, ok := v.Column.(clause.Column); ok && strings.EqualFold(col.Name, storeIdColumn) {
				return true
			}
			if name, ok := v.Column.(string); ok && strings.EqualFold(name, storeIdColumn) {
				return true
			}
		case clause.Expr:
			if strings.Contains(strings.ToLower(v.SQL), storeIdColumn) {
				return true
			}
		}
	}
	return false
}
