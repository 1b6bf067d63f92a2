package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dialectPostgres = "postgres"

// Base provides the shared connection handling for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// WithTx rebinds the base to tx. A nil tx keeps the current connection.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// ForUpdate returns a query that row-locks what it selects. Sqlite has no row
// locks; its writers are already serialized by immediate transactions.
func (b Base) ForUpdate(ctx context.Context) *gorm.DB {
	q := b.DB(ctx)
	if b.db.Dialector != nil && b.db.Dialector.Name() == dialectPostgres {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// IsPostgres reports whether the bound connection talks to postgres.
func (b Base) IsPostgres() bool {
	return b.db.Dialector != nil && b.db.Dialector.Name() == dialectPostgres
}
