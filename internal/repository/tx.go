package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

type txKey struct{}

// Transactor runs a unit of work inside one database transaction. Repositories
// pick the transaction up from the context, so every read and conditional
// write issued through ctx inside fn commits or rolls back together.
type Transactor struct {
	db *gorm.DB
}

// NewTransactor creates a new Transactor.
func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTransaction runs fn in a transaction. Nested calls join the outer one.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or db scoped to ctx.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// Models lists every GORM model owned by the service, for dev auto-migration.
func Models() []any {
	return []any{&BookingModel{}, &PaymentModel{}, &ProofModel{}, &CustomerModel{}}
}
