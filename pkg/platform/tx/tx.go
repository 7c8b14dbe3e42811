// Package tx carries a *sql.Tx through context so stores can join a unit of
// work opened further up the call stack.
package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type key struct{}

// From returns the transaction opened by Run, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(key{}).(*sql.Tx)
	return t, ok
}

// Run executes fn inside a transaction on db. A transaction already present in
// ctx is reused, so nested calls commit once at the outermost level.
func Run(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) (err error) {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	t, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = t.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := t.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()
	if err = fn(context.WithValue(ctx, key{}, t)); err != nil {
		return err
	}
	if err = t.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
