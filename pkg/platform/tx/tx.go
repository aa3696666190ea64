// Package tx passes an open *sql.Tx through context so stores can enlist in a
// caller's transaction without changing their signatures.
//
// The risk store opens a transaction inside Execute and stashes it before
// running the mutation callback; when the callback emits a compliance event,
// the audit store finds the same transaction and the event row commits or
// rolls back with the risk row.
package tx

import (
	"context"
	"database/sql"
)

type txKey struct{}

// WithTx returns a context carrying tx. A nil tx leaves ctx untouched.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// From reports the transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
