package arango

import (
	"context"
	"fmt"

	"github.com/arangodb/go-driver/v2/arangodb"

	"lattice.dev/lattice/graph"
)

type txKey struct{}

func txFrom(ctx context.Context) arangodb.Transaction {
	tx, _ := ctx.Value(txKey{}).(arangodb.Transaction)
	return tx
}

// querier is the query surface shared by a database and a stream
// transaction.
type querier interface {
	Query(ctx context.Context, query string, opts *arangodb.QueryOptions) (arangodb.Cursor, error)
}

// queryable routes a query through the context's transaction when one is
// open, and through the database otherwise.
func (e *Engine) queryable(ctx context.Context) querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return e.db
}

// Begin opens a stream transaction over every graph collection and
// stashes it in the returned context.
func (e *Engine) Begin(ctx context.Context) (context.Context, error) {
	if e.db == nil {
		return ctx, fmt.Errorf("%w: database not initialized", graph.ErrEngine)
	}
	if e.InTx(ctx) {
		return ctx, fmt.Errorf("%w: transaction already open", graph.ErrEngine)
	}

	cols := arangodb.TransactionCollections{
		Write: append([]string{nodeCollection}, e.colNames...),
	}
	tx, err := e.db.BeginTransaction(ctx, cols, nil)
	if err != nil {
		return ctx, fmt.Errorf("beginning transaction: %w", engineErr(err))
	}
	return context.WithValue(ctx, txKey{}, tx), nil
}

// Commit settles the context's stream transaction.
func (e *Engine) Commit(ctx context.Context) error {
	tx := txFrom(ctx)
	if tx == nil {
		return fmt.Errorf("%w: no open transaction", graph.ErrEngine)
	}
	if err := tx.Commit(ctx, nil); err != nil {
		return fmt.Errorf("committing transaction: %w", engineErr(err))
	}
	return nil
}

// Rollback aborts the context's stream transaction.
func (e *Engine) Rollback(ctx context.Context) error {
	tx := txFrom(ctx)
	if tx == nil {
		return fmt.Errorf("%w: no open transaction", graph.ErrEngine)
	}
	if err := tx.Abort(ctx, nil); err != nil {
		return fmt.Errorf("aborting transaction: %w", engineErr(err))
	}
	return nil
}

// InTx reports whether ctx carries an open transaction.
func (e *Engine) InTx(ctx context.Context) bool {
	return txFrom(ctx) != nil
}
