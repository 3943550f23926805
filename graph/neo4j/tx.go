package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"lattice.dev/lattice/graph"
)

type txKey struct{}

// engineTx pairs an explicit transaction with the session that owns it.
// The session must outlive the transaction and closes when it settles.
type engineTx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

func txFrom(ctx context.Context) *engineTx {
	t, _ := ctx.Value(txKey{}).(*engineTx)
	return t
}

// write runs work inside the context's explicit transaction when one is
// open, and inside a managed write transaction on a throwaway session
// otherwise.
func (e *Engine) write(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	if t := txFrom(ctx); t != nil {
		return work(t.tx)
	}
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.database})
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, work)
}

// read is the read-routed twin of write. Reads inside an open explicit
// transaction stay on it so they observe the transaction's writes.
func (e *Engine) read(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	if t := txFrom(ctx); t != nil {
		return work(t.tx)
	}
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: e.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, work)
}

// Begin opens a session-backed explicit transaction carried by the
// returned context.
func (e *Engine) Begin(ctx context.Context) (context.Context, error) {
	if e.InTx(ctx) {
		return ctx, fmt.Errorf("%w: transaction already open", graph.ErrEngine)
	}

	session := e.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.database})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		session.Close(ctx)
		return ctx, fmt.Errorf("beginning transaction: %w", engineErr(err))
	}
	return context.WithValue(ctx, txKey{}, &engineTx{session: session, tx: tx}), nil
}

// Commit settles the transaction carried by ctx and releases its session.
func (e *Engine) Commit(ctx context.Context) error {
	t := txFrom(ctx)
	if t == nil {
		return fmt.Errorf("%w: no open transaction", graph.ErrEngine)
	}
	defer t.session.Close(ctx)
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", engineErr(err))
	}
	return nil
}

// Rollback discards the transaction carried by ctx and releases its
// session.
func (e *Engine) Rollback(ctx context.Context) error {
	t := txFrom(ctx)
	if t == nil {
		return fmt.Errorf("%w: no open transaction", graph.ErrEngine)
	}
	defer t.session.Close(ctx)
	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rolling back transaction: %w", engineErr(err))
	}
	return nil
}

// InTx reports whether ctx carries an open transaction.
func (e *Engine) InTx(ctx context.Context) bool {
	return txFrom(ctx) != nil
}
