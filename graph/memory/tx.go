package memory

import (
	"context"
	"fmt"

	"lattice.dev/lattice/graph"
)

type txKey struct{}

// txState is the undo log of one open transaction. Mutations apply to
// shared state immediately and record their inverse here, so rollback
// restores the prior state but concurrent readers see intermediate
// writes. A transaction belongs to the goroutine that began it.
type txState struct {
	undo []func()
	done bool
}

func (st *txState) active() bool {
	return st != nil && !st.done
}

func (st *txState) record(undo func()) {
	st.undo = append(st.undo, undo)
}

func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// Begin opens an undo-log transaction carried by the returned context.
func (e *Engine) Begin(ctx context.Context) (context.Context, error) {
	if e.InTx(ctx) {
		return ctx, fmt.Errorf("%w: transaction already open", graph.ErrEngine)
	}
	return context.WithValue(ctx, txKey{}, &txState{}), nil
}

// Commit discards the undo log, keeping every mutation in place.
func (e *Engine) Commit(ctx context.Context) error {
	st := txFrom(ctx)
	if !st.active() {
		return fmt.Errorf("%w: no open transaction", graph.ErrEngine)
	}
	st.done = true
	st.undo = nil
	return nil
}

// Rollback replays the undo log in reverse, restoring the state from
// before Begin.
func (e *Engine) Rollback(ctx context.Context) error {
	st := txFrom(ctx)
	if !st.active() {
		return fmt.Errorf("%w: no open transaction", graph.ErrEngine)
	}
	st.done = true

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(st.undo) - 1; i >= 0; i-- {
		st.undo[i]()
	}
	st.undo = nil
	return nil
}

// InTx reports whether ctx carries an open transaction.
func (e *Engine) InTx(ctx context.Context) bool {
	return txFrom(ctx).active()
}
