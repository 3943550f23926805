package graph

import (
	"context"
	"errors"
	"fmt"
)

// withTx runs fn inside an engine transaction. When the context already
// carries one, fn joins it and the outer owner settles it. Otherwise this
// call owns the transaction: it commits after fn returns and rolls back
// on any error, returning errors.Join(ErrTxAborted, cause) so the
// sentinel and the cause both stay matchable.
func (g *Graph) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.engine.InTx(ctx) {
		return fn(ctx)
	}

	txCtx, err := g.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(txCtx); err != nil {
		if rbErr := g.engine.Rollback(txCtx); rbErr != nil {
			return errors.Join(ErrTxAborted, err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return errors.Join(ErrTxAborted, err)
	}

	if err := g.engine.Commit(txCtx); err != nil {
		return errors.Join(ErrTxAborted, fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}
