package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"metering-service/internal/billing"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(dsn string) (*DB, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	d.Pool.Close()
}

// ReadSnapshot runs fn against a repeatable-read transaction, giving the
// reconciler one consistent view of meters, readings, tariffs and
// advances.
func (d *DB) ReadSnapshot(ctx context.Context, fn func(billing.Source) error) error {
	tx, err := d.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&snapshot{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// snapshot adapts a transaction to the billing.Source contract.
type snapshot struct {
	tx pgx.Tx
}
