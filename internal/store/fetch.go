package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/thesheepcat/k-transaction-processor/internal/perrors"
)

// Transaction is the raw row C5 hands to the worker: an id, a possibly-nil
// payload, and a possibly-nil block time.
type Transaction struct {
	ID        []byte
	Payload   []byte
	BlockTime *int64
}

// BlockTimeOrZero substitutes 0 for a NULL block_time, per §4.4's numeric
// semantics: the pipeline never synthesizes a value, it substitutes a fixed
// sentinel so downstream ordering stays deterministic.
func (t *Transaction) BlockTimeOrZero() int64 {
	if t.BlockTime == nil {
		return 0
	}
	return *t.BlockTime
}

// FetchTransaction loads the raw transaction row for a hex-encoded id. It
// returns ErrNotFound if no such row exists, and a ClassTransient error for
// any other store failure.
func (s *Store) FetchTransaction(ctx context.Context, idHex string) (*Transaction, error) {
	id, err := hex.DecodeString(idHex)
	if err != nil {
		return nil, perrors.Wrap(perrors.ClassData, err, "decode transaction id")
	}

	var tx Transaction
	row := s.db.QueryRowContext(ctx,
		`SELECT transaction_id, payload, block_time FROM transactions WHERE transaction_id = $1`,
		id,
	)
	if err := row.Scan(&tx.ID, &tx.Payload, &tx.BlockTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, perrors.Wrap(perrors.ClassTransient, err, "fetch transaction")
	}
	return &tx, nil
}
