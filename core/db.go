package core

import "context"

// Transactor runs fn inside one database transaction. The transaction travels in the context
// handed to fn, so repositories called with that context join it.
// The transaction is rolled back when fn returns an error or panics, and committed otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
