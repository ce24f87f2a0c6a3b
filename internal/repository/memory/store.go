// Package memory keeps every repository port in process memory. It backs the
// "memory" storage driver and the service tests.
package memory

import (
	"context"

	"github.com/NordCoder/Pricewatch/internal/repository/postgres"
)

// ErrNotFound is shared with the postgres driver so callers check one sentinel.
var ErrNotFound = postgres.ErrNotFound

var _ postgres.Transactor = Transactor{}

// Transactor runs the function in place. Writes are not rolled back on error.
type Transactor struct{}

func (Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
