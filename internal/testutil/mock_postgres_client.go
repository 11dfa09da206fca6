package testutil

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/smartinvoice/smartinvoice/internal/postgres"
)

// MockPostgresClient satisfies postgres.IClient for services under test
// that only need transaction scoping, backed by in-memory stores.
type MockPostgresClient struct{}

func NewMockPostgresClient() postgres.IClient {
	return &MockPostgresClient{}
}

// WithTx runs the function directly; in-memory stores are their own
// consistency boundary.
func (m *MockPostgresClient) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *MockPostgresClient) TxFromContext(ctx context.Context) *sqlx.Tx {
	return nil
}

func (m *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	return nil
}
