package cmd

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"":                              "memory",
		"memory://":                     "memory",
		"postgres://u:p@localhost/db":   "postgres",
		"postgresql://u:p@localhost/db": "postgresql",
		"sqlite":                        "sqlite",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewStorage_UnsupportedProvider(t *testing.T) {
	_, err := NewStorage(context.Background(), testLogger(), "mysql://localhost/db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported persistence provider: mysql")
}

func TestStorage_SeedWallets(t *testing.T) {
	ctx := context.Background()

	storage, err := NewStorage(ctx, testLogger(), "memory://")
	require.NoError(t, err)
	assert.True(t, storage.InMemory)

	require.NoError(t, storage.SeedWallets(ctx, testLogger(), []string{"alice=500000", " bob = 2000 ", "alice=100000"}))

	alice, err := storage.Ledger.Balance(ctx, storage.DB, "alice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(600_000).Equal(alice), "got %s", alice)

	bob, err := storage.Ledger.Balance(ctx, storage.DB, "bob")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2_000).Equal(bob), "got %s", bob)

	require.NoError(t, storage.SeedWallets(ctx, testLogger(), nil))
}

func TestStorage_SeedWallets_Invalid(t *testing.T) {
	ctx := context.Background()

	storage, err := NewStorage(ctx, testLogger(), "memory://")
	require.NoError(t, err)

	for _, seed := range []string{"alice", "=100", "alice=", "alice=abc", "alice=-5", "alice=0"} {
		assert.Error(t, storage.SeedWallets(ctx, testLogger(), []string{seed}), seed)
	}
}

func TestStorage_SeedWallets_RefusedOutsideMemory(t *testing.T) {
	storage := &Storage{}

	err := storage.SeedWallets(context.Background(), testLogger(), []string{"alice=100"})
	assert.ErrorIs(t, err, ErrSeedNotAllowed)
}
