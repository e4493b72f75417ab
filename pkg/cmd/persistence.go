package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/hesab/pkg/billing"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/dukex/hesab/pkg/persistence/memory"
	"github.com/dukex/hesab/pkg/persistence/postgresql"
	"github.com/shopspring/decimal"
)

// ErrSeedNotAllowed is returned when wallets are seeded outside memory mode.
var ErrSeedNotAllowed = errors.New("wallet seeding is only available with memory:// storage")

// Storage bundles the unit of work, the ledger that runs on its transactions
// and a querier for reads outside any run.
type Storage struct {
	Persistence persistence.Persistence
	Ledger      billing.Ledger
	DB          persistence.Querier
	InMemory    bool
}

// NewStorage picks the backend from the URL scheme: postgres:// and
// postgresql:// use PostgreSQL, memory:// or an empty URL keep everything
// in process.
func NewStorage(ctx context.Context, logger *slog.Logger, databaseURL string) (*Storage, error) {
	switch provider := parsePersistenceProvider(databaseURL); provider {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return &Storage{Persistence: p, Ledger: p.Ledger(), DB: p.DB()}, nil
	case "memory":
		logger.WarnContext(ctx, "Using in-memory persistence, balances are lost on exit")

		store := memory.NewStore()

		return &Storage{Persistence: store, Ledger: memory.NewLedger(store), DB: store.DB(), InMemory: true}, nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider: %s", provider)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	if databaseURL == "" {
		return "memory"
	}

	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return databaseURL
	}

	return provider
}

// SeedWallets credits opening balances given as "user=amount" in rials. There
// is no deposit workflow, so this is how a memory store gets funded.
func (s *Storage) SeedWallets(ctx context.Context, logger *slog.Logger, seeds []string) error {
	if len(seeds) == 0 {
		return nil
	}

	if !s.InMemory {
		return ErrSeedNotAllowed
	}

	for _, seed := range seeds {
		userID, raw, ok := strings.Cut(seed, "=")
		userID = strings.TrimSpace(userID)

		if !ok || userID == "" {
			return fmt.Errorf("invalid wallet seed %q, want user=amount", seed)
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || !amount.IsPositive() {
			return fmt.Errorf("invalid wallet seed amount %q", raw)
		}

		balance, err := s.Ledger.Credit(ctx, s.DB, userID, amount)
		if err != nil {
			return fmt.Errorf("failed to seed wallet %s: %w", userID, err)
		}

		logger.InfoContext(ctx, "Seeded wallet", "user_id", userID, "balance", balance.String())
	}

	return nil
}
