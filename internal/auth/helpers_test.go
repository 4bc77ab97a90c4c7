package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/roomlab/internal/kv"
	"github.com/roach88/roomlab/internal/ledger"
	"github.com/roach88/roomlab/internal/testutil"
)

// newTestService creates a Service with deterministic clock and IDs and the
// cheapest bcrypt cost.
func newTestService(t *testing.T, store kv.Store, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequenceIDGenerator()),
		WithBcryptCost(bcrypt.MinCost),
	}
	return New(store, append(base, opts...)...)
}

// storedAccounts reads the ledger straight from the store.
func storedAccounts(t *testing.T, store kv.Store) ledger.Accounts {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), DefaultKeys().Accounts)
	require.NoError(t, err)
	list, err := ledger.DecodeList[ledger.Account](raw, ok)
	require.NoError(t, err)
	return list
}

func storedAccount(t *testing.T, store kv.Store, id string) ledger.Account {
	t.Helper()
	accounts := storedAccounts(t, store)
	i, ok := accounts.ByID(id)
	require.True(t, ok, "account %s not in ledger", id)
	return accounts[i]
}

func storedPurchases(t *testing.T, store kv.Store) []ledger.TokenPurchaseRecord {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), DefaultKeys().Purchases)
	require.NoError(t, err)
	list, err := ledger.DecodeList[ledger.TokenPurchaseRecord](raw, ok)
	require.NoError(t, err)
	return list
}

func storedConsumptions(t *testing.T, store kv.Store) []ledger.TokenConsumptionRecord {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), DefaultKeys().Consumptions)
	require.NoError(t, err)
	list, err := ledger.DecodeList[ledger.TokenConsumptionRecord](raw, ok)
	require.NoError(t, err)
	return list
}

var errInjected = errors.New("injected store failure")

// faultyStore wraps a Memory store and fails any write to failKey, which
// aborts the surrounding transaction.
type faultyStore struct {
	*kv.Memory
	failKey string
	failAll bool
}

func (f *faultyStore) Update(ctx context.Context, fn func(kv.Txn) error) error {
	if f.failAll {
		return errInjected
	}
	return f.Memory.Update(ctx, func(tx kv.Txn) error {
		return fn(&faultyTxn{Txn: tx, failKey: f.failKey})
	})
}

func (f *faultyStore) View(ctx context.Context, fn func(kv.Reader) error) error {
	if f.failAll {
		return errInjected
	}
	return f.Memory.View(ctx, fn)
}

type faultyTxn struct {
	kv.Txn
	failKey string
}

func (t *faultyTxn) Set(ctx context.Context, key, value string) error {
	if key == t.failKey {
		return errInjected
	}
	return t.Txn.Set(ctx, key, value)
}

func (t *faultyTxn) Remove(ctx context.Context, key string) error {
	if key == t.failKey {
		return errInjected
	}
	return t.Txn.Remove(ctx, key)
}
