package auth

import (
	"context"
	"slices"
	"time"

	"github.com/roach88/roomlab/internal/kv"
	"github.com/roach88/roomlab/internal/ledger"
)

// PurchaseHistory returns the signed-in account's purchases, newest first.
func (s *Service) PurchaseHistory(ctx context.Context) ([]ledger.TokenPurchaseRecord, error) {
	return readHistory(ctx, s, "purchase_history", s.opts.keys.Purchases,
		func(r ledger.TokenPurchaseRecord) (string, time.Time) { return r.AccountID, r.PurchasedAt })
}

// ConsumptionHistory returns the signed-in account's spent tokens, newest first.
func (s *Service) ConsumptionHistory(ctx context.Context) ([]ledger.TokenConsumptionRecord, error) {
	return readHistory(ctx, s, "consumption_history", s.opts.keys.Consumptions,
		func(r ledger.TokenConsumptionRecord) (string, time.Time) { return r.AccountID, r.ConsumedAt })
}

func readHistory[T any](ctx context.Context, s *Service, op, key string, meta func(T) (string, time.Time)) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []T
	err := s.store.View(ctx, func(r kv.Reader) error {
		accounts, i, err := s.current(ctx, op, r)
		if err != nil {
			return err
		}
		owner := accounts[i].ID

		raw, ok, err := r.Get(ctx, key)
		if err != nil {
			return err
		}
		all, err := ledger.DecodeList[T](raw, ok)
		if err != nil {
			return err
		}
		for _, rec := range all {
			if id, _ := meta(rec); id == owner {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	slices.SortStableFunc(out, func(a, b T) int {
		_, ta := meta(a)
		_, tb := meta(b)
		return tb.Compare(ta)
	})
	return out, nil
}
