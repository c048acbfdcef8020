package sampler

import (
	"context"
	"time"

	"github.com/igefined/orderbook-sampler/internal/domain"
)

// OrderBooks fetches the order book and reduces it to a Snapshot. Books
// without a venue timestamp are stamped with the local capture time.
func OrderBooks(ctx context.Context, p domain.Provider, symbol string) ([]domain.Snapshot, error) {
	ob, err := p.FetchOrderBook(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if ob.Timestamp.IsZero() {
		ob.Timestamp = time.Now().UTC()
	}

	snapshot, err := domain.NewSnapshot(ob)
	if err != nil {
		return nil, err
	}
	return []domain.Snapshot{snapshot}, nil
}

// PublicTrades fetches the recent public trades. Each trade becomes its own
// record keyed by its execution time.
func PublicTrades(ctx context.Context, p domain.Provider, symbol string) ([]domain.Trade, error) {
	trades, err := p.FetchTrades(ctx, symbol)
	if err != nil {
		return nil, err
	}

	captured := time.Now().UTC()
	for i := range trades {
		if trades[i].Timestamp.IsZero() {
			trades[i].Timestamp = captured
		}
	}
	return trades, nil
}
