package sampler

import (
	"time"
)

// NumericRow is one record rendered as a fixed-order numeric tuple.
type NumericRow struct {
	Timestamp time.Time `json:"timestamp"`
	Values    []float64 `json:"values"`
}

// Raw returns every exchange's records as structured values. Exchanges
// without data map to an empty, non-nil slice.
func Raw[R Record](store *Store[R]) map[string][]R {
	out := make(map[string][]R, len(store.series))
	for _, name := range store.exchanges {
		out[name] = store.Series(name).Records()
	}
	return out
}

// Numeric returns every exchange's records as NumericRows in arrival order.
func Numeric[R Record](store *Store[R]) map[string][]NumericRow {
	out := make(map[string][]NumericRow, len(store.series))
	for _, name := range store.exchanges {
		records := store.Series(name).Records()
		rows := make([]NumericRow, 0, len(records))
		for _, r := range records {
			rows = append(rows, NumericRow{Timestamp: r.Time(), Values: r.Vector()})
		}
		out[name] = rows
	}
	return out
}
