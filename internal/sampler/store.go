package sampler

import (
	"sync"
	"time"
)

// Record is a timestamped observation kept in a Series.
type Record interface {
	Time() time.Time
	Vector() []float64
	Summary() string
}

// Series holds the records of one exchange in arrival order, keyed by
// timestamp. A record whose timestamp is already present replaces the
// earlier one in place.
//
// Only the exchange's own poller writes to a Series; the lock exists so
// the supervisor can read sizes while the poller inserts.
type Series[R Record] struct {
	mu      sync.RWMutex
	index   map[int64]int
	records []R
}

func newSeries[R Record]() *Series[R] {
	return &Series[R]{index: make(map[int64]int)}
}

// Put stores r and reports whether it replaced a record with the same timestamp.
func (s *Series[R]) Put(r R) bool {
	key := r.Time().UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[key]; ok {
		s.records[i] = r
		return true
	}
	s.index[key] = len(s.records)
	s.records = append(s.records, r)
	return false
}

func (s *Series[R]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Last returns the most recently inserted record.
func (s *Series[R]) Last() (R, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		var zero R
		return zero, false
	}
	return s.records[len(s.records)-1], true
}

// Records returns a copy of the records in arrival order.
func (s *Series[R]) Records() []R {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]R, len(s.records))
	copy(out, s.records)
	return out
}

// Store maps exchange name to its Series. Every exchange gets its entry at
// construction, so lookups during and after a run never miss.
type Store[R Record] struct {
	exchanges []string
	series    map[string]*Series[R]
}

func NewStore[R Record](exchanges []string) *Store[R] {
	s := &Store[R]{
		exchanges: append([]string(nil), exchanges...),
		series:    make(map[string]*Series[R], len(exchanges)),
	}
	for _, name := range exchanges {
		s.series[name] = newSeries[R]()
	}
	return s
}

// Series returns the series for exchange, or nil if it was not requested.
func (s *Store[R]) Series(exchange string) *Series[R] {
	return s.series[exchange]
}

// Exchanges returns the exchange names in request order.
func (s *Store[R]) Exchanges() []string {
	return append([]string(nil), s.exchanges...)
}

func (s *Store[R]) Sizes() map[string]int {
	sizes := make(map[string]int, len(s.series))
	for name, series := range s.series {
		sizes[name] = series.Len()
	}
	return sizes
}

// Total returns the number of records across all exchanges.
func (s *Store[R]) Total() int {
	total := 0
	for _, series := range s.series {
		total += series.Len()
	}
	return total
}
