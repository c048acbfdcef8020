// Package sink persists the frozen result of a sampling run.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Record is one stored observation. Payload is the structured record and
// is encoded as JSON by the backends.
type Record struct {
	Exchange  string    `json:"exchange"`
	Timestamp time.Time `json:"timestamp"`
	Values    []float64 `json:"values"`
	Payload   any       `json:"record"`
}

// Batch is everything one run produced.
type Batch struct {
	RunID     string
	Symbol    string
	DataType  string
	Exchanges []string
	Records   []Record
}

// ByExchange groups the batch records per exchange; every listed exchange
// has an entry even without records.
func (b *Batch) ByExchange() map[string][]Record {
	out := make(map[string][]Record, len(b.Exchanges))
	for _, name := range b.Exchanges {
		out[name] = nil
	}
	for _, r := range b.Records {
		out[r.Exchange] = append(out[r.Exchange], r)
	}
	return out
}

// Sink defines a storage backend for run results.
type Sink interface {
	Name() string
	Write(ctx context.Context, batch *Batch) error
	Close() error
}

// Null discards everything.
type Null struct{}

func (Null) Name() string { return "null" }

func (Null) Write(context.Context, *Batch) error { return nil }

func (Null) Close() error { return nil }

// Multi writes a batch to several sinks concurrently.
type Multi struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewMulti(logger *zap.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, logger: logger.Named("sink")}
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of wrapped sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Write persists batch to every sink with the caller's ctx, so one failing
// backend does not abort the others. The errors are joined.
func (m *Multi) Write(ctx context.Context, batch *Batch) error {
	var g errgroup.Group
	errs := make([]error, len(m.sinks))
	for i, s := range m.sinks {
		g.Go(func() error {
			start := time.Now()
			if err := s.Write(ctx, batch); err != nil {
				m.logger.Error("Failed to persist batch", zap.String("sink", s.Name()), zap.Error(err))
				errs[i] = fmt.Errorf("%s sink: %w", s.Name(), err)
				return nil
			}
			m.logger.Info("Batch persisted",
				zap.String("sink", s.Name()),
				zap.String("run_id", batch.RunID),
				zap.Int("records", len(batch.Records)),
				zap.Duration("execution_time", time.Since(start)))
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
