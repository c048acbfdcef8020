package sampler

import (
	"fmt"
	"time"

	"github.com/igefined/orderbook-sampler/internal/config"
	"github.com/igefined/orderbook-sampler/internal/domain"
)

// DefaultElapsed is the run budget when no other stop criteria is given.
const DefaultElapsed = 60 * time.Second

type StopKind int

const (
	StopAfterElapsed StopKind = iota
	StopAtMinCount
	StopAtTime
)

// StopCriteria decides when every poller of a run should stop. Exactly one
// variant is active, selected by Kind.
type StopCriteria struct {
	Kind     StopKind
	MinCount int
	Target   time.Time
	Elapsed  time.Duration
}

func MinCount(n int) StopCriteria {
	return StopCriteria{Kind: StopAtMinCount, MinCount: n}
}

func UntilTime(t time.Time) StopCriteria {
	return StopCriteria{Kind: StopAtTime, Target: t}
}

// AfterElapsed stops once d has passed since the run started. A zero d
// means DefaultElapsed.
func AfterElapsed(d time.Duration) StopCriteria {
	return StopCriteria{Kind: StopAfterElapsed, Elapsed: d}
}

// CriteriaFromConfig picks min_count first, then target_time, then elapsed.
func CriteriaFromConfig(cfg config.StopConfig) (StopCriteria, error) {
	switch {
	case cfg.MinCount > 0:
		return MinCount(cfg.MinCount), nil
	case cfg.TargetTime != "":
		t, err := time.Parse(time.RFC3339, cfg.TargetTime)
		if err != nil {
			return StopCriteria{}, &domain.InvalidConfigurationError{Reason: fmt.Sprintf("stop target_time: %v", err)}
		}
		return UntilTime(t), nil
	default:
		return AfterElapsed(cfg.Elapsed), nil
	}
}

func (c StopCriteria) Validate() error {
	switch c.Kind {
	case StopAtMinCount:
		if c.MinCount <= 0 {
			return &domain.InvalidConfigurationError{Reason: "min count must be positive"}
		}
	case StopAtTime:
		if c.Target.IsZero() {
			return &domain.InvalidConfigurationError{Reason: "target timestamp is required"}
		}
	case StopAfterElapsed:
		if c.Elapsed < 0 {
			return &domain.InvalidConfigurationError{Reason: "elapsed budget must not be negative"}
		}
	default:
		return &domain.InvalidConfigurationError{Reason: fmt.Sprintf("unknown stop criteria kind %d", c.Kind)}
	}
	return nil
}

// ShouldStop is a pure predicate. sizes holds the series size of every
// exchange that is still expected to produce data.
func (c StopCriteria) ShouldStop(elapsed time.Duration, sizes map[string]int, now time.Time) bool {
	switch c.Kind {
	case StopAtMinCount:
		for _, n := range sizes {
			if n < c.MinCount {
				return false
			}
		}
		return true
	case StopAtTime:
		return !now.Before(c.Target)
	default:
		budget := c.Elapsed
		if budget == 0 {
			budget = DefaultElapsed
		}
		return elapsed >= budget
	}
}

func (c StopCriteria) String() string {
	switch c.Kind {
	case StopAtMinCount:
		return fmt.Sprintf("min_count=%d", c.MinCount)
	case StopAtTime:
		return "target_timestamp=" + c.Target.Format(time.RFC3339)
	default:
		budget := c.Elapsed
		if budget == 0 {
			budget = DefaultElapsed
		}
		return "elapsed=" + budget.String()
	}
}
