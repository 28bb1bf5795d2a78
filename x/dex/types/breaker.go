package types

import (
	"cosmossdk.io/math"
)

// BreakerKind names one of the windowed circuit breakers.
type BreakerKind string

const (
	BreakerVolume     BreakerKind = "volume"
	BreakerPrice      BreakerKind = "price"
	BreakerWithdrawal BreakerKind = "withdrawal"
)

// AllBreakerKinds returns every breaker kind in a fixed order.
func AllBreakerKinds() []BreakerKind {
	return []BreakerKind{BreakerVolume, BreakerPrice, BreakerWithdrawal}
}

// Validate checks that the kind is known.
func (k BreakerKind) Validate() error {
	switch k {
	case BreakerVolume, BreakerPrice, BreakerWithdrawal:
		return nil
	default:
		return ErrInvalidParams.Wrapf("unknown breaker kind %q", string(k))
	}
}

// BreakerState is the accumulator of one breaker for one pool.
type BreakerState struct {
	Tripped     bool           `json:"tripped" yaml:"tripped"`
	TrippedAt   int64          `json:"tripped_at" yaml:"tripped_at"`
	WindowStart int64          `json:"window_start" yaml:"window_start"`
	WindowValue math.LegacyDec `json:"window_value" yaml:"window_value"`
}

// NewBreakerState returns a cleared breaker whose window starts at now.
func NewBreakerState(now int64) BreakerState {
	return BreakerState{
		WindowStart: now,
		WindowValue: math.LegacyZeroDec(),
	}
}

// IsActive reports whether the breaker blocks operations at now.
func (s BreakerState) IsActive(cfg BreakerConfig, now int64) bool {
	return s.Tripped && now < s.TrippedAt+cfg.CooldownSeconds
}

// PoolBreaker pairs a breaker state with its pool and kind.
type PoolBreaker struct {
	PoolId uint64       `json:"pool_id" yaml:"pool_id"`
	Kind   BreakerKind  `json:"kind" yaml:"kind"`
	State  BreakerState `json:"state" yaml:"state"`
}
