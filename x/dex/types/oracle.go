package types

import (
	"cosmossdk.io/math"
)

// Observation is one ring-buffer slot of a pool's price oracle.
// CumulativePrice is the time integral of the spot price (B per A) up to
// Timestamp.
type Observation struct {
	Timestamp       int64          `json:"timestamp" yaml:"timestamp"`
	CumulativePrice math.LegacyDec `json:"cumulative_price" yaml:"cumulative_price"`
}

// OracleState is the ring-buffer header of a pool's oracle.
type OracleState struct {
	// Index is the slot of the newest observation.
	Index uint32 `json:"index" yaml:"index"`
	// Cardinality is the number of slots in use; CardinalityNext the capacity
	// the buffer grows to once Index wraps. Both only grow.
	Cardinality     uint32         `json:"cardinality" yaml:"cardinality"`
	CardinalityNext uint32         `json:"cardinality_next" yaml:"cardinality_next"`
	LastPrice       math.LegacyDec `json:"last_price" yaml:"last_price"`
}

// Validate performs stateless validation.
func (s OracleState) Validate() error {
	if s.Cardinality == 0 {
		return ErrInvalidCardinality.Wrap("cardinality cannot be zero")
	}
	if s.CardinalityNext < s.Cardinality {
		return ErrInvalidCardinality.Wrapf("next cardinality %d below cardinality %d", s.CardinalityNext, s.Cardinality)
	}
	if s.Index >= s.Cardinality {
		return ErrInvalidCardinality.Wrapf("index %d out of range %d", s.Index, s.Cardinality)
	}
	if s.LastPrice.IsNil() || s.LastPrice.IsNegative() {
		return ErrInvalidCardinality.Wrap("last price must be non-negative")
	}
	return nil
}

// PoolOracle bundles a pool's oracle header with its observations, oldest
// first. Used by genesis and queries.
type PoolOracle struct {
	PoolId       uint64        `json:"pool_id" yaml:"pool_id"`
	State        OracleState   `json:"state" yaml:"state"`
	Observations []Observation `json:"observations" yaml:"observations"`
}
