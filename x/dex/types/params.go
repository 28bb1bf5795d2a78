package types

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// BreakerConfig configures one windowed circuit breaker.
type BreakerConfig struct {
	Threshold       math.LegacyDec `json:"threshold" yaml:"threshold"`
	CooldownSeconds int64          `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	WindowSeconds   int64          `json:"window_seconds" yaml:"window_seconds"`
}

// Params defines the module parameters.
type Params struct {
	// MaxTradeSizeBps caps a single swap input as a fraction of the input reserve.
	MaxTradeSizeBps uint32 `json:"max_trade_size_bps" yaml:"max_trade_size_bps"`
	// ProtocolFeeShareBps is the share of every swap fee routed to the protocol fee ledger.
	ProtocolFeeShareBps uint32 `json:"protocol_fee_share_bps" yaml:"protocol_fee_share_bps"`

	MaxTWAPDeviationBps uint32 `json:"max_twap_deviation_bps" yaml:"max_twap_deviation_bps"`
	TWAPPeriodSeconds   int64  `json:"twap_period_seconds" yaml:"twap_period_seconds"`

	DonationToleranceBps uint32 `json:"donation_tolerance_bps" yaml:"donation_tolerance_bps"`
	MaxBatchOrders       uint32 `json:"max_batch_orders" yaml:"max_batch_orders"`

	InitialOracleCardinality uint32 `json:"initial_oracle_cardinality" yaml:"initial_oracle_cardinality"`
	MaxOracleCardinality     uint32 `json:"max_oracle_cardinality" yaml:"max_oracle_cardinality"`
	OracleGrowGasPerSlot     uint64 `json:"oracle_grow_gas_per_slot" yaml:"oracle_grow_gas_per_slot"`

	AllowMultipleFeeTiers bool `json:"allow_multiple_fee_tiers" yaml:"allow_multiple_fee_tiers"`
	EnableSameSlotGuard   bool `json:"enable_same_slot_guard" yaml:"enable_same_slot_guard"`
	EnableDonationGuard   bool `json:"enable_donation_guard" yaml:"enable_donation_guard"`
	EnableTWAPGuard       bool `json:"enable_twap_guard" yaml:"enable_twap_guard"`
	EnableCircuitBreakers bool `json:"enable_circuit_breakers" yaml:"enable_circuit_breakers"`

	VolumeBreaker     BreakerConfig `json:"volume_breaker" yaml:"volume_breaker"`
	PriceBreaker      BreakerConfig `json:"price_breaker" yaml:"price_breaker"`
	WithdrawalBreaker BreakerConfig `json:"withdrawal_breaker" yaml:"withdrawal_breaker"`

	// Treasury receives collected protocol fees and skimmed donations. Empty
	// means the fee collector module account.
	Treasury string `json:"treasury" yaml:"treasury"`
}

// DefaultParams returns a default set of parameters
func DefaultParams() Params {
	return Params{
		MaxTradeSizeBps:          1000, // 10% of reserve
		ProtocolFeeShareBps:      1000, // 10% of the swap fee
		MaxTWAPDeviationBps:      2500,
		TWAPPeriodSeconds:        600,
		DonationToleranceBps:     10,
		MaxBatchOrders:           256,
		InitialOracleCardinality: 16,
		MaxOracleCardinality:     65535,
		OracleGrowGasPerSlot:     20000,
		AllowMultipleFeeTiers:    false,
		EnableSameSlotGuard:      true,
		EnableDonationGuard:      true,
		EnableTWAPGuard:          true,
		EnableCircuitBreakers:    true,
		VolumeBreaker: BreakerConfig{
			Threshold:       math.LegacyNewDec(2), // 2x reserve A per window
			CooldownSeconds: 3600,
			WindowSeconds:   3600,
		},
		PriceBreaker: BreakerConfig{
			Threshold:       math.LegacyNewDecWithPrec(5, 1), // 50% cumulative move
			CooldownSeconds: 3600,
			WindowSeconds:   3600,
		},
		WithdrawalBreaker: BreakerConfig{
			Threshold:       math.LegacyNewDecWithPrec(5, 1), // half the pool
			CooldownSeconds: 3600,
			WindowSeconds:   3600,
		},
	}
}

// BreakerConfigFor returns the configuration of the given breaker kind.
func (p Params) BreakerConfigFor(kind BreakerKind) (BreakerConfig, error) {
	switch kind {
	case BreakerVolume:
		return p.VolumeBreaker, nil
	case BreakerPrice:
		return p.PriceBreaker, nil
	case BreakerWithdrawal:
		return p.WithdrawalBreaker, nil
	default:
		return BreakerConfig{}, ErrInvalidParams.Wrapf("unknown breaker kind %q", kind)
	}
}

// Validate validates the set of params
func (p Params) Validate() error {
	if p.MaxTradeSizeBps == 0 || int64(p.MaxTradeSizeBps) > BpsDenominator {
		return ErrInvalidParams.Wrapf("max trade size must be in (0, %d] bps: %d", BpsDenominator, p.MaxTradeSizeBps)
	}
	if int64(p.ProtocolFeeShareBps) > BpsDenominator {
		return ErrInvalidParams.Wrapf("protocol fee share cannot exceed %d bps: %d", BpsDenominator, p.ProtocolFeeShareBps)
	}
	if p.MaxTWAPDeviationBps == 0 || int64(p.MaxTWAPDeviationBps) > BpsDenominator {
		return ErrInvalidParams.Wrapf("max twap deviation must be in (0, %d] bps: %d", BpsDenominator, p.MaxTWAPDeviationBps)
	}
	if p.TWAPPeriodSeconds <= 0 {
		return ErrInvalidParams.Wrap("twap period must be positive")
	}
	if int64(p.DonationToleranceBps) > BpsDenominator {
		return ErrInvalidParams.Wrapf("donation tolerance cannot exceed %d bps", BpsDenominator)
	}
	if p.MaxBatchOrders == 0 {
		return ErrInvalidParams.Wrap("max batch orders must be positive")
	}
	if p.InitialOracleCardinality < 2 {
		return ErrInvalidParams.Wrap("initial oracle cardinality must be at least 2")
	}
	if p.MaxOracleCardinality < p.InitialOracleCardinality {
		return ErrInvalidParams.Wrapf("max oracle cardinality %d below initial %d", p.MaxOracleCardinality, p.InitialOracleCardinality)
	}

	for _, kind := range AllBreakerKinds() {
		cfg, _ := p.BreakerConfigFor(kind)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%s breaker: %w", kind, err)
		}
	}

	if p.Treasury != "" {
		if _, err := sdk.AccAddressFromBech32(p.Treasury); err != nil {
			return ErrInvalidParams.Wrapf("invalid treasury address: %v", err)
		}
	}
	return nil
}

// Validate checks a breaker configuration.
func (c BreakerConfig) Validate() error {
	if c.Threshold.IsNil() || !c.Threshold.IsPositive() {
		return ErrInvalidParams.Wrap("threshold must be positive")
	}
	if c.CooldownSeconds < 0 {
		return ErrInvalidParams.Wrap("cooldown cannot be negative")
	}
	if c.WindowSeconds <= 0 {
		return ErrInvalidParams.Wrap("window must be positive")
	}
	return nil
}
