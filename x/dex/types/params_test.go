package types

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestDefaultParams_Valid(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"zero trade size", func(p *Params) { p.MaxTradeSizeBps = 0 }},
		{"trade size above 100%", func(p *Params) { p.MaxTradeSizeBps = 10_001 }},
		{"protocol share above 100%", func(p *Params) { p.ProtocolFeeShareBps = 10_001 }},
		{"zero twap deviation", func(p *Params) { p.MaxTWAPDeviationBps = 0 }},
		{"zero twap period", func(p *Params) { p.TWAPPeriodSeconds = 0 }},
		{"zero batch size", func(p *Params) { p.MaxBatchOrders = 0 }},
		{"single slot oracle", func(p *Params) { p.InitialOracleCardinality = 1 }},
		{"max cardinality below initial", func(p *Params) { p.MaxOracleCardinality = p.InitialOracleCardinality - 1 }},
		{"zero breaker threshold", func(p *Params) { p.VolumeBreaker.Threshold = math.LegacyZeroDec() }},
		{"nil breaker threshold", func(p *Params) { p.PriceBreaker.Threshold = math.LegacyDec{} }},
		{"zero breaker window", func(p *Params) { p.WithdrawalBreaker.WindowSeconds = 0 }},
		{"negative cooldown", func(p *Params) { p.VolumeBreaker.CooldownSeconds = -1 }},
		{"bad treasury", func(p *Params) { p.Treasury = "not-an-address" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			require.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}

func TestParams_BreakerConfigFor(t *testing.T) {
	p := DefaultParams()
	for _, kind := range AllBreakerKinds() {
		cfg, err := p.BreakerConfigFor(kind)
		require.NoError(t, err)
		require.True(t, cfg.Threshold.IsPositive())
	}
	_, err := p.BreakerConfigFor(BreakerKind("liquidity"))
	require.ErrorIs(t, err, ErrInvalidParams)
}
