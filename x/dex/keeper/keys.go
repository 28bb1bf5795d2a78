package keeper

import (
	"encoding/binary"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

var (
	// PoolKeyPrefix is the prefix for pool store keys
	PoolKeyPrefix = []byte{0x01}

	// PoolByPairKeyPrefix indexes pool IDs by canonical token pair and fee tier
	PoolByPairKeyPrefix = []byte{0x02}

	// LiquidityKeyPrefix is the prefix for liquidity share positions
	LiquidityKeyPrefix = []byte{0x03}

	// ParamsKey is the key for module parameters
	ParamsKey = []byte{0x04}

	// CircuitBreakerKeyPrefix is the prefix for per-pool breaker state keys
	CircuitBreakerKeyPrefix = []byte{0x05}

	// OracleStateKeyPrefix stores the ring-buffer header of each pool's oracle
	OracleStateKeyPrefix = []byte{0x06}

	// ObservationKeyPrefix stores oracle observations by pool and slot
	ObservationKeyPrefix = []byte{0x07}

	// ProtocolFeeKeyPrefix is the prefix for accrued protocol fees by denom
	ProtocolFeeKeyPrefix = []byte{0x08}

	// TrackedBalanceKeyPrefix is the prefix for the module's accounted balance by denom
	TrackedBalanceKeyPrefix = []byte{0x09}

	// BatchExecutorKeyPrefix is the prefix for the authorized batch executor set
	BatchExecutorKeyPrefix = []byte{0x0A}
)

// Transient store prefixes. Cleared at every block boundary.
var (
	// SameSlotKeyPrefix marks (height, pool, caller) interactions
	SameSlotKeyPrefix = []byte{0x01}
)

func poolIDBytes(poolID uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, poolID)
	return bz
}

// PoolKey returns the store key for a pool by ID
func PoolKey(poolID uint64) []byte {
	return append(append([]byte{}, PoolKeyPrefix...), poolIDBytes(poolID)...)
}

// PoolByPairPrefix returns the index prefix shared by every fee tier of a pair
func PoolByPairPrefix(tokenA, tokenB string) []byte {
	a, b := types.CanonicalPair(tokenA, tokenB)
	key := append([]byte{}, PoolByPairKeyPrefix...)
	key = append(key, []byte(a)...)
	key = append(key, 0)
	key = append(key, []byte(b)...)
	return append(key, 0)
}

// PoolByPairKey returns the index key for one pair and fee tier
func PoolByPairKey(tokenA, tokenB string, feeRateBps uint32) []byte {
	return binary.BigEndian.AppendUint32(PoolByPairPrefix(tokenA, tokenB), feeRateBps)
}

// LiquidityKey returns the store key for a liquidity position
func LiquidityKey(poolID uint64, holder sdk.AccAddress) []byte {
	key := append(LiquidityPoolPrefix(poolID), holder.Bytes()...)
	return key
}

// LiquidityPoolPrefix returns the prefix of all positions in a pool
func LiquidityPoolPrefix(poolID uint64) []byte {
	return append(append([]byte{}, LiquidityKeyPrefix...), poolIDBytes(poolID)...)
}

// CircuitBreakerKey returns the store key for a pool's breaker of the given kind
func CircuitBreakerKey(poolID uint64, kind types.BreakerKind) []byte {
	key := append(append([]byte{}, CircuitBreakerKeyPrefix...), poolIDBytes(poolID)...)
	return append(key, []byte(kind)...)
}

// OracleStateKey returns the store key for a pool's oracle header
func OracleStateKey(poolID uint64) []byte {
	return append(append([]byte{}, OracleStateKeyPrefix...), poolIDBytes(poolID)...)
}

// ObservationKey returns the store key for one oracle slot
func ObservationKey(poolID uint64, index uint32) []byte {
	key := append(append([]byte{}, ObservationKeyPrefix...), poolIDBytes(poolID)...)
	return binary.BigEndian.AppendUint32(key, index)
}

// ProtocolFeeKey returns the store key for accrued protocol fees of a denom
func ProtocolFeeKey(denom string) []byte {
	return append(append([]byte{}, ProtocolFeeKeyPrefix...), []byte(denom)...)
}

// TrackedBalanceKey returns the store key for the accounted balance of a denom
func TrackedBalanceKey(denom string) []byte {
	return append(append([]byte{}, TrackedBalanceKeyPrefix...), []byte(denom)...)
}

// BatchExecutorKey returns the store key for an authorized executor
func BatchExecutorKey(executor sdk.AccAddress) []byte {
	return append(append([]byte{}, BatchExecutorKeyPrefix...), executor.Bytes()...)
}

// SameSlotKey returns the transient key marking an interaction
func SameSlotKey(height int64, poolID uint64, caller sdk.AccAddress) []byte {
	key := append([]byte{}, SameSlotKeyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(height))
	key = append(key, poolIDBytes(poolID)...)
	return append(key, caller.Bytes()...)
}
