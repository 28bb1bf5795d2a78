package types

// Event types for the DEX module
const (
	EventTypeCreatePool      = "create_pool"
	EventTypeAddLiquidity    = "add_liquidity"
	EventTypeRemoveLiquidity = "remove_liquidity"
	EventTypeSwap            = "swap"
	EventTypeBatchSwap       = "batch_swap"
	EventTypeOrderRefunded   = "batch_order_refunded"
	EventTypeCollectFees     = "collect_protocol_fees"
	EventTypeSkimExcess      = "skim_excess"
	EventTypeUpdateParams    = "update_params"
	EventTypeSetExecutor     = "set_batch_executor"
	EventTypeOracleGrow      = "oracle_grow"

	// Circuit Breaker Events
	EventTypeCircuitBreakerTripped = "circuit_breaker_tripped"
	EventTypeCircuitBreakerReset   = "circuit_breaker_reset"

	// Defense Events
	EventTypeSameSlotBlocked  = "same_slot_blocked"
	EventTypeDonationDetected = "donation_detected"
	EventTypeTWAPDeviation    = "twap_deviation_blocked"
)

// Event attribute keys
const (
	AttributeKeyPoolID         = "pool_id"
	AttributeKeyCreator        = "creator"
	AttributeKeyProvider       = "provider"
	AttributeKeyTrader         = "trader"
	AttributeKeyRecipient      = "recipient"
	AttributeKeyExecutor       = "executor"
	AttributeKeyTokenA         = "token_a"
	AttributeKeyTokenB         = "token_b"
	AttributeKeyTokenIn        = "token_in"
	AttributeKeyTokenOut       = "token_out"
	AttributeKeyAmountA        = "amount_a"
	AttributeKeyAmountB        = "amount_b"
	AttributeKeyAmountIn       = "amount_in"
	AttributeKeyAmountOut      = "amount_out"
	AttributeKeyShares         = "shares"
	AttributeKeyFeeBps         = "fee_bps"
	AttributeKeyProtocolFee    = "protocol_fee"
	AttributeKeyClearingPrice  = "clearing_price"
	AttributeKeyFilledOrders   = "filled_orders"
	AttributeKeyRefundedOrders = "refunded_orders"
	AttributeKeyReason         = "reason"
	AttributeKeyDenom          = "denom"
	AttributeKeyAmount         = "amount"
	AttributeKeyBreakerKind    = "breaker_kind"
	AttributeKeyWindowValue    = "window_value"
	AttributeKeyThreshold      = "threshold"
	AttributeKeyCardinality    = "cardinality"
	AttributeKeyEnabled        = "enabled"
	AttributeKeySpotPrice      = "spot_price"
	AttributeKeyTWAP           = "twap"
)
