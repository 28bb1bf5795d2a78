package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// Keeper of the dex store
type Keeper struct {
	storeKey   storetypes.StoreKey
	tstoreKey  storetypes.StoreKey
	bankKeeper types.BankKeeper
	authority  string
	moduleAddr sdk.AccAddress
	metrics    *DEXMetrics
}

var _ types.DexKeeperV1 = Keeper{}

// NewKeeper creates a new dex Keeper instance. authority is the bech32
// address allowed to change params, reset breakers, manage batch executors
// and sweep fees.
func NewKeeper(
	key storetypes.StoreKey,
	tkey storetypes.StoreKey,
	bankKeeper types.BankKeeper,
	authority string,
) *Keeper {
	if _, err := sdk.AccAddressFromBech32(authority); err != nil {
		panic(fmt.Sprintf("invalid dex authority address: %s", err))
	}

	return &Keeper{
		storeKey:   key,
		tstoreKey:  tkey,
		bankKeeper: bankKeeper,
		authority:  authority,
		moduleAddr: authtypes.NewModuleAddress(types.ModuleName),
		metrics:    NewDEXMetrics(),
	}
}

// GetAuthority returns the module authority.
func (k Keeper) GetAuthority() string {
	return k.authority
}

// GetModuleAddress returns the account holding pool reserves.
func (k Keeper) GetModuleAddress() sdk.AccAddress {
	return k.moduleAddr
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	return sdkCtx.Logger().With("module", "x/"+types.ModuleName)
}

// getStore returns the KVStore for the dex module
func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	return sdkCtx.KVStore(k.storeKey)
}

// getTransientStore returns the per-block transient store
func (k Keeper) getTransientStore(ctx context.Context) storetypes.KVStore {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	return sdkCtx.TransientStore(k.tstoreKey)
}

// atomically runs fn on a cached branch of ctx and commits its writes and
// events only when fn succeeds.
func atomically(ctx context.Context, fn func(ctx sdk.Context) error) error {
	cacheCtx, write := sdk.UnwrapSDKContext(ctx).CacheContext()
	if err := fn(cacheCtx); err != nil {
		return err
	}
	write()
	return nil
}
