package simulation

import (
	"context"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// BankStoreKey is the store the in-memory bank keeps balances under
const BankStoreKey = "sim_bank"

var _ types.BankKeeper = (*Bank)(nil)

// Bank is a minimal store-backed bank. Balances live in the multistore, so
// they follow cache-context commits and rollbacks like module state does.
type Bank struct {
	key       storetypes.StoreKey
	blocked   map[string]bool
	blockedIn map[string]bool
}

// NewBank returns a bank storing balances under key.
func NewBank(key storetypes.StoreKey) *Bank {
	return &Bank{key: key, blocked: make(map[string]bool), blockedIn: make(map[string]bool)}
}

func balanceKey(addr sdk.AccAddress, denom string) []byte {
	key := append([]byte{byte(len(addr))}, addr...)
	return append(key, []byte(denom)...)
}

func (b *Bank) setBalance(ctx context.Context, addr sdk.AccAddress, coin sdk.Coin) error {
	store := sdk.UnwrapSDKContext(ctx).KVStore(b.key)
	if coin.Amount.IsZero() {
		store.Delete(balanceKey(addr, coin.Denom))
		return nil
	}
	bz, err := coin.Amount.Marshal()
	if err != nil {
		return err
	}
	store.Set(balanceKey(addr, coin.Denom), bz)
	return nil
}

// GetBalance returns the balance of denom held by addr.
func (b *Bank) GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) sdk.Coin {
	bz := sdk.UnwrapSDKContext(ctx).KVStore(b.key).Get(balanceKey(addr, denom))
	amount := math.ZeroInt()
	if bz != nil {
		if err := amount.Unmarshal(bz); err != nil {
			panic(err)
		}
	}
	return sdk.NewCoin(denom, amount)
}

// GetAllBalances returns every balance held by addr.
func (b *Bank) GetAllBalances(ctx context.Context, addr sdk.AccAddress) sdk.Coins {
	prefix := append([]byte{byte(len(addr))}, addr...)
	iterator := storetypes.KVStorePrefixIterator(sdk.UnwrapSDKContext(ctx).KVStore(b.key), prefix)
	defer iterator.Close()

	coins := sdk.NewCoins()
	for ; iterator.Valid(); iterator.Next() {
		var amount math.Int
		if err := amount.Unmarshal(iterator.Value()); err != nil {
			panic(err)
		}
		coins = coins.Add(sdk.NewCoin(string(iterator.Key()[len(prefix):]), amount))
	}
	return coins
}

// Mint credits coins to addr out of thin air.
func (b *Bank) Mint(ctx context.Context, addr sdk.AccAddress, coins sdk.Coins) error {
	for _, coin := range coins {
		current := b.GetBalance(ctx, addr, coin.Denom)
		if err := b.setBalance(ctx, addr, current.Add(coin)); err != nil {
			return err
		}
	}
	return nil
}

// Block makes every transfer from or to addr fail.
func (b *Bank) Block(addr sdk.AccAddress) {
	b.blocked[addr.String()] = true
}

// Unblock reverses Block.
func (b *Bank) Unblock(addr sdk.AccAddress) {
	delete(b.blocked, addr.String())
}

// BlockIncoming makes transfers of denom to addr fail. Transfers out of addr
// still work.
func (b *Bank) BlockIncoming(addr sdk.AccAddress, denom string) {
	b.blockedIn[addr.String()+"/"+denom] = true
}

// UnblockIncoming reverses BlockIncoming.
func (b *Bank) UnblockIncoming(addr sdk.AccAddress, denom string) {
	delete(b.blockedIn, addr.String()+"/"+denom)
}

// SendCoins moves coins between accounts. Either all coins move or none.
func (b *Bank) SendCoins(ctx context.Context, from, to sdk.AccAddress, amt sdk.Coins) error {
	if !amt.IsValid() {
		return sdkerrors.ErrInvalidCoins.Wrap(amt.String())
	}
	if b.blocked[from.String()] || b.blocked[to.String()] {
		return sdkerrors.ErrUnauthorized.Wrapf("transfers between %s and %s are blocked", from, to)
	}
	for _, coin := range amt {
		if b.blockedIn[to.String()+"/"+coin.Denom] {
			return sdkerrors.ErrUnauthorized.Wrapf("%s does not accept %s", to, coin.Denom)
		}
		if have := b.GetBalance(ctx, from, coin.Denom); have.Amount.LT(coin.Amount) {
			return sdkerrors.ErrInsufficientFunds.Wrapf("%s has %s, needs %s", from, have, coin)
		}
	}
	for _, coin := range amt {
		fromBal := b.GetBalance(ctx, from, coin.Denom)
		if err := b.setBalance(ctx, from, fromBal.Sub(coin)); err != nil {
			return err
		}
		toBal := b.GetBalance(ctx, to, coin.Denom)
		if err := b.setBalance(ctx, to, toBal.Add(coin)); err != nil {
			return err
		}
	}
	return nil
}
