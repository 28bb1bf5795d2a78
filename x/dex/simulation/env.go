package simulation

import (
	"fmt"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	"github.com/cometbft/cometbft/crypto"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"

	"github.com/paw-chain/pawdex/x/dex/keeper"
	"github.com/paw-chain/pawdex/x/dex/types"
)

// DefaultGenesisTime is the block time of the first simulated block
var DefaultGenesisTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Env is a single-node in-memory chain running the dex keeper.
type Env struct {
	Keeper    *keeper.Keeper
	Bank      *Bank
	Ctx       sdk.Context
	Authority sdk.AccAddress

	cms    storetypes.CommitMultiStore
	logger log.Logger
}

// NewEnv mounts the dex and bank stores on a fresh MemDB and initializes the
// dex module from genesis.
func NewEnv(logger log.Logger, genesisTime time.Time, genesis *types.GenesisState) (*Env, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if genesis == nil {
		genesis = types.DefaultGenesis()
	}

	storeKey := storetypes.NewKVStoreKey(types.StoreKey)
	tStoreKey := storetypes.NewTransientStoreKey(types.TStoreKey)
	bankKey := storetypes.NewKVStoreKey(BankStoreKey)

	db := dbm.NewMemDB()
	cms := store.NewCommitMultiStore(db, logger, metrics.NewNoOpMetrics())
	cms.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, db)
	cms.MountStoreWithDB(bankKey, storetypes.StoreTypeIAVL, db)
	cms.MountStoreWithDB(tStoreKey, storetypes.StoreTypeTransient, nil)
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("load stores: %w", err)
	}

	authority := authtypes.NewModuleAddress(govtypes.ModuleName)
	bank := NewBank(bankKey)
	k := keeper.NewKeeper(storeKey, tStoreKey, bank, authority.String())

	ctx := sdk.NewContext(cms, cmtproto.Header{
		ChainID: "pawdex-sim",
		Height:  1,
		Time:    genesisTime,
	}, false, logger)

	if err := k.InitGenesis(ctx, *genesis); err != nil {
		return nil, fmt.Errorf("init genesis: %w", err)
	}
	// the module account holds exactly what the keeper tracks
	if err := bank.Mint(ctx, k.GetModuleAddress(), genesis.TrackedBalances); err != nil {
		return nil, fmt.Errorf("fund module account: %w", err)
	}

	return &Env{
		Keeper:    k,
		Bank:      bank,
		Ctx:       ctx,
		Authority: authority,
		cms:       cms,
		logger:    logger,
	}, nil
}

// NextBlock commits the current block and starts the next one dt later.
// Committing resets the transient store.
func (e *Env) NextBlock(dt time.Duration) {
	e.cms.Commit()
	header := e.Ctx.BlockHeader()
	header.Height++
	header.Time = header.Time.Add(dt)
	e.Ctx = sdk.NewContext(e.cms, header, false, e.logger)
}

// Account returns a deterministic address for a scenario account name.
func Account(name string) sdk.AccAddress {
	return sdk.AccAddress(crypto.AddressHash([]byte(name)))
}
