package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/wx-shi/utxo-rest/internal/mempool"
	"github.com/wx-shi/utxo-rest/internal/model"
)

// CoinsView answers coin lookups by transaction hash. A nil record means the
// transaction is unknown or has no unspent outputs. Returned records belong
// to the caller.
type CoinsView interface {
	GetCoins(txid *chainhash.Hash) (*model.Coins, error)
}

type chainCoins struct {
	store Store
}

func (c *chainCoins) GetCoins(txid *chainhash.Hash) (*model.Coins, error) {
	return c.store.Coins(txid)
}

// mempoolCoins layers unconfirmed transactions over a base view. Outputs of
// pool transactions appear at model.MempoolHeight and outputs the pool spends
// are pruned before the record is handed out.
type mempoolCoins struct {
	base CoinsView
	pool *mempool.Pool
}

func (m *mempoolCoins) GetCoins(txid *chainhash.Hash) (*model.Coins, error) {
	coins := m.pool.Coins(*txid)
	if coins == nil {
		base, err := m.base.GetCoins(txid)
		if err != nil || base == nil {
			return nil, err
		}
		coins = base.Clone()
	}
	m.pool.PruneSpent(*txid, coins)
	return coins, nil
}

// NewCoinsView composes the view for a query. Neither store nor pool is
// modified through it.
func NewCoinsView(store Store, pool *mempool.Pool, checkMempool bool) CoinsView {
	var view CoinsView = &chainCoins{store: store}
	if checkMempool {
		view = &mempoolCoins{base: view, pool: pool}
	}
	return view
}
