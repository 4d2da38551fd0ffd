package chain

import (
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/wx-shi/utxo-rest/internal/mempool"
	"github.com/wx-shi/utxo-rest/internal/model"
)

const medianTimeBlocks = 11

// View is a read-only window on the node, valid while Node.View holds the
// lock.
type View struct {
	store  Store
	pool   *mempool.Pool
	params *chaincfg.Params
}

func (v *View) Params() *chaincfg.Params {
	return v.params
}

// Tip returns the active tip, or nil before the first block is connected.
func (v *View) Tip() (*model.BlockIndex, error) {
	return v.store.Tip()
}

// Height is the active chain height, -1 when empty.
func (v *View) Height() (int32, *chainhash.Hash, error) {
	tip, err := v.store.Tip()
	if err != nil {
		return 0, nil, err
	}
	if tip == nil {
		return -1, &chainhash.Hash{}, nil
	}
	return tip.Height, &tip.Hash, nil
}

func (v *View) LookupBlockIndex(hash *chainhash.Hash) (*model.BlockIndex, error) {
	return v.store.BlockIndex(hash)
}

// Contains reports whether idx is on the active chain.
func (v *View) Contains(idx *model.BlockIndex) (bool, error) {
	return v.store.IsActive(idx)
}

// Next returns the successor of an active block, or nil at the tip.
func (v *View) Next(idx *model.BlockIndex) (*model.BlockIndex, error) {
	hash, err := v.store.BlockHashAt(idx.Height + 1)
	if err != nil || hash == nil {
		return nil, err
	}
	return v.store.BlockIndex(hash)
}

func (v *View) ReadBlock(idx *model.BlockIndex) (*wire.MsgBlock, error) {
	return v.store.ReadBlock(&idx.Hash)
}

func (v *View) IsPruned() (bool, error) {
	return v.store.IsPruned()
}

func (v *View) Name(name []byte) (*model.NameData, error) {
	return v.store.Name(name)
}

func (v *View) MempoolCount() int {
	return v.pool.Count()
}

// GetTransaction looks in the mempool first, then in the transaction index.
// blockHash is nil for unconfirmed transactions.
func (v *View) GetTransaction(txid *chainhash.Hash) (tx *wire.MsgTx, blockHash *chainhash.Hash, err error) {
	if tx, ok := v.pool.Lookup(*txid); ok {
		return tx, nil, nil
	}
	blockHash, err = v.store.TxBlock(txid)
	if err != nil || blockHash == nil {
		return nil, nil, err
	}
	block, err := v.store.ReadBlock(blockHash)
	if err != nil {
		return nil, nil, err
	}
	for _, tx := range block.Transactions {
		if tx.TxHash() == *txid {
			return tx, blockHash, nil
		}
	}
	return nil, nil, nil
}

// MedianTime is the median timestamp of idx and up to ten of its ancestors.
func (v *View) MedianTime(idx *model.BlockIndex) (time.Time, error) {
	stamps := make([]int64, 0, medianTimeBlocks)
	for cur := idx; cur != nil && len(stamps) < medianTimeBlocks; {
		stamps = append(stamps, cur.Header.Timestamp.Unix())
		if cur.Height == 0 {
			break
		}
		prev, err := v.store.BlockIndex(&cur.Header.PrevBlock)
		if err != nil {
			return time.Time{}, err
		}
		cur = prev
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	return time.Unix(stamps[len(stamps)/2], 0), nil
}

// Coins builds the coin view of one query: confirmed state, optionally
// overlaid with the mempool.
func (v *View) Coins(checkMempool bool) CoinsView {
	return NewCoinsView(v.store, v.pool, checkMempool)
}
