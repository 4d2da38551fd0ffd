// Package chain is the shared-state handle the gateway reads from: the coin
// database mirror plus the mempool, guarded by one coarse lock.
package chain

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/wx-shi/utxo-rest/internal/mempool"
	"github.com/wx-shi/utxo-rest/internal/model"
	"github.com/wx-shi/utxo-rest/pkg"
	"go.uber.org/zap"
)

// Store is the read side of the chain database.
type Store interface {
	Tip() (*model.BlockIndex, error)
	BlockIndex(hash *chainhash.Hash) (*model.BlockIndex, error)
	BlockHashAt(height int32) (*chainhash.Hash, error)
	IsActive(idx *model.BlockIndex) (bool, error)
	ReadBlock(hash *chainhash.Hash) (*wire.MsgBlock, error)
	TxBlock(txid *chainhash.Hash) (*chainhash.Hash, error)
	Coins(txid *chainhash.Hash) (*model.Coins, error)
	Name(name []byte) (*model.NameData, error)
	IsPruned() (bool, error)
}

// WriteStore is a Store the indexer can extend and rewind.
type WriteStore interface {
	Store
	ConnectBlock(block *wire.MsgBlock) (*model.BlockIndex, error)
	DisconnectTip() (*model.BlockIndex, error)
}

// Node owns the store and the mempool. Readers go through View, writers
// through ConnectBlock, DisconnectTip and UpdateMempool; all of them share
// one RWMutex so a reader sees chain and mempool as of a single instant.
type Node struct {
	mu     sync.RWMutex
	store  WriteStore
	pool   *mempool.Pool
	params *chaincfg.Params
	logger *zap.Logger

	// mempoolSync is set when a syncer mirrors the upstream mempool and will
	// later evict restored transactions the upstream dropped.
	mempoolSync bool

	warmupMu  sync.RWMutex
	warmupMsg string
	warmup    bool
}

// Option configures a Node.
type Option func(*Node)

// WithMempoolSync makes DisconnectTip return the block's transactions to the
// mempool. Leave it off when nothing keeps the pool in sync upstream.
func WithMempoolSync(enabled bool) Option {
	return func(n *Node) {
		n.mempoolSync = enabled
	}
}

// NewNode starts in warm-up until ClearWarmup is called.
func NewNode(store WriteStore, pool *mempool.Pool, params *chaincfg.Params, logger *zap.Logger, opts ...Option) *Node {
	n := &Node{
		store:     store,
		pool:      pool,
		params:    params,
		logger:    pkg.Named(logger, "chain"),
		warmup:    true,
		warmupMsg: "Loading block index...",
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Node) Params() *chaincfg.Params {
	return n.params
}

// SetWarmup puts the node in warm-up with a status message.
func (n *Node) SetWarmup(msg string) {
	n.warmupMu.Lock()
	defer n.warmupMu.Unlock()
	n.warmup = true
	n.warmupMsg = msg
}

func (n *Node) ClearWarmup() {
	n.warmupMu.Lock()
	defer n.warmupMu.Unlock()
	if n.warmup {
		n.logger.Info("warm-up finished")
	}
	n.warmup = false
	n.warmupMsg = ""
}

// Warmup reports whether the node is still warming up and why.
func (n *Node) Warmup() (string, bool) {
	n.warmupMu.RLock()
	defer n.warmupMu.RUnlock()
	return n.warmupMsg, n.warmup
}

// View runs fn under the read lock. The View must not escape fn.
func (n *Node) View(fn func(v *View) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return fn(&View{store: n.store, pool: n.pool, params: n.params})
}

// ConnectBlock extends the chain and evicts the block's transactions and
// their conflicts from the mempool in the same critical section.
func (n *Node) ConnectBlock(block *wire.MsgBlock) (*model.BlockIndex, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	idx, err := n.store.ConnectBlock(block)
	if err != nil {
		return nil, err
	}
	if evicted := n.pool.RemoveConfirmed(block); evicted > 0 {
		n.logger.Debug("RemoveConfirmed", zap.Int32("height", idx.Height), zap.Int("evicted", evicted))
	}
	return idx, nil
}

// DisconnectTip rewinds the chain by one block. With mempool sync on, the
// block's transactions go back to the mempool.
func (n *Node) DisconnectTip() (*model.BlockIndex, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tip, err := n.store.Tip()
	if err != nil || tip == nil {
		return nil, err
	}
	block, err := n.store.ReadBlock(&tip.Hash)
	if err != nil {
		return nil, err
	}
	idx, err := n.store.DisconnectTip()
	if err != nil {
		return nil, err
	}
	if !n.mempoolSync {
		return idx, nil
	}
	for _, tx := range block.Transactions[1:] {
		n.pool.Add(tx)
	}
	return idx, nil
}

// UpdateMempool runs fn with exclusive access to the mempool.
func (n *Node) UpdateMempool(fn func(pool *mempool.Pool)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn(n.pool)
}
