package db

import (
	"bytes"
	"context"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	tmdb "github.com/cosmos/cosmos-db"
	"github.com/pkg/errors"
	"github.com/wx-shi/utxo-rest/internal/config"
	"github.com/wx-shi/utxo-rest/internal/model"
	"github.com/wx-shi/utxo-rest/internal/names"
	"github.com/wx-shi/utxo-rest/pkg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	blockIndexKeyPrefix = "i:"
	heightKeyPrefix     = "h:"
	txBlockKeyPrefix    = "t:"
	blockKeyPrefix      = "b:"
	undoKeyPrefix       = "u:"
	coinsKeyPrefix      = "c:"
	nameKeyPrefix       = "n:"

	tipKey    = "s:tip"
	prunedKey = "s:pruned"
)

var (
	// ErrNotFound is returned when a record does not exist or its data has
	// been pruned.
	ErrNotFound = errors.New("not found")

	// ErrNotConnected is returned by ConnectBlock when the block does not
	// extend the current tip.
	ErrNotConnected = errors.New("block does not extend tip")
)

// DB is the local mirror of the node's chain state. It is not safe for
// concurrent writers; readers and writers are serialized by chain.Node.
type DB struct {
	idb    tmdb.DB // block index, active chain, tx index, meta
	bdb    tmdb.DB // raw blocks and undo data
	cdb    tmdb.DB // coins and names
	opts   *options
	logger *zap.Logger
}

func NewDB(conf *config.DBConfig, logger *zap.Logger, opts ...Option) (*DB, error) {
	o := defaultOptions(conf.DBType)
	for _, opt := range opts {
		opt(o)
	}

	open := func(name string) (tmdb.DB, error) {
		db, err := tmdb.NewDB(conf.Name+"_"+name, o.backend, conf.Dir)
		return db, errors.Wrapf(err, "open %s db", name)
	}

	idb, err := open(idbName)
	if err != nil {
		return nil, err
	}
	bdb, err := open(bdbName)
	if err != nil {
		_ = idb.Close()
		return nil, err
	}
	cdb, err := open(cdbName)
	if err != nil {
		_ = idb.Close()
		_ = bdb.Close()
		return nil, err
	}

	return &DB{
		idb:    idb,
		bdb:    bdb,
		cdb:    cdb,
		opts:   o,
		logger: pkg.Named(logger, "db"),
	}, nil
}

func (db *DB) Close() error {
	g, _ := errgroup.WithContext(context.Background())
	g.Go(db.idb.Close)
	g.Go(db.bdb.Close)
	g.Go(db.cdb.Close)
	return g.Wait()
}

func hashKey(prefix string, hash *chainhash.Hash) []byte {
	return append([]byte(prefix), hash[:]...)
}

func heightKey(height int32) []byte {
	return append([]byte(heightKeyPrefix), pkg.Uint32ToBytes(uint32(height))...)
}

func nameKey(name []byte) []byte {
	return append([]byte(nameKeyPrefix), name...)
}

// Tip returns the last connected block, or nil for an empty store.
func (db *DB) Tip() (*model.BlockIndex, error) {
	val, err := db.idb.Get([]byte(tipKey))
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, nil
	}
	hash, err := chainhash.NewHash(val)
	if err != nil {
		return nil, err
	}
	idx, err := db.BlockIndex(hash)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, errors.Errorf("tip %s has no index entry", hash)
	}
	return idx, nil
}

// BlockIndex returns the index entry for hash, or nil when the block is
// unknown.
func (db *DB) BlockIndex(hash *chainhash.Hash) (*model.BlockIndex, error) {
	val, err := db.idb.Get(hashKey(blockIndexKeyPrefix, hash))
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, nil
	}
	return decodeBlockIndex(val)
}

// BlockHashAt returns the hash of the active block at height, or nil.
func (db *DB) BlockHashAt(height int32) (*chainhash.Hash, error) {
	if height < 0 {
		return nil, nil
	}
	val, err := db.idb.Get(heightKey(height))
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, nil
	}
	return chainhash.NewHash(val)
}

// IsActive reports whether idx is part of the active chain.
func (db *DB) IsActive(idx *model.BlockIndex) (bool, error) {
	hash, err := db.BlockHashAt(idx.Height)
	if err != nil || hash == nil {
		return false, err
	}
	return *hash == idx.Hash, nil
}

// ReadBlock loads the raw block. ErrNotFound covers both unknown and pruned
// blocks.
func (db *DB) ReadBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	val, err := db.bdb.Get(hashKey(blockKeyPrefix, hash))
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "block %s", hash)
	}
	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(val)); err != nil {
		return nil, errors.Wrapf(err, "decode block %s", hash)
	}
	return block, nil
}

// TxBlock returns the hash of the block that confirmed txid, or nil.
func (db *DB) TxBlock(txid *chainhash.Hash) (*chainhash.Hash, error) {
	val, err := db.idb.Get(hashKey(txBlockKeyPrefix, txid))
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, nil
	}
	return chainhash.NewHash(val)
}

// Coins returns the coin record of txid, or nil when the transaction is
// unknown or fully spent. The record is freshly decoded and owned by the
// caller.
func (db *DB) Coins(txid *chainhash.Hash) (*model.Coins, error) {
	val, err := db.cdb.Get(hashKey(coinsKeyPrefix, txid))
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, nil
	}
	return decodeCoins(val)
}

// Name returns the current registration of name, or nil.
func (db *DB) Name(name []byte) (*model.NameData, error) {
	val, err := db.cdb.Get(nameKey(name))
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, nil
	}
	return decodeName(val)
}

// IsPruned reports whether raw block data has ever been discarded.
func (db *DB) IsPruned() (bool, error) {
	val, err := db.idb.Get([]byte(prunedKey))
	if err != nil || len(val) == 0 {
		return false, err
	}
	return pkg.BytesToBool(val)
}

// PruneDepth returns the configured pruning depth, zero when disabled.
func (db *DB) PruneDepth() int32 {
	return db.opts.pruneDepth
}

// coinCache collects coin and name changes of one block before they are
// written in a batch.
type coinCache struct {
	db    *DB
	coins map[chainhash.Hash]*model.Coins
	names map[string]*model.NameData
}

func newCoinCache(db *DB) *coinCache {
	return &coinCache{
		db:    db,
		coins: make(map[chainhash.Hash]*model.Coins),
		names: make(map[string]*model.NameData),
	}
}

func (c *coinCache) get(txid *chainhash.Hash) (*model.Coins, error) {
	if coins, ok := c.coins[*txid]; ok {
		return coins, nil
	}
	coins, err := c.db.Coins(txid)
	if err != nil {
		return nil, err
	}
	c.coins[*txid] = coins
	return coins, nil
}

func (c *coinCache) name(name []byte) (*model.NameData, error) {
	if nd, ok := c.names[string(name)]; ok {
		return nd, nil
	}
	nd, err := c.db.Name(name)
	if err != nil {
		return nil, err
	}
	c.names[string(name)] = nd
	return nd, nil
}

func (c *coinCache) flush(batch tmdb.Batch) error {
	for txid, coins := range c.coins {
		txid := txid
		key := hashKey(coinsKeyPrefix, &txid)
		if coins == nil || coins.IsPruned() {
			if err := batch.Delete(key); err != nil {
				return err
			}
			continue
		}
		b, err := encodeCoins(coins)
		if err != nil {
			return err
		}
		if err := batch.Set(key, b); err != nil {
			return err
		}
	}
	for name, nd := range c.names {
		key := nameKey([]byte(name))
		if nd == nil {
			if err := batch.Delete(key); err != nil {
				return err
			}
			continue
		}
		b, err := encodeName(nd)
		if err != nil {
			return err
		}
		if err := batch.Set(key, b); err != nil {
			return err
		}
	}
	return nil
}

// ConnectBlock applies block on top of the current tip and returns its index
// entry. The genesis coinbase is not spendable and is not added to the coin
// set.
func (db *DB) ConnectBlock(block *wire.MsgBlock) (*model.BlockIndex, error) {
	start := time.Now()

	tip, err := db.Tip()
	if err != nil {
		return nil, err
	}
	height := int32(0)
	work := new(big.Int)
	if tip != nil {
		if block.Header.PrevBlock != tip.Hash {
			return nil, errors.Wrapf(ErrNotConnected, "prev %s tip %s", block.Header.PrevBlock, tip.Hash)
		}
		height = tip.Height + 1
		work.Set(tip.ChainWork)
	}
	work.Add(work, blockchain.CalcWork(block.Header.Bits))

	hash := block.BlockHash()
	cache := newCoinCache(db)
	undo := &blockUndo{}

	for i, tx := range block.Transactions {
		txid := tx.TxHash()

		if i > 0 {
			spent := make([]spentCoin, 0, len(tx.TxIn))
			for _, in := range tx.TxIn {
				prev := in.PreviousOutPoint
				coins, err := cache.get(&prev.Hash)
				if err != nil {
					return nil, err
				}
				if coins == nil || !coins.IsAvailable(prev.Index) {
					return nil, errors.Errorf("block %s tx %s spends missing output %s", hash, txid, prev)
				}
				out := coins.Spend(prev.Index)
				spent = append(spent, spentCoin{
					outpoint: prev,
					version:  coins.Version,
					height:   coins.Height,
					coinbase: coins.Coinbase,
					out:      *out,
				})
			}
			undo.txs = append(undo.txs, spent)
		}

		if height > 0 || i > 0 {
			cache.coins[txid] = model.NewCoinsFromTx(tx, uint32(height))
		}

		for n, out := range tx.TxOut {
			op, ok := names.Parse(out.PkScript)
			if !ok || !op.Registers() {
				continue
			}
			prev, err := cache.name(op.Name)
			if err != nil {
				return nil, err
			}
			undo.names = append(undo.names, nameUndo{name: op.Name, prev: prev})
			cache.names[string(op.Name)] = &model.NameData{
				Name:     op.Name,
				Value:    op.Value,
				Height:   uint32(height),
				Outpoint: wire.OutPoint{Hash: txid, Index: uint32(n)},
				Script:   op.Script,
			}
		}
	}

	idx := &model.BlockIndex{
		Hash:      hash,
		Height:    height,
		Header:    block.Header,
		Status:    model.StatusHaveData | model.StatusHaveUndo,
		NumTx:     uint32(len(block.Transactions)),
		ChainWork: work,
	}

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		wb := db.bdb.NewBatch()
		defer wb.Close()

		var buf bytes.Buffer
		if err := block.Serialize(&buf); err != nil {
			return err
		}
		if err := wb.Set(hashKey(blockKeyPrefix, &hash), buf.Bytes()); err != nil {
			return err
		}
		ub, err := encodeUndo(undo)
		if err != nil {
			return err
		}
		if err := wb.Set(hashKey(undoKeyPrefix, &hash), ub); err != nil {
			return err
		}
		return wb.WriteSync()
	})
	g.Go(func() error {
		wb := db.cdb.NewBatch()
		defer wb.Close()

		if err := cache.flush(wb); err != nil {
			return err
		}
		return wb.WriteSync()
	})
	g.Go(func() error {
		wb := db.idb.NewBatch()
		defer wb.Close()

		ib, err := encodeBlockIndex(idx)
		if err != nil {
			return err
		}
		if err := wb.Set(hashKey(blockIndexKeyPrefix, &hash), ib); err != nil {
			return err
		}
		if err := wb.Set(heightKey(height), hash[:]); err != nil {
			return err
		}
		for _, tx := range block.Transactions {
			txid := tx.TxHash()
			if err := wb.Set(hashKey(txBlockKeyPrefix, &txid), hash[:]); err != nil {
				return err
			}
		}
		return wb.WriteSync()
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "store block %s", hash)
	}

	// the tip moves last so a crash leaves the previous tip authoritative
	if err := db.idb.SetSync([]byte(tipKey), hash[:]); err != nil {
		return nil, err
	}

	if err := db.prune(height); err != nil {
		return nil, err
	}

	db.logger.Debug("ConnectBlock",
		zap.Int32("height", height),
		zap.String("hash", hash.String()),
		zap.Int("tx_len", len(block.Transactions)),
		zap.Duration("ttl", time.Since(start)))
	return idx, nil
}

func (db *DB) prune(height int32) error {
	depth := db.opts.pruneDepth
	if depth <= 0 || height < depth {
		return nil
	}
	hash, err := db.BlockHashAt(height - depth)
	if err != nil || hash == nil {
		return err
	}
	idx, err := db.BlockIndex(hash)
	if err != nil || idx == nil || !idx.HaveData() {
		return err
	}

	wb := db.bdb.NewBatch()
	defer wb.Close()
	if err := wb.Delete(hashKey(blockKeyPrefix, hash)); err != nil {
		return err
	}
	if err := wb.Delete(hashKey(undoKeyPrefix, hash)); err != nil {
		return err
	}
	if err := wb.WriteSync(); err != nil {
		return err
	}

	idx.Status &^= model.StatusHaveData | model.StatusHaveUndo
	ib, err := encodeBlockIndex(idx)
	if err != nil {
		return err
	}
	ib2 := db.idb.NewBatch()
	defer ib2.Close()
	if err := ib2.Set(hashKey(blockIndexKeyPrefix, hash), ib); err != nil {
		return err
	}
	if err := ib2.Set([]byte(prunedKey), pkg.BoolToBytes(true)); err != nil {
		return err
	}
	return ib2.WriteSync()
}

// DisconnectTip reverts the current tip and returns the entry of the block
// that was removed. The block stays known but leaves the active chain.
func (db *DB) DisconnectTip() (*model.BlockIndex, error) {
	tip, err := db.Tip()
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, errors.Wrap(ErrNotFound, "disconnect on empty chain")
	}
	if tip.Status&model.StatusHaveUndo == 0 {
		return nil, errors.Errorf("undo data for %s has been pruned", tip.Hash)
	}

	block, err := db.ReadBlock(&tip.Hash)
	if err != nil {
		return nil, err
	}
	ub, err := db.bdb.Get(hashKey(undoKeyPrefix, &tip.Hash))
	if err != nil {
		return nil, err
	}
	undo, err := decodeUndo(ub)
	if err != nil {
		return nil, errors.Wrapf(err, "undo %s", tip.Hash)
	}
	if len(undo.txs) != len(block.Transactions)-1 {
		return nil, errors.Errorf("undo for %s covers %d txs, block has %d", tip.Hash, len(undo.txs), len(block.Transactions))
	}

	cache := newCoinCache(db)
	for i := len(block.Transactions) - 1; i >= 0; i-- {
		txid := block.Transactions[i].TxHash()
		cache.coins[txid] = nil
		if i == 0 {
			continue
		}
		spent := undo.txs[i-1]
		for j := len(spent) - 1; j >= 0; j-- {
			sc := spent[j]
			coins, err := cache.get(&sc.outpoint.Hash)
			if err != nil {
				return nil, err
			}
			if coins == nil {
				coins = &model.Coins{Version: sc.version, Height: sc.height, Coinbase: sc.coinbase}
				cache.coins[sc.outpoint.Hash] = coins
			}
			for uint32(len(coins.Outputs)) <= sc.outpoint.Index {
				coins.Outputs = append(coins.Outputs, nil)
			}
			out := sc.out
			coins.Outputs[sc.outpoint.Index] = &out
		}
	}
	for i := len(undo.names) - 1; i >= 0; i-- {
		nu := undo.names[i]
		cache.names[string(nu.name)] = nu.prev
	}

	cb := db.cdb.NewBatch()
	defer cb.Close()
	if err := cache.flush(cb); err != nil {
		return nil, err
	}
	if err := cb.WriteSync(); err != nil {
		return nil, err
	}

	wb := db.idb.NewBatch()
	defer wb.Close()
	for _, tx := range block.Transactions {
		txid := tx.TxHash()
		if err := wb.Delete(hashKey(txBlockKeyPrefix, &txid)); err != nil {
			return nil, err
		}
	}
	if err := wb.Delete(heightKey(tip.Height)); err != nil {
		return nil, err
	}
	if tip.Height == 0 {
		err = wb.Delete([]byte(tipKey))
	} else {
		err = wb.Set([]byte(tipKey), tip.Header.PrevBlock[:])
	}
	if err != nil {
		return nil, err
	}
	if err := wb.WriteSync(); err != nil {
		return nil, err
	}

	db.logger.Info("DisconnectTip", zap.Int32("height", tip.Height), zap.String("hash", tip.Hash.String()))
	return tip, nil
}
