package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/wx-shi/utxo-rest/internal/chain"
	"github.com/wx-shi/utxo-rest/internal/config"
	"github.com/wx-shi/utxo-rest/internal/model"
	"github.com/wx-shi/utxo-rest/pkg"
	"go.uber.org/zap"
)

// maxReorgDepth bounds how far back a fork point is searched.
const maxReorgDepth = 288

// Chain is the node handle the indexer writes to. *chain.Node implements it.
type Chain interface {
	View(fn func(v *chain.View) error) error
	ConnectBlock(block *wire.MsgBlock) (*model.BlockIndex, error)
	DisconnectTip() (*model.BlockIndex, error)
	SetWarmup(msg string)
	ClearWarmup()
}

// task is one unit of work for the store loop: connect block, rewind the
// chain to rewindTo, or mark the end of the initial sync.
type task struct {
	block    *wire.MsgBlock
	height   int32
	target   int64
	rewind   bool
	rewindTo int32
	synced   bool
}

type Indexer struct {
	ctx    context.Context
	logger *zap.Logger
	rpc    BlockSource
	node   Chain
	conf   *config.IndexerConfig

	// owned by the scan goroutine
	scanHeight int32
	tipHash    chainhash.Hash
	recent     map[int32]chainhash.Hash

	blockChan           chan task
	isHistoryScanFinish bool
	Finish              chan struct{}
}

func NewIndexer(ctx context.Context, conf *config.IndexerConfig,
	logger *zap.Logger, rpc BlockSource, node Chain) *Indexer {
	return &Indexer{
		ctx:    ctx,
		conf:   conf,
		logger: pkg.Named(logger, "indexer"),
		rpc:    rpc,
		node:   node,
		Finish: make(chan struct{}),
	}
}

// Sync resumes from the stored tip and keeps following the node until ctx
// is cancelled. Finish is closed once the store loop has stopped.
func (i *Indexer) Sync() error {
	if err := i.init(); err != nil {
		return err
	}
	go i.scan()
	go i.store()
	return nil
}

func (i *Indexer) init() error {
	i.recent = make(map[int32]chainhash.Hash)
	i.blockChan = make(chan task, i.conf.BlockChanBuf)

	return i.node.View(func(v *chain.View) error {
		tip, err := v.Tip()
		if err != nil || tip == nil {
			return err
		}
		i.scanHeight = tip.Height + 1
		i.tipHash = tip.Hash
		for idx := tip; idx != nil && idx.Height >= tip.Height-maxReorgDepth; {
			i.recent[idx.Height] = idx.Hash
			if idx.Height == 0 {
				break
			}
			if idx, err = v.LookupBlockIndex(&idx.Header.PrevBlock); err != nil {
				return err
			}
		}
		i.logger.Info("init", zap.Int32("height", tip.Height), zap.String("tip", tip.Hash.String()))
		return nil
	})
}

func (i *Indexer) scan() {
	ticker := time.NewTicker(i.conf.PollInterval)
	defer ticker.Stop()
	for {
		reorg, err := i.scanOnce()
		if err != nil && i.ctx.Err() == nil {
			i.logger.Error("scanOnce", zap.Error(err))
		}
		if reorg {
			continue
		}
		select {
		case <-i.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// scanOnce feeds every block the node has beyond scanHeight to the store
// loop. It reports true when it stopped at a fork and rewound.
func (i *Indexer) scanOnce() (bool, error) {
	nheight, err := i.getBlockCount()
	if err != nil {
		return false, errors.Wrap(err, "getblockcount")
	}

	// the node may have replaced our tip without growing past it
	if i.scanHeight > 0 && int64(i.scanHeight-1) <= nheight {
		hash, err := i.getBlockHash(i.scanHeight - 1)
		if err != nil {
			return false, errors.Wrap(err, "getblockhash")
		}
		if *hash != i.tipHash {
			return true, i.reorg(i.scanHeight - 1)
		}
	}

	// or switched to a shorter branch; a matching hash at its tip only means
	// it is behind us
	if nheight >= 0 && nheight < int64(i.scanHeight-1) {
		ours, ok := i.recent[int32(nheight)]
		if !ok {
			return false, nil
		}
		hash, err := i.getBlockHash(int32(nheight))
		if err != nil {
			return false, errors.Wrap(err, "getblockhash")
		}
		if *hash != ours {
			return true, i.reorg(int32(nheight))
		}
		return false, nil
	}

	for h := i.scanHeight; int64(h) <= nheight; h++ {
		startTime := time.Now()
		block, err := i.getBlock(h)
		if err != nil {
			return false, errors.Wrapf(err, "getblock %d", h)
		}
		if h > 0 && block.Header.PrevBlock != i.tipHash {
			return true, i.reorg(h - 1)
		}
		if !i.send(task{block: block, height: h, target: nheight}) {
			return false, i.ctx.Err()
		}
		hash := block.BlockHash()
		i.recent[h] = hash
		delete(i.recent, h-maxReorgDepth-1)
		i.tipHash = hash
		i.scanHeight = h + 1

		i.logger.Debug("Scan::Info", zap.Int32("height", h), zap.Int("tx_len", len(block.Transactions)),
			zap.Duration("ttl", time.Since(startTime)))
	}

	if !i.isHistoryScanFinish {
		i.isHistoryScanFinish = true
		if !i.send(task{synced: true}) {
			return false, i.ctx.Err()
		}
	}
	return false, nil
}

// reorg finds the highest block at or below from that the node still has on
// its active chain and asks the store loop to rewind to it.
func (i *Indexer) reorg(from int32) error {
	for h := from; h >= 0 && h >= from-maxReorgDepth; h-- {
		ours, ok := i.recent[h]
		if !ok {
			break
		}
		theirs, err := i.getBlockHash(h)
		if err != nil {
			return errors.Wrap(err, "getblockhash")
		}
		if *theirs != ours {
			continue
		}

		i.logger.Info("reorg", zap.Int32("fork", h), zap.Int32("tip", i.scanHeight-1))
		if !i.send(task{rewind: true, rewindTo: h}) {
			return i.ctx.Err()
		}
		for k := range i.recent {
			if k > h {
				delete(i.recent, k)
			}
		}
		i.tipHash = ours
		i.scanHeight = h + 1
		return nil
	}
	return errors.Errorf("no fork point within %d blocks of height %d", maxReorgDepth, from)
}

func (i *Indexer) send(t task) bool {
	select {
	case <-i.ctx.Done():
		return false
	case i.blockChan <- t:
		return true
	}
}

func (i *Indexer) store() {
	defer close(i.Finish)
	synced := false
	for {
		select {
		case <-i.ctx.Done():
			return
		case t := <-i.blockChan:
			if err := i.apply(t, &synced); err != nil {
				i.logger.Error("store", zap.Int32("height", t.height), zap.Error(err))
				i.node.SetWarmup(fmt.Sprintf("Indexer stopped: %v", err))
				return
			}
		}
	}
}

func (i *Indexer) apply(t task, synced *bool) error {
	switch {
	case t.synced:
		*synced = true
		i.node.ClearWarmup()
		return nil

	case t.rewind:
		for {
			var height int32
			err := i.node.View(func(v *chain.View) error {
				var err error
				height, _, err = v.Height()
				return err
			})
			if err != nil {
				return err
			}
			if height <= t.rewindTo {
				return nil
			}
			idx, err := i.node.DisconnectTip()
			if err != nil {
				return errors.Wrapf(err, "disconnect %d", height)
			}
			i.logger.Info("DisconnectTip", zap.Int32("height", idx.Height), zap.String("hash", idx.Hash.String()))
		}
	}

	startTime := time.Now()
	idx, err := i.node.ConnectBlock(t.block)
	if err != nil {
		return errors.Wrapf(err, "connect %s", t.block.BlockHash())
	}
	if !*synced {
		i.node.SetWarmup(fmt.Sprintf("Syncing blocks %d/%d", idx.Height, t.target))
	}
	i.logger.Debug("Store::Info", zap.Int32("height", idx.Height), zap.Duration("ttl", time.Since(startTime)))
	return nil
}
