package mempool

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	"github.com/wx-shi/utxo-rest/internal/config"
	"github.com/wx-shi/utxo-rest/pkg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source is the part of the node RPC the syncer needs. *rpcclient.Client
// satisfies it.
type Source interface {
	GetRawMempool() ([]*chainhash.Hash, error)
	GetRawTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error)
}

// Applier runs fn with exclusive access to the pool.
type Applier interface {
	UpdateMempool(fn func(pool *Pool))
}

// Syncer keeps a Pool in step with the node's mempool by polling.
type Syncer struct {
	conf   *config.MempoolConfig
	logger *zap.Logger
	rpc    Source
	node   Applier
	Finish chan struct{}
}

func NewSyncer(conf *config.MempoolConfig, logger *zap.Logger, rpc Source, node Applier) *Syncer {
	return &Syncer{
		conf:   conf,
		logger: pkg.Named(logger, "mempool"),
		rpc:    rpc,
		node:   node,
		Finish: make(chan struct{}),
	}
}

// Run polls until ctx is cancelled, then closes Finish.
func (s *Syncer) Run(ctx context.Context) {
	defer close(s.Finish)

	ticker := time.NewTicker(s.conf.PollInterval)
	defer ticker.Stop()
	for {
		if err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("SyncOnce", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SyncOnce fetches the node's mempool and applies the difference.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	start := time.Now()

	var hashes []*chainhash.Hash
	err := retry.Do(func() error {
		var err error
		hashes, err = s.rpc.GetRawMempool()
		return err
	}, retry.Attempts(3), retry.Context(ctx))
	if err != nil {
		return errors.Wrap(err, "getrawmempool")
	}

	remote := strset.NewWithSize(len(hashes))
	for _, h := range hashes {
		remote.Add(h.String())
	}
	var local *strset.Set
	s.node.UpdateMempool(func(pool *Pool) {
		local = strset.New(pool.TxIDs()...)
	})

	added := strset.Difference(remote, local)
	removed := strset.Difference(local, remote)

	txs, err := s.fetch(ctx, added.List())
	if err != nil {
		return err
	}

	s.node.UpdateMempool(func(pool *Pool) {
		removed.Each(func(id string) bool {
			if h, err := chainhash.NewHashFromStr(id); err == nil {
				pool.Remove(*h)
			}
			return true
		})
		for _, tx := range txs {
			pool.Add(tx)
		}
	})

	s.logger.Debug("SyncOnce",
		zap.Int("added", len(txs)),
		zap.Int("removed", removed.Size()),
		zap.Int("remote", remote.Size()),
		zap.Duration("ttl", time.Since(start)))
	return nil
}

// fetch downloads ids concurrently. Transactions that left the node's mempool
// in the meantime are skipped.
func (s *Syncer) fetch(ctx context.Context, ids []string) ([]*wire.MsgTx, error) {
	var mu sync.Mutex
	txs := make([]*wire.MsgTx, 0, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.conf.FetchWorkers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			hash, err := chainhash.NewHashFromStr(id)
			if err != nil {
				return err
			}
			tx, err := s.rpc.GetRawTransaction(hash)
			if err != nil {
				s.logger.Debug("GetRawTransaction", zap.String("txid", id), zap.Error(err))
				return nil
			}
			mu.Lock()
			txs = append(txs, tx.MsgTx())
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "fetch mempool txs")
	}
	return txs, nil
}
