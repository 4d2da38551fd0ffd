package mempool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wx-shi/utxo-rest/internal/chaintest"
	"github.com/wx-shi/utxo-rest/internal/config"
	"go.uber.org/zap"
)

type fakeSource struct {
	mu  sync.Mutex
	txs map[chainhash.Hash]*wire.MsgTx
}

func (f *fakeSource) GetRawMempool() ([]*chainhash.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hashes := make([]*chainhash.Hash, 0, len(f.txs))
	for h := range f.txs {
		h := h
		hashes = append(hashes, &h)
	}
	return hashes, nil
}

func (f *fakeSource) GetRawTransaction(h *chainhash.Hash) (*btcutil.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[*h]
	if !ok {
		return nil, errors.New("No such mempool or blockchain transaction")
	}
	return btcutil.NewTx(tx), nil
}

type lockedPool struct {
	mu   sync.Mutex
	pool *Pool
}

func (l *lockedPool) UpdateMempool(fn func(pool *Pool)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.pool)
}

func TestSyncOnce(t *testing.T) {
	a := chaintest.Spend([]wire.OutPoint{{Hash: chainhash.Hash{1}}}, wire.NewTxOut(1, chaintest.Script))
	b := chaintest.Spend([]wire.OutPoint{{Hash: chainhash.Hash{2}}}, wire.NewTxOut(2, chaintest.Script))
	c := chaintest.Spend([]wire.OutPoint{{Hash: chainhash.Hash{3}}}, wire.NewTxOut(3, chaintest.Script))

	src := &fakeSource{txs: map[chainhash.Hash]*wire.MsgTx{a.TxHash(): a, b.TxHash(): b}}
	node := &lockedPool{pool: New()}
	s := NewSyncer(&config.MempoolConfig{PollInterval: time.Millisecond, FetchWorkers: 2}, zap.NewNop(), src, node)

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.Equal(t, 2, node.pool.Count())

	src.mu.Lock()
	delete(src.txs, a.TxHash())
	src.txs[c.TxHash()] = c
	src.mu.Unlock()

	require.NoError(t, s.SyncOnce(context.Background()))
	assert.Equal(t, 2, node.pool.Count())
	_, ok := node.pool.Lookup(a.TxHash())
	assert.False(t, ok)
	_, ok = node.pool.Lookup(c.TxHash())
	assert.True(t, ok)
}

func TestSyncerRunStops(t *testing.T) {
	src := &fakeSource{txs: map[chainhash.Hash]*wire.MsgTx{}}
	s := NewSyncer(&config.MempoolConfig{PollInterval: time.Millisecond, FetchWorkers: 1}, zap.NewNop(), src, &lockedPool{pool: New()})

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	cancel()

	select {
	case <-s.Finish:
	case <-time.After(5 * time.Second):
		t.Fatal("syncer did not stop")
	}
}
