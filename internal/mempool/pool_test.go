package mempool

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wx-shi/utxo-rest/internal/chaintest"
	"github.com/wx-shi/utxo-rest/internal/model"
)

func TestPoolAddRemove(t *testing.T) {
	pool := New()
	confirmed := wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}
	parent := chaintest.Spend([]wire.OutPoint{confirmed},
		wire.NewTxOut(10, chaintest.Script), wire.NewTxOut(20, chaintest.Script))

	require.True(t, pool.Add(parent))
	assert.False(t, pool.Add(parent))
	assert.Equal(t, 1, pool.Count())

	spender, ok := pool.Spender(confirmed)
	require.True(t, ok)
	assert.Equal(t, parent.TxHash(), spender)

	got, ok := pool.Lookup(parent.TxHash())
	require.True(t, ok)
	assert.Equal(t, parent, got)
	assert.Equal(t, []string{parent.TxHash().String()}, pool.TxIDs())

	require.True(t, pool.Remove(parent.TxHash()))
	assert.False(t, pool.Remove(parent.TxHash()))
	_, ok = pool.Spender(confirmed)
	assert.False(t, ok)
	assert.Equal(t, 0, pool.Count())
}

func TestPoolCoinsAndPrune(t *testing.T) {
	pool := New()
	parent := chaintest.Spend([]wire.OutPoint{{Hash: chainhash.Hash{1}}},
		wire.NewTxOut(10, chaintest.Script), wire.NewTxOut(20, chaintest.Script))
	child := chaintest.Spend([]wire.OutPoint{chaintest.OutPoint(parent, 1)}, wire.NewTxOut(15, chaintest.Script))
	pool.Add(parent)
	pool.Add(child)

	coins := pool.Coins(parent.TxHash())
	require.NotNil(t, coins)
	assert.Equal(t, model.MempoolHeight, coins.Height)
	assert.True(t, coins.IsAvailable(1))

	pool.PruneSpent(parent.TxHash(), coins)
	assert.True(t, coins.IsAvailable(0))
	assert.False(t, coins.IsAvailable(1))

	assert.Nil(t, pool.Coins(chainhash.Hash{9}))
}

func TestPoolRemoveConfirmed(t *testing.T) {
	pool := New()
	shared := wire.OutPoint{Hash: chainhash.Hash{1}}

	mined := chaintest.Spend([]wire.OutPoint{{Hash: chainhash.Hash{2}}}, wire.NewTxOut(5, chaintest.Script))
	conflict := chaintest.Spend([]wire.OutPoint{shared}, wire.NewTxOut(7, chaintest.Script))
	descendant := chaintest.Spend([]wire.OutPoint{chaintest.OutPoint(conflict, 0)}, wire.NewTxOut(6, chaintest.Script))
	unrelated := chaintest.Spend([]wire.OutPoint{{Hash: chainhash.Hash{3}}}, wire.NewTxOut(1, chaintest.Script))
	for _, tx := range []*wire.MsgTx{mined, conflict, descendant, unrelated} {
		pool.Add(tx)
	}

	doubleSpend := chaintest.Spend([]wire.OutPoint{shared}, wire.NewTxOut(8, chaintest.Script))
	block := chaintest.Block(chainhash.Hash{}, 1, 0, chaintest.Coinbase(1, 1, chaintest.Script), mined, doubleSpend)

	assert.Equal(t, 3, pool.RemoveConfirmed(block))
	assert.Equal(t, 1, pool.Count())
	_, ok := pool.Lookup(unrelated.TxHash())
	assert.True(t, ok)
}
