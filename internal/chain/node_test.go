package chain

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	tmdb "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wx-shi/utxo-rest/internal/chaintest"
	"github.com/wx-shi/utxo-rest/internal/config"
	"github.com/wx-shi/utxo-rest/internal/db"
	"github.com/wx-shi/utxo-rest/internal/mempool"
	"github.com/wx-shi/utxo-rest/internal/model"
	"go.uber.org/zap"
)

func newTestNode(t *testing.T, blocks ...*wire.MsgBlock) *Node {
	t.Helper()
	return newTestNodeWith(t, []Option{WithMempoolSync(true)}, blocks...)
}

func newTestNodeWith(t *testing.T, opts []Option, blocks ...*wire.MsgBlock) *Node {
	t.Helper()
	store, err := db.NewDB(&config.DBConfig{Name: "test", Dir: t.TempDir()}, zap.NewNop(),
		db.WithBackend(tmdb.MemDBBackend))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	node := NewNode(store, mempool.New(), &chaincfg.RegressionNetParams, zap.NewNop(), opts...)
	for _, b := range blocks {
		_, err := node.ConnectBlock(b)
		require.NoError(t, err)
	}
	return node
}

func TestWarmup(t *testing.T) {
	node := newTestNode(t)
	_, warm := node.Warmup()
	assert.True(t, warm)

	node.SetWarmup("Syncing blocks 1/10")
	msg, warm := node.Warmup()
	assert.True(t, warm)
	assert.Equal(t, "Syncing blocks 1/10", msg)

	node.ClearWarmup()
	msg, warm = node.Warmup()
	assert.False(t, warm)
	assert.Empty(t, msg)
}

func TestViewNavigation(t *testing.T) {
	blocks := chaintest.Chain(3)
	node := newTestNode(t, blocks...)

	err := node.View(func(v *View) error {
		height, hash, err := v.Height()
		require.NoError(t, err)
		assert.Equal(t, int32(2), height)
		assert.Equal(t, blocks[2].BlockHash(), *hash)

		h0 := blocks[0].BlockHash()
		idx, err := v.LookupBlockIndex(&h0)
		require.NoError(t, err)
		require.NotNil(t, idx)

		var seen []int32
		for idx != nil {
			ok, err := v.Contains(idx)
			require.NoError(t, err)
			assert.True(t, ok)
			seen = append(seen, idx.Height)
			idx, err = v.Next(idx)
			require.NoError(t, err)
		}
		assert.Equal(t, []int32{0, 1, 2}, seen)

		tip, err := v.Tip()
		require.NoError(t, err)
		mt, err := v.MedianTime(tip)
		require.NoError(t, err)
		assert.Equal(t, blocks[1].Header.Timestamp.Unix(), mt.Unix())
		return nil
	})
	require.NoError(t, err)
}

func TestEmptyViewHeight(t *testing.T) {
	node := newTestNode(t)
	_ = node.View(func(v *View) error {
		height, _, err := v.Height()
		require.NoError(t, err)
		assert.Equal(t, int32(-1), height)
		return nil
	})
}

func TestGetTransaction(t *testing.T) {
	blocks := chaintest.Chain(2)
	node := newTestNode(t, blocks...)

	funding := blocks[1].Transactions[0]
	unconfirmed := chaintest.Spend([]wire.OutPoint{chaintest.OutPoint(funding, 0)},
		wire.NewTxOut(btcutil.SatoshiPerBitcoin, chaintest.Script))
	node.UpdateMempool(func(pool *mempool.Pool) { pool.Add(unconfirmed) })

	_ = node.View(func(v *View) error {
		txid := funding.TxHash()
		tx, blockHash, err := v.GetTransaction(&txid)
		require.NoError(t, err)
		require.NotNil(t, tx)
		assert.Equal(t, blocks[1].BlockHash(), *blockHash)

		txid = unconfirmed.TxHash()
		tx, blockHash, err = v.GetTransaction(&txid)
		require.NoError(t, err)
		assert.Equal(t, unconfirmed, tx)
		assert.Nil(t, blockHash)

		txid[0] ^= 0xff
		tx, _, err = v.GetTransaction(&txid)
		require.NoError(t, err)
		assert.Nil(t, tx)
		assert.Equal(t, 1, v.MempoolCount())
		return nil
	})
}

func TestCoinsView(t *testing.T) {
	blocks := chaintest.Chain(2)
	node := newTestNode(t, blocks...)

	funding := blocks[1].Transactions[0]
	fundingHash := funding.TxHash()
	spend := chaintest.Spend([]wire.OutPoint{chaintest.OutPoint(funding, 0)},
		wire.NewTxOut(btcutil.SatoshiPerBitcoin, chaintest.Script))
	spendHash := spend.TxHash()
	node.UpdateMempool(func(pool *mempool.Pool) { pool.Add(spend) })

	_ = node.View(func(v *View) error {
		confirmed := v.Coins(false)
		coins, err := confirmed.GetCoins(&fundingHash)
		require.NoError(t, err)
		require.NotNil(t, coins)
		assert.True(t, coins.IsAvailable(0), "confirmed view ignores the mempool")

		coins, err = confirmed.GetCoins(&spendHash)
		require.NoError(t, err)
		assert.Nil(t, coins)

		overlay := v.Coins(true)
		coins, err = overlay.GetCoins(&fundingHash)
		require.NoError(t, err)
		require.NotNil(t, coins)
		assert.False(t, coins.IsAvailable(0), "spent by the mempool")

		coins, err = overlay.GetCoins(&spendHash)
		require.NoError(t, err)
		require.NotNil(t, coins)
		assert.Equal(t, model.MempoolHeight, coins.Height)
		assert.True(t, coins.IsAvailable(0))

		// the overlay must not write through to the store
		coins, err = confirmed.GetCoins(&fundingHash)
		require.NoError(t, err)
		assert.True(t, coins.IsAvailable(0))
		return nil
	})
}

func TestConnectEvictsAndDisconnectRestores(t *testing.T) {
	blocks := chaintest.Chain(2)
	node := newTestNode(t, blocks...)

	funding := blocks[1].Transactions[0]
	spend := chaintest.Spend([]wire.OutPoint{chaintest.OutPoint(funding, 0)},
		wire.NewTxOut(btcutil.SatoshiPerBitcoin, chaintest.Script))
	node.UpdateMempool(func(pool *mempool.Pool) { pool.Add(spend) })

	b2 := chaintest.Block(blocks[1].BlockHash(), 2, 0,
		chaintest.Coinbase(2, 50*btcutil.SatoshiPerBitcoin, chaintest.Script), spend)
	_, err := node.ConnectBlock(b2)
	require.NoError(t, err)
	_ = node.View(func(v *View) error {
		assert.Equal(t, 0, v.MempoolCount())
		return nil
	})

	idx, err := node.DisconnectTip()
	require.NoError(t, err)
	assert.Equal(t, b2.BlockHash(), idx.Hash)
	_ = node.View(func(v *View) error {
		assert.Equal(t, 1, v.MempoolCount())
		height, _, err := v.Height()
		require.NoError(t, err)
		assert.Equal(t, int32(1), height)
		return nil
	})
}

func TestDisconnectWithoutMempoolSync(t *testing.T) {
	blocks := chaintest.Chain(2)
	node := newTestNodeWith(t, nil, blocks...)

	funding := blocks[1].Transactions[0]
	spend := chaintest.Spend([]wire.OutPoint{chaintest.OutPoint(funding, 0)},
		wire.NewTxOut(btcutil.SatoshiPerBitcoin, chaintest.Script))
	b2 := chaintest.Block(blocks[1].BlockHash(), 2, 0,
		chaintest.Coinbase(2, 50*btcutil.SatoshiPerBitcoin, chaintest.Script), spend)
	_, err := node.ConnectBlock(b2)
	require.NoError(t, err)

	_, err = node.DisconnectTip()
	require.NoError(t, err)
	_ = node.View(func(v *View) error {
		assert.Equal(t, 0, v.MempoolCount())
		txid := spend.TxHash()
		tx, _, err := v.GetTransaction(&txid)
		require.NoError(t, err)
		assert.Nil(t, tx)
		return nil
	})
}
