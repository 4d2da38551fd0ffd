package model

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtxoResultBitmap(t *testing.T) {
	tests := []struct {
		name   string
		hits   []bool
		bitmap []byte
		str    string
	}{
		{"single hit", []bool{true}, []byte{0x01}, "1"},
		{"hit then miss", []bool{true, false}, []byte{0x01}, "10"},
		{"nine bits", []bool{false, true, false, false, false, false, false, false, true}, []byte{0x02, 0x01}, "010000001"},
		{"all miss", []bool{false, false, false}, []byte{0x00}, "000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &UtxoResult{Hits: tt.hits}
			assert.Equal(t, tt.bitmap, r.Bitmap())
			assert.Equal(t, tt.str, r.BitmapString())
			assert.Len(t, r.BitmapString(), len(tt.hits))
		})
	}
}

func TestCoins(t *testing.T) {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{1}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	tx.AddTxOut(wire.NewTxOut(2000, []byte{0x52}))

	coins := NewCoinsFromTx(tx, 10)
	require.Equal(t, uint32(2), coins.Version)
	require.False(t, coins.Coinbase)
	assert.True(t, coins.IsAvailable(0))
	assert.True(t, coins.IsAvailable(1))
	assert.False(t, coins.IsAvailable(2))
	assert.False(t, coins.IsAvailable(0xffffffff))

	clone := coins.Clone()
	out := clone.Spend(1)
	require.NotNil(t, out)
	assert.Equal(t, int64(2000), out.Value)
	assert.False(t, clone.IsAvailable(1))
	assert.True(t, coins.IsAvailable(1), "clone must not alias output slots")
	assert.Nil(t, clone.Spend(1))

	clone.Spend(0)
	assert.True(t, clone.IsPruned())
	assert.False(t, coins.IsPruned())
}

func TestIsCoinbase(t *testing.T) {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), []byte{0x01}, nil))
	tx.AddTxOut(wire.NewTxOut(50, nil))
	assert.True(t, IsCoinbase(tx))
	assert.True(t, NewCoinsFromTx(tx, 0).Coinbase)
}

func TestUtxoQueryCopiesInput(t *testing.T) {
	ops := []wire.OutPoint{{Hash: chainhash.Hash{1}, Index: 2}}
	q := NewUtxoQuery(true, ops)
	ops[0].Index = 9
	assert.Equal(t, uint32(2), q.Outpoint(0).Index)
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.CheckMempool())
}
