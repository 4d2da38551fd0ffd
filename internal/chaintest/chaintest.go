// Package chaintest builds small synthetic chains for tests.
package chaintest

import (
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// RegtestBits is the proof-of-work limit of the regression test network.
const RegtestBits = 0x207fffff

// Script is a P2PKH locking script with a fixed key hash.
var Script = []byte{
	txscript.OP_DUP, txscript.OP_HASH160, 0x14,
	0x62, 0xe9, 0x07, 0xb1, 0x5c, 0xbf, 0x27, 0xd5, 0x42, 0x53,
	0x99, 0xeb, 0xf6, 0xf0, 0xfb, 0x50, 0xeb, 0xb8, 0x8f, 0x18,
	txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG,
}

var genesisTime = time.Unix(1296688602, 0)

// Coinbase returns a coinbase paying value to script. height makes the
// transaction unique.
func Coinbase(height int32, value int64, script []byte) *wire.MsgTx {
	sig, _ := txscript.NewScriptBuilder().AddInt64(int64(height)).AddInt64(0).Script()
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), sig, nil))
	tx.AddTxOut(wire.NewTxOut(value, script))
	return tx
}

// Spend returns a version 2 transaction spending prevs into outs.
func Spend(prevs []wire.OutPoint, outs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for i := range prevs {
		tx.AddTxIn(wire.NewTxIn(&prevs[i], nil, nil))
	}
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	return tx
}

// Block assembles a block on top of prev. nonce distinguishes siblings.
func Block(prev chainhash.Hash, height int32, nonce uint32, txs ...*wire.MsgTx) *wire.MsgBlock {
	utxs := make([]*btcutil.Tx, len(txs))
	for i, tx := range txs {
		utxs[i] = btcutil.NewTx(tx)
	}
	merkles := blockchain.BuildMerkleTreeStore(utxs, false)

	header := wire.NewBlockHeader(4, &prev, merkles[len(merkles)-1], RegtestBits, nonce)
	header.Timestamp = genesisTime.Add(time.Duration(height) * 10 * time.Minute)
	block := wire.NewMsgBlock(header)
	for _, tx := range txs {
		_ = block.AddTransaction(tx)
	}
	return block
}

// Chain builds a linear chain of n blocks, each with a single coinbase
// paying 50 coins to Script.
func Chain(n int) []*wire.MsgBlock {
	blocks := make([]*wire.MsgBlock, 0, n)
	var prev chainhash.Hash
	for h := 0; h < n; h++ {
		b := Block(prev, int32(h), 0, Coinbase(int32(h), 50*btcutil.SatoshiPerBitcoin, Script))
		blocks = append(blocks, b)
		prev = b.BlockHash()
	}
	return blocks
}

// OutPoint is a shorthand for the outpoint of output n of tx.
func OutPoint(tx *wire.MsgTx, n uint32) wire.OutPoint {
	return wire.OutPoint{Hash: tx.TxHash(), Index: n}
}
