package model

import (
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MempoolHeight is the height reported for outputs that only exist in the
// mempool.
const MempoolHeight uint32 = 0x7FFFFFFF

// MaxUtxoOutpoints caps the number of outpoints a single UTXO query may carry.
const MaxUtxoOutpoints = 15

// Coins holds the outputs of one transaction. A nil entry in Outputs has been
// spent.
type Coins struct {
	Version  uint32
	Height   uint32
	Coinbase bool
	Outputs  []*wire.TxOut
}

// NewCoinsFromTx builds the coin record created by tx at height.
func NewCoinsFromTx(tx *wire.MsgTx, height uint32) *Coins {
	c := &Coins{
		Version:  uint32(tx.Version),
		Height:   height,
		Coinbase: isCoinbase(tx),
		Outputs:  make([]*wire.TxOut, len(tx.TxOut)),
	}
	for i, out := range tx.TxOut {
		c.Outputs[i] = &wire.TxOut{Value: out.Value, PkScript: out.PkScript}
	}
	return c
}

// IsAvailable reports whether output n exists and is unspent.
func (c *Coins) IsAvailable(n uint32) bool {
	return int64(n) < int64(len(c.Outputs)) && c.Outputs[n] != nil
}

// Spend marks output n spent and returns the output that was removed, or nil
// when it was not available.
func (c *Coins) Spend(n uint32) *wire.TxOut {
	if !c.IsAvailable(n) {
		return nil
	}
	out := c.Outputs[n]
	c.Outputs[n] = nil
	return out
}

// IsPruned reports whether every output has been spent.
func (c *Coins) IsPruned() bool {
	for _, out := range c.Outputs {
		if out != nil {
			return false
		}
	}
	return true
}

// Clone returns a copy whose output slots can be changed independently.
// The outputs themselves are shared and must be treated as read-only.
func (c *Coins) Clone() *Coins {
	cp := *c
	cp.Outputs = make([]*wire.TxOut, len(c.Outputs))
	copy(cp.Outputs, c.Outputs)
	return &cp
}

func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prev := tx.TxIn[0].PreviousOutPoint
	return prev.Index == wire.MaxPrevOutIndex && prev.Hash == (chainhash.Hash{})
}

// IsCoinbase reports whether tx is a coinbase transaction.
func IsCoinbase(tx *wire.MsgTx) bool {
	return isCoinbase(tx)
}

// Coin is the snapshot of a single unspent output returned by a UTXO query.
type Coin struct {
	TxVersion uint32
	Height    uint32
	Out       wire.TxOut
}

// UtxoQuery is the parsed input of a UTXO query.
type UtxoQuery struct {
	checkMempool bool
	outpoints    []wire.OutPoint
}

func NewUtxoQuery(checkMempool bool, outpoints []wire.OutPoint) *UtxoQuery {
	ops := make([]wire.OutPoint, len(outpoints))
	copy(ops, outpoints)
	return &UtxoQuery{checkMempool: checkMempool, outpoints: ops}
}

func (q *UtxoQuery) CheckMempool() bool { return q.checkMempool }

func (q *UtxoQuery) Len() int { return len(q.outpoints) }

// Outpoint returns the i-th queried outpoint.
func (q *UtxoQuery) Outpoint(i int) wire.OutPoint { return q.outpoints[i] }

// UtxoResult is the answer to a UTXO query. Hits has one entry per queried
// outpoint, Coins one entry per hit in the same order.
type UtxoResult struct {
	ChainHeight int32
	ChainTip    chainhash.Hash
	Hits        []bool
	Coins       []Coin
}

// Bitmap packs Hits into bytes, outpoint 0 in the lowest bit of byte 0.
func (r *UtxoResult) Bitmap() []byte {
	bitmap := make([]byte, (len(r.Hits)+7)/8)
	for i, hit := range r.Hits {
		if hit {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	return bitmap
}

// BitmapString renders Hits as '0'/'1' characters in outpoint order.
func (r *UtxoResult) BitmapString() string {
	var sb strings.Builder
	sb.Grow(len(r.Hits))
	for _, hit := range r.Hits {
		if hit {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// BlockStatus flags on a block index entry.
type BlockStatus uint32

const (
	StatusHaveData BlockStatus = 1 << iota
	StatusHaveUndo
)

// BlockIndex describes a known block, active or not.
type BlockIndex struct {
	Hash      chainhash.Hash
	Height    int32
	Header    wire.BlockHeader
	Status    BlockStatus
	NumTx     uint32
	ChainWork *big.Int
}

func (b *BlockIndex) HaveData() bool {
	return b.Status&StatusHaveData != 0
}

// NameData is the current registration of a name.
type NameData struct {
	Name     []byte
	Value    []byte
	Height   uint32
	Outpoint wire.OutPoint
	Script   []byte
}

type HealthReply struct {
	Status  string `json:"status"`
	Warmup  string `json:"warmup,omitempty"`
	Height  int32  `json:"height"`
	Tip     string `json:"tip"`
	Mempool int    `json:"mempool"`
}
