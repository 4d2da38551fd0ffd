// Package mempool mirrors the node's unconfirmed transactions.
//
// Pool has no locking of its own. Every access must be serialized by the
// owner, which in this application is the coarse lock of chain.Node.
package mempool

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/wx-shi/utxo-rest/internal/model"
)

type entry struct {
	tx    *wire.MsgTx
	added time.Time
}

// Pool is the set of unconfirmed transactions and the outpoints they spend.
type Pool struct {
	txs    map[chainhash.Hash]*entry
	spends map[wire.OutPoint]chainhash.Hash
}

func New() *Pool {
	return &Pool{
		txs:    make(map[chainhash.Hash]*entry),
		spends: make(map[wire.OutPoint]chainhash.Hash),
	}
}

// Add inserts tx. It returns false when the transaction is already present.
func (p *Pool) Add(tx *wire.MsgTx) bool {
	txid := tx.TxHash()
	if _, ok := p.txs[txid]; ok {
		return false
	}
	p.txs[txid] = &entry{tx: tx, added: time.Now()}
	for _, in := range tx.TxIn {
		p.spends[in.PreviousOutPoint] = txid
	}
	return true
}

// Remove drops txid and releases the outpoints it spends.
func (p *Pool) Remove(txid chainhash.Hash) bool {
	e, ok := p.txs[txid]
	if !ok {
		return false
	}
	for _, in := range e.tx.TxIn {
		if spender, ok := p.spends[in.PreviousOutPoint]; ok && spender == txid {
			delete(p.spends, in.PreviousOutPoint)
		}
	}
	delete(p.txs, txid)
	return true
}

// removeWithDescendants drops txid and every pool transaction spending its
// outputs.
func (p *Pool) removeWithDescendants(txid chainhash.Hash) int {
	e, ok := p.txs[txid]
	if !ok {
		return 0
	}
	n := 0
	if p.Remove(txid) {
		n++
	}
	for i := range e.tx.TxOut {
		if child, ok := p.spends[wire.OutPoint{Hash: txid, Index: uint32(i)}]; ok {
			n += p.removeWithDescendants(child)
		}
	}
	return n
}

// RemoveConfirmed evicts the transactions of a connected block together with
// pool transactions that conflict with it. It returns the number evicted.
func (p *Pool) RemoveConfirmed(block *wire.MsgBlock) int {
	n := 0
	for _, tx := range block.Transactions {
		if p.Remove(tx.TxHash()) {
			n++
		}
		for _, in := range tx.TxIn {
			if spender, ok := p.spends[in.PreviousOutPoint]; ok {
				n += p.removeWithDescendants(spender)
			}
		}
	}
	return n
}

// Lookup returns the unconfirmed transaction txid.
func (p *Pool) Lookup(txid chainhash.Hash) (*wire.MsgTx, bool) {
	e, ok := p.txs[txid]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// Spender returns the pool transaction spending op.
func (p *Pool) Spender(op wire.OutPoint) (chainhash.Hash, bool) {
	txid, ok := p.spends[op]
	return txid, ok
}

// Coins returns a fresh coin record for an unconfirmed transaction, or nil.
func (p *Pool) Coins(txid chainhash.Hash) *model.Coins {
	e, ok := p.txs[txid]
	if !ok {
		return nil
	}
	return model.NewCoinsFromTx(e.tx, model.MempoolHeight)
}

// PruneSpent clears the outputs of coins that pool transactions spend.
func (p *Pool) PruneSpent(txid chainhash.Hash, coins *model.Coins) {
	for i := range coins.Outputs {
		if _, ok := p.spends[wire.OutPoint{Hash: txid, Index: uint32(i)}]; ok {
			coins.Outputs[i] = nil
		}
	}
}

func (p *Pool) Count() int {
	return len(p.txs)
}

// TxIDs lists the pool as hex transaction ids.
func (p *Pool) TxIDs() []string {
	ids := make([]string, 0, len(p.txs))
	for txid := range p.txs {
		ids = append(ids, txid.String())
	}
	return ids
}
