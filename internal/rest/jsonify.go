package rest

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
	"github.com/wx-shi/utxo-rest/pkg"
)

// amount renders satoshis as a fixed eight-decimal JSON number.
type amount int64

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.New(int64(a), -8).StringFixed(8)), nil
}

// blockInfo is what JSON rendering needs to know about a block's place in
// the chain, captured under the node lock.
type blockInfo struct {
	hash          chainhash.Hash
	height        int32
	confirmations int64 // -1 when not on the active chain
	next          *chainhash.Hash
}

// difficulty is the ratio of the network's minimum target to bits.
func difficulty(bits uint32, params *chaincfg.Params) float64 {
	limit := blockchain.CompactToBig(params.PowLimitBits)
	target := blockchain.CompactToBig(bits)
	if target.Sign() <= 0 {
		return 0
	}
	ratio := new(big.Rat).SetFrac(limit, target)
	d, _ := strconv.ParseFloat(ratio.FloatString(8), 64)
	return d
}

func vinToJSON(tx *wire.MsgTx) []btcjson.Vin {
	vins := make([]btcjson.Vin, len(tx.TxIn))
	coinbase := blockchain.IsCoinBaseTx(tx)
	for i, in := range tx.TxIn {
		vin := btcjson.Vin{Sequence: in.Sequence}
		if len(in.Witness) > 0 {
			vin.Witness = make([]string, len(in.Witness))
			for j, item := range in.Witness {
				vin.Witness[j] = hex.EncodeToString(item)
			}
		}
		if coinbase {
			vin.Coinbase = hex.EncodeToString(in.SignatureScript)
		} else {
			disasm, _ := txscript.DisasmString(in.SignatureScript)
			vin.Txid = in.PreviousOutPoint.Hash.String()
			vin.Vout = in.PreviousOutPoint.Index
			vin.ScriptSig = &btcjson.ScriptSig{
				Asm: disasm,
				Hex: hex.EncodeToString(in.SignatureScript),
			}
		}
		vins[i] = vin
	}
	return vins
}

func voutToJSON(tx *wire.MsgTx, params *chaincfg.Params) []btcjson.Vout {
	vouts := make([]btcjson.Vout, len(tx.TxOut))
	for i, out := range tx.TxOut {
		vouts[i] = btcjson.Vout{
			Value:        btcutil.Amount(out.Value).ToBTC(),
			N:            uint32(i),
			ScriptPubKey: pkg.ScriptPubKeyResult(out.PkScript, params),
		}
	}
	return vouts
}

// txToJSON renders tx. blk is nil for unconfirmed transactions.
func txToJSON(tx *wire.MsgTx, raw []byte, blk *blockInfo, blockTime int64, params *chaincfg.Params) btcjson.TxRawResult {
	weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx))
	res := btcjson.TxRawResult{
		Hex:      hex.EncodeToString(raw),
		Txid:     tx.TxHash().String(),
		Hash:     tx.WitnessHash().String(),
		Size:     int32(tx.SerializeSize()),
		Vsize:    int32((weight + blockchain.WitnessScaleFactor - 1) / blockchain.WitnessScaleFactor),
		Weight:   int32(weight),
		Version:  uint32(tx.Version),
		LockTime: tx.LockTime,
		Vin:      vinToJSON(tx),
		Vout:     voutToJSON(tx, params),
	}
	if blk != nil {
		res.BlockHash = blk.hash.String()
		if blk.confirmations > 0 {
			res.Confirmations = uint64(blk.confirmations)
			res.Time = blockTime
			res.Blocktime = blockTime
		}
	}
	return res
}

func blockToJSON(block *wire.MsgBlock, blk *blockInfo, txDetails bool, params *chaincfg.Params) (interface{}, error) {
	hdr := &block.Header
	var next string
	if blk.next != nil {
		next = blk.next.String()
	}
	size := block.SerializeSize()
	weight := blockchain.GetBlockWeight(btcutil.NewBlock(block))

	if !txDetails {
		txids := make([]string, len(block.Transactions))
		for i, tx := range block.Transactions {
			txids[i] = tx.TxHash().String()
		}
		return &btcjson.GetBlockVerboseResult{
			Hash:          blk.hash.String(),
			Confirmations: blk.confirmations,
			StrippedSize:  int32(block.SerializeSizeStripped()),
			Size:          int32(size),
			Weight:        int32(weight),
			Height:        int64(blk.height),
			Version:       hdr.Version,
			VersionHex:    fmt.Sprintf("%08x", hdr.Version),
			MerkleRoot:    hdr.MerkleRoot.String(),
			Tx:            txids,
			Time:          hdr.Timestamp.Unix(),
			Nonce:         hdr.Nonce,
			Bits:          strconv.FormatInt(int64(hdr.Bits), 16),
			Difficulty:    difficulty(hdr.Bits, params),
			PreviousHash:  hdr.PrevBlock.String(),
			NextHash:      next,
		}, nil
	}

	txs := make([]btcjson.TxRawResult, len(block.Transactions))
	for i, tx := range block.Transactions {
		raw, err := serialize(tx)
		if err != nil {
			return nil, err
		}
		txs[i] = txToJSON(tx, raw, blk, hdr.Timestamp.Unix(), params)
	}
	return &btcjson.GetBlockVerboseTxResult{
		Hash:          blk.hash.String(),
		Confirmations: blk.confirmations,
		StrippedSize:  int32(block.SerializeSizeStripped()),
		Size:          int32(size),
		Weight:        int32(weight),
		Height:        int64(blk.height),
		Version:       hdr.Version,
		VersionHex:    fmt.Sprintf("%08x", hdr.Version),
		MerkleRoot:    hdr.MerkleRoot.String(),
		Tx:            txs,
		Time:          hdr.Timestamp.Unix(),
		Nonce:         hdr.Nonce,
		Bits:          strconv.FormatInt(int64(hdr.Bits), 16),
		Difficulty:    difficulty(hdr.Bits, params),
		PreviousHash:  hdr.PrevBlock.String(),
		NextHash:      next,
	}, nil
}
