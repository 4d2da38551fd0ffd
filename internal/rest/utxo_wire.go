package rest

import (
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/wx-shi/utxo-rest/internal/model"
)

const (
	pver = wire.ProtocolVersion

	// maxScriptSize bounds a decoded locking script.
	maxScriptSize = 10000
)

// maxOutpointsError reports a query over the outpoint limit.
func maxOutpointsError(tried uint64) *Error {
	return errInternal("Error: max outpoints exceeded (max: %d, tried: %d)", model.MaxUtxoOutpoints, tried)
}

// ReadUtxoRequest decodes a binary query: a check-mempool flag followed by a
// count-prefixed list of outpoints. A count above the limit fails with a
// *Error before any outpoint is read.
func ReadUtxoRequest(r io.Reader) (*model.UtxoQuery, error) {
	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return nil, errors.Wrap(err, "check mempool flag")
	}
	count, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return nil, errors.Wrap(err, "outpoint count")
	}
	if count > model.MaxUtxoOutpoints {
		return nil, maxOutpointsError(count)
	}
	outpoints := make([]wire.OutPoint, count)
	for i := range outpoints {
		op := &outpoints[i]
		if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
			return nil, errors.Wrapf(err, "outpoint %d hash", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &op.Index); err != nil {
			return nil, errors.Wrapf(err, "outpoint %d index", i)
		}
	}
	return model.NewUtxoQuery(flag[0] != 0, outpoints), nil
}

// WriteUtxoRequest is the inverse of ReadUtxoRequest.
func WriteUtxoRequest(w io.Writer, q *model.UtxoQuery) error {
	var flag byte
	if q.CheckMempool() {
		flag = 1
	}
	if _, err := w.Write([]byte{flag}); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, pver, uint64(q.Len())); err != nil {
		return err
	}
	for i := 0; i < q.Len(); i++ {
		op := q.Outpoint(i)
		if _, err := w.Write(op.Hash[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, op.Index); err != nil {
			return err
		}
	}
	return nil
}

// WriteUtxoResponse serializes res: height, tip hash, bitmap bytes, then
// the coins of the hits.
func WriteUtxoResponse(w io.Writer, res *model.UtxoResult) error {
	if err := binary.Write(w, binary.LittleEndian, res.ChainHeight); err != nil {
		return err
	}
	if _, err := w.Write(res.ChainTip[:]); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, pver, res.Bitmap()); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, pver, uint64(len(res.Coins))); err != nil {
		return err
	}
	for i := range res.Coins {
		c := &res.Coins[i]
		if err := binary.Write(w, binary.LittleEndian, c.TxVersion); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, c.Height); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, c.Out.Value); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, pver, c.Out.PkScript); err != nil {
			return err
		}
	}
	return nil
}

// ReadUtxoResponse decodes a response to a query of n outpoints.
func ReadUtxoResponse(r io.Reader, n int) (*model.UtxoResult, error) {
	res := &model.UtxoResult{}
	if err := binary.Read(r, binary.LittleEndian, &res.ChainHeight); err != nil {
		return nil, errors.Wrap(err, "chain height")
	}
	if _, err := io.ReadFull(r, res.ChainTip[:]); err != nil {
		return nil, errors.Wrap(err, "chain tip")
	}
	bitmap, err := wire.ReadVarBytes(r, pver, model.MaxUtxoOutpoints, "bitmap")
	if err != nil {
		return nil, errors.Wrap(err, "bitmap")
	}
	if len(bitmap) != (n+7)/8 {
		return nil, errors.Errorf("bitmap is %d bytes for %d outpoints", len(bitmap), n)
	}
	res.Hits = make([]bool, n)
	hits := 0
	for i := range res.Hits {
		res.Hits[i] = bitmap[i/8]&(1<<uint(i%8)) != 0
		if res.Hits[i] {
			hits++
		}
	}

	count, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return nil, errors.Wrap(err, "coin count")
	}
	if count != uint64(hits) {
		return nil, errors.Errorf("%d coins for %d hits", count, hits)
	}
	res.Coins = make([]model.Coin, count)
	for i := range res.Coins {
		c := &res.Coins[i]
		for _, v := range []interface{}{&c.TxVersion, &c.Height, &c.Out.Value} {
			if err := binary.Read(r, binary.LittleEndian, v); err != nil {
				return nil, errors.Wrapf(err, "coin %d", i)
			}
		}
		if c.Out.PkScript, err = wire.ReadVarBytes(r, pver, maxScriptSize, "pkscript"); err != nil {
			return nil, errors.Wrapf(err, "coin %d script", i)
		}
	}
	return res, nil
}
