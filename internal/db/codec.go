package db

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/wx-shi/utxo-rest/internal/model"
)

// Records are stored with the node's own encoding primitives: fixed-size
// little-endian integers plus CompactSize-prefixed byte strings.

const pver = wire.ProtocolVersion

type spentCoin struct {
	outpoint wire.OutPoint
	version  uint32
	height   uint32
	coinbase bool
	out      wire.TxOut
}

type nameUndo struct {
	name []byte
	prev *model.NameData // nil when the name did not exist
}

type blockUndo struct {
	txs   [][]spentCoin // one entry per non-coinbase tx, inputs in order
	names []nameUndo
}

func writeOutPoint(w io.Writer, op *wire.OutPoint) error {
	if _, err := w.Write(op.Hash[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, op.Index)
}

func readOutPoint(r io.Reader, op *wire.OutPoint) error {
	if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
		return err
	}
	return binary.Read(r, binary.LittleEndian, &op.Index)
}

func writeTxOut(w io.Writer, out *wire.TxOut) error {
	if err := binary.Write(w, binary.LittleEndian, out.Value); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, pver, out.PkScript)
}

func readTxOut(r io.Reader, out *wire.TxOut) error {
	if err := binary.Read(r, binary.LittleEndian, &out.Value); err != nil {
		return err
	}
	script, err := wire.ReadVarBytes(r, pver, maxScriptSize, "pkscript")
	if err != nil {
		return err
	}
	out.PkScript = script
	return nil
}

func encodeBlockIndex(idx *model.BlockIndex) ([]byte, error) {
	var buf bytes.Buffer
	if err := idx.Header.Serialize(&buf); err != nil {
		return nil, err
	}
	work := idx.ChainWork
	if work == nil {
		work = new(big.Int)
	}
	for _, v := range []interface{}{idx.Height, uint32(idx.Status), idx.NumTx} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	if err := wire.WriteVarBytes(&buf, pver, work.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBlockIndex(b []byte) (*model.BlockIndex, error) {
	r := bytes.NewReader(b)
	idx := &model.BlockIndex{}
	if err := idx.Header.Deserialize(r); err != nil {
		return nil, errors.Wrap(err, "block index header")
	}
	var status uint32
	for _, v := range []interface{}{&idx.Height, &status, &idx.NumTx} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, errors.Wrap(err, "block index fields")
		}
	}
	idx.Status = model.BlockStatus(status)
	work, err := wire.ReadVarBytes(r, pver, 64, "chainwork")
	if err != nil {
		return nil, errors.Wrap(err, "block index chainwork")
	}
	idx.ChainWork = new(big.Int).SetBytes(work)
	idx.Hash = idx.Header.BlockHash()
	return idx, nil
}

func encodeCoins(c *model.Coins) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range []interface{}{c.Version, c.Height, c.Coinbase} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	if err := wire.WriteVarInt(&buf, pver, uint64(len(c.Outputs))); err != nil {
		return nil, err
	}
	for _, out := range c.Outputs {
		if out == nil {
			buf.WriteByte(0)
			continue
		}
		buf.WriteByte(1)
		if err := writeTxOut(&buf, out); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeCoins(b []byte) (*model.Coins, error) {
	r := bytes.NewReader(b)
	c := &model.Coins{}
	for _, v := range []interface{}{&c.Version, &c.Height, &c.Coinbase} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, errors.Wrap(err, "coins header")
		}
	}
	n, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return nil, errors.Wrap(err, "coins count")
	}
	if n > uint64(r.Len()) {
		return nil, errors.Errorf("coins count %d exceeds record size", n)
	}
	c.Outputs = make([]*wire.TxOut, n)
	for i := range c.Outputs {
		present, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "coins slot")
		}
		if present == 0 {
			continue
		}
		out := &wire.TxOut{}
		if err := readTxOut(r, out); err != nil {
			return nil, errors.Wrapf(err, "coins output %d", i)
		}
		c.Outputs[i] = out
	}
	return c, nil
}

func writeName(w io.Writer, nd *model.NameData) error {
	if err := wire.WriteVarBytes(w, pver, nd.Name); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, pver, nd.Value); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, nd.Height); err != nil {
		return err
	}
	if err := writeOutPoint(w, &nd.Outpoint); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, pver, nd.Script)
}

func readName(r io.Reader) (*model.NameData, error) {
	nd := &model.NameData{}
	var err error
	if nd.Name, err = wire.ReadVarBytes(r, pver, maxNameSize, "name"); err != nil {
		return nil, err
	}
	if nd.Value, err = wire.ReadVarBytes(r, pver, maxNameSize, "value"); err != nil {
		return nil, err
	}
	if err = binary.Read(r, binary.LittleEndian, &nd.Height); err != nil {
		return nil, err
	}
	if err = readOutPoint(r, &nd.Outpoint); err != nil {
		return nil, err
	}
	if nd.Script, err = wire.ReadVarBytes(r, pver, maxScriptSize, "script"); err != nil {
		return nil, err
	}
	return nd, nil
}

func encodeName(nd *model.NameData) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeName(&buf, nd); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeName(b []byte) (*model.NameData, error) {
	nd, err := readName(bytes.NewReader(b))
	return nd, errors.Wrap(err, "name record")
}

func encodeUndo(u *blockUndo) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarInt(&buf, pver, uint64(len(u.txs))); err != nil {
		return nil, err
	}
	for _, spent := range u.txs {
		if err := wire.WriteVarInt(&buf, pver, uint64(len(spent))); err != nil {
			return nil, err
		}
		for i := range spent {
			sc := &spent[i]
			if err := writeOutPoint(&buf, &sc.outpoint); err != nil {
				return nil, err
			}
			for _, v := range []interface{}{sc.version, sc.height, sc.coinbase} {
				if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
					return nil, err
				}
			}
			if err := writeTxOut(&buf, &sc.out); err != nil {
				return nil, err
			}
		}
	}
	if err := wire.WriteVarInt(&buf, pver, uint64(len(u.names))); err != nil {
		return nil, err
	}
	for _, nu := range u.names {
		if err := wire.WriteVarBytes(&buf, pver, nu.name); err != nil {
			return nil, err
		}
		if nu.prev == nil {
			buf.WriteByte(0)
			continue
		}
		buf.WriteByte(1)
		if err := writeName(&buf, nu.prev); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeUndo(b []byte) (*blockUndo, error) {
	r := bytes.NewReader(b)
	u := &blockUndo{}
	ntx, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return nil, errors.Wrap(err, "undo tx count")
	}
	if ntx > uint64(r.Len()) {
		return nil, errors.Errorf("undo tx count %d exceeds record size", ntx)
	}
	u.txs = make([][]spentCoin, ntx)
	for i := range u.txs {
		n, err := wire.ReadVarInt(r, pver)
		if err != nil {
			return nil, errors.Wrap(err, "undo input count")
		}
		if n > uint64(r.Len()) {
			return nil, errors.Errorf("undo input count %d exceeds record size", n)
		}
		spent := make([]spentCoin, n)
		for j := range spent {
			sc := &spent[j]
			if err := readOutPoint(r, &sc.outpoint); err != nil {
				return nil, errors.Wrap(err, "undo outpoint")
			}
			for _, v := range []interface{}{&sc.version, &sc.height, &sc.coinbase} {
				if err := binary.Read(r, binary.LittleEndian, v); err != nil {
					return nil, errors.Wrap(err, "undo coin")
				}
			}
			if err := readTxOut(r, &sc.out); err != nil {
				return nil, errors.Wrap(err, "undo output")
			}
		}
		u.txs[i] = spent
	}
	nnames, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return nil, errors.Wrap(err, "undo name count")
	}
	if nnames > uint64(r.Len()) {
		return nil, errors.Errorf("undo name count %d exceeds record size", nnames)
	}
	u.names = make([]nameUndo, nnames)
	for i := range u.names {
		nu := &u.names[i]
		if nu.name, err = wire.ReadVarBytes(r, pver, maxNameSize, "name"); err != nil {
			return nil, errors.Wrap(err, "undo name")
		}
		flag, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "undo name flag")
		}
		if flag == 0 {
			continue
		}
		if nu.prev, err = readName(r); err != nil {
			return nil, errors.Wrap(err, "undo name record")
		}
	}
	return u, nil
}
