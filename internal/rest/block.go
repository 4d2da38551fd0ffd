package rest

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/wx-shi/utxo-rest/internal/chain"
	"go.uber.org/zap"
)

type serializer interface {
	Serialize(w io.Writer) error
}

func serialize(s serializer) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Gateway) block(part string, _ []byte) (*Response, error) {
	return g.restBlock(part, true)
}

func (g *Gateway) blockNoTxDetails(part string, _ []byte) (*Response, error) {
	return g.restBlock(part, false)
}

func (g *Gateway) restBlock(part string, txDetails bool) (*Response, error) {
	hashStr, format := ParseDataFormat(part)
	if !supports(format, allFormats) {
		return nil, errFormatNotFound(availableFormats(allFormats...))
	}
	hash, ok := ParseHash(hashStr)
	if !ok {
		return nil, errBadRequest("Invalid hash: %s", hashStr)
	}

	var (
		block *wire.MsgBlock
		info  *blockInfo
	)
	err := g.node.View(func(v *chain.View) error {
		idx, err := v.LookupBlockIndex(hash)
		if err != nil {
			return err
		}
		if idx == nil {
			return errNotFound("%s not found", hashStr)
		}
		pruned, err := v.IsPruned()
		if err != nil {
			return err
		}
		if pruned && !idx.HaveData() && idx.NumTx > 0 {
			return errNotFound("%s not available (pruned data)", hashStr)
		}
		if block, err = v.ReadBlock(idx); err != nil {
			g.logger.Debug("ReadBlock", zap.String("hash", hashStr), zap.Error(err))
			return errNotFound("%s not found", hashStr)
		}
		if format == FormatJSON {
			info, err = blockPosition(v, idx.Hash, idx.Height)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	raw, err := serialize(block)
	if err != nil {
		return nil, err
	}
	return render(format, raw, func() (interface{}, error) {
		return blockToJSON(block, info, txDetails, g.params)
	})
}

// blockPosition locates a block relative to the active tip.
func blockPosition(v *chain.View, hash chainhash.Hash, height int32) (*blockInfo, error) {
	info := &blockInfo{hash: hash, height: height, confirmations: -1}
	idx, err := v.LookupBlockIndex(&hash)
	if err != nil || idx == nil {
		return info, err
	}
	active, err := v.Contains(idx)
	if err != nil || !active {
		return info, err
	}
	tipHeight, _, err := v.Height()
	if err != nil {
		return nil, err
	}
	info.confirmations = int64(tipHeight-height) + 1
	next, err := v.Next(idx)
	if err != nil {
		return nil, err
	}
	if next != nil {
		info.next = &next.Hash
	}
	return info, nil
}
