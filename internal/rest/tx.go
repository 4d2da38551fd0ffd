package rest

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/wx-shi/utxo-rest/internal/chain"
	"github.com/wx-shi/utxo-rest/internal/db"
)

// tx serves /rest/tx/<txid>, looking in the mempool before the chain.
func (g *Gateway) tx(part string, _ []byte) (*Response, error) {
	hashStr, format := ParseDataFormat(part)
	if !supports(format, allFormats) {
		return nil, errFormatNotFound(availableFormats(allFormats...))
	}
	hash, ok := ParseHash(hashStr)
	if !ok {
		return nil, errBadRequest("Invalid hash: %s", hashStr)
	}

	var (
		tx        *wire.MsgTx
		info      *blockInfo
		blockTime int64
	)
	err := g.node.View(func(v *chain.View) error {
		var (
			blockHash *chainhash.Hash
			err       error
		)
		tx, blockHash, err = v.GetTransaction(hash)
		if err != nil || tx == nil || blockHash == nil || format != FormatJSON {
			return err
		}
		idx, err := v.LookupBlockIndex(blockHash)
		if err != nil || idx == nil {
			return err
		}
		blockTime = idx.Header.Timestamp.Unix()
		info, err = blockPosition(v, idx.Hash, idx.Height)
		return err
	})
	// the confirming block may have been pruned
	if errors.Is(err, db.ErrNotFound) {
		return nil, errNotFound("%s not found", hashStr)
	}
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errNotFound("%s not found", hashStr)
	}

	raw, err := serialize(tx)
	if err != nil {
		return nil, err
	}
	return render(format, raw, func() (interface{}, error) {
		res := txToJSON(tx, raw, info, blockTime, g.params)
		return &res, nil
	})
}
