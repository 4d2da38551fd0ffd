package rest

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/wx-shi/utxo-rest/internal/chain"
	"github.com/wx-shi/utxo-rest/internal/model"
	"github.com/wx-shi/utxo-rest/pkg"
)

const checkMempoolToken = "checkmempool"

// UtxoJSON is the JSON rendering of a UTXO query result.
type UtxoJSON struct {
	ChainHeight  int32      `json:"chainHeight"`
	ChaintipHash string     `json:"chaintipHash"`
	Bitmap       string     `json:"bitmap"`
	Utxos        []CoinJSON `json:"utxos"`
}

type CoinJSON struct {
	TxVersion    int32                      `json:"txvers"`
	Height       int32                      `json:"height"`
	Value        amount                     `json:"value"`
	ScriptPubKey btcjson.ScriptPubKeyResult `json:"scriptPubKey"`
}

// parseURIOutpoints reads "[checkmempool/]<txid>-<n>/..." from the URI. It
// returns nil when the URI carries no outpoint segments at all.
func parseURIOutpoints(segments []string) (*model.UtxoQuery, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	checkMempool := segments[0] == checkMempoolToken
	if checkMempool {
		segments = segments[1:]
	}
	if len(segments) > model.MaxUtxoOutpoints {
		return nil, maxOutpointsError(uint64(len(segments)))
	}

	outpoints := make([]wire.OutPoint, 0, len(segments))
	for _, seg := range segments {
		txid, n, ok := strings.Cut(seg, "-")
		if !ok || !isHex(txid) || len(txid) > 2*chainhash.HashSize {
			return nil, errBadRequest("Parse error")
		}
		index, err := strconv.ParseInt(n, 10, 32)
		if err != nil {
			return nil, errBadRequest("Parse error")
		}
		hash, err := chainhash.NewHashFromStr(txid)
		if err != nil {
			return nil, errBadRequest("Parse error")
		}
		outpoints = append(outpoints, wire.OutPoint{Hash: *hash, Index: uint32(index)})
	}
	if len(outpoints) == 0 {
		return nil, errInternal("Error: empty request")
	}
	return model.NewUtxoQuery(checkMempool, outpoints), nil
}

// parseBodyOutpoints reads a binary query, hex-decoding it first for
// FormatHex.
func parseBodyOutpoints(body []byte, format Format) (*model.UtxoQuery, error) {
	if format == FormatHex {
		decoded, err := hex.DecodeString(strings.TrimSpace(string(body)))
		if err != nil {
			return nil, errInternal("Parse error")
		}
		body = decoded
	}
	q, err := ReadUtxoRequest(bytes.NewReader(body))
	if err != nil {
		var restErr *Error
		if errors.As(err, &restErr) {
			return nil, restErr
		}
		return nil, errInternal("Parse error")
	}
	return q, nil
}

// parseUtxoQuery resolves the query from exactly one of the URI and the
// body.
func parseUtxoQuery(param string, body []byte, format Format) (*model.UtxoQuery, error) {
	var segments []string
	if len(param) > 1 {
		segments = strings.Split(param[1:], "/")
	}
	if len(body) == 0 && len(segments) == 0 {
		return nil, errInternal("Error: empty request")
	}

	uriQuery, err := parseURIOutpoints(segments)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatBinary, FormatHex:
		if len(body) == 0 {
			return uriQuery, nil
		}
		if uriQuery != nil {
			return nil, errInternal("Combination of URI scheme inputs and raw post data is not allowed")
		}
		return parseBodyOutpoints(body, format)
	case FormatJSON:
		if len(body) > 0 {
			if uriQuery != nil {
				return nil, errInternal("Combination of URI scheme inputs and raw post data is not allowed")
			}
			return nil, errBadRequest("Error: empty request")
		}
		if uriQuery == nil {
			return nil, errInternal("Error: empty request")
		}
		return uriQuery, nil
	}
	return nil, errFormatNotFound(availableFormats(allFormats...))
}

// QueryUtxos resolves every outpoint of q against one locked snapshot of
// the chain, and of the mempool when q asks for it.
func QueryUtxos(v *chain.View, q *model.UtxoQuery) (*model.UtxoResult, error) {
	res := &model.UtxoResult{Hits: make([]bool, q.Len())}
	coinsView := v.Coins(q.CheckMempool())
	for i := 0; i < q.Len(); i++ {
		op := q.Outpoint(i)
		coins, err := coinsView.GetCoins(&op.Hash)
		if err != nil {
			return nil, err
		}
		if coins == nil || !coins.IsAvailable(op.Index) {
			continue
		}
		res.Hits[i] = true
		res.Coins = append(res.Coins, model.Coin{
			TxVersion: coins.Version,
			Height:    coins.Height,
			Out:       *coins.Outputs[op.Index],
		})
	}

	height, tip, err := v.Height()
	if err != nil {
		return nil, err
	}
	res.ChainHeight = height
	res.ChainTip = *tip
	return res, nil
}

// getUtxos serves /rest/getutxos.
func (g *Gateway) getUtxos(part string, body []byte) (*Response, error) {
	param, format := ParseDataFormat(part)
	if !supports(format, allFormats) {
		return nil, errFormatNotFound(availableFormats(allFormats...))
	}
	q, err := parseUtxoQuery(param, body, format)
	if err != nil {
		return nil, err
	}

	var res *model.UtxoResult
	err = g.node.View(func(v *chain.View) error {
		res, err = QueryUtxos(v, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteUtxoResponse(&buf, res); err != nil {
		return nil, err
	}
	return render(format, buf.Bytes(), func() (interface{}, error) {
		return g.utxoJSON(res), nil
	})
}

func (g *Gateway) utxoJSON(res *model.UtxoResult) *UtxoJSON {
	doc := &UtxoJSON{
		ChainHeight:  res.ChainHeight,
		ChaintipHash: res.ChainTip.String(),
		Bitmap:       res.BitmapString(),
		Utxos:        make([]CoinJSON, 0, len(res.Coins)),
	}
	for _, c := range res.Coins {
		doc.Utxos = append(doc.Utxos, CoinJSON{
			TxVersion:    int32(c.TxVersion),
			Height:       int32(c.Height),
			Value:        amount(c.Out.Value),
			ScriptPubKey: pkg.ScriptPubKeyResult(c.Out.PkScript, g.params),
		})
	}
	return doc
}
