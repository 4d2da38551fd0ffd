package rest

import (
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/wx-shi/utxo-rest/internal/chain"
)

// chainName uses the node's short network names.
func chainName(params *chaincfg.Params) string {
	switch params.Name {
	case chaincfg.MainNetParams.Name:
		return "main"
	case chaincfg.TestNet3Params.Name:
		return "test"
	}
	return params.Name
}

func (g *Gateway) chainInfo(part string, _ []byte) (*Response, error) {
	_, format := ParseDataFormat(part)
	if format != FormatJSON {
		return nil, errFormatNotFound("json")
	}

	res := &btcjson.GetBlockChainInfoResult{
		Chain:                chainName(g.params),
		Blocks:               -1,
		Headers:              -1,
		VerificationProgress: 1,
	}
	err := g.node.View(func(v *chain.View) error {
		pruned, err := v.IsPruned()
		if err != nil {
			return err
		}
		res.Pruned = pruned

		tip, err := v.Tip()
		if err != nil || tip == nil {
			return err
		}
		median, err := v.MedianTime(tip)
		if err != nil {
			return err
		}
		res.Blocks = tip.Height
		res.Headers = tip.Height
		res.BestBlockHash = tip.Hash.String()
		res.Difficulty = difficulty(tip.Header.Bits, g.params)
		res.MedianTime = median.Unix()
		if tip.ChainWork != nil {
			res.ChainWork = fmt.Sprintf("%064x", tip.ChainWork)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jsonResponse(res)
}
