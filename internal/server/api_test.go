package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/guonaihong/gout"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wx-shi/utxo-rest/internal/chaintest"
)

type utxoReply struct {
	ChainHeight  int32  `json:"chainHeight"`
	ChaintipHash string `json:"chaintipHash"`
	Bitmap       string `json:"bitmap"`
	Utxos        []struct {
		Height int32           `json:"height"`
		Value  decimal.Decimal `json:"value"`
	} `json:"utxos"`
}

func TestApiGetUtxos(t *testing.T) {
	s, _, blocks := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	op := chaintest.OutPoint(blocks[1].Transactions[0], 0)
	url := fmt.Sprintf("%s/rest/getutxos/checkmempool/%s-%d/%s-7.json", ts.URL, op.Hash, op.Index, op.Hash)

	reply := &utxoReply{}
	code := 0
	require.NoError(t, gout.GET(url).BindJSON(reply).Code(&code).Do())
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int32(2), reply.ChainHeight)
	assert.Equal(t, blocks[2].BlockHash().String(), reply.ChaintipHash)
	assert.Equal(t, "10", reply.Bitmap)
	require.Len(t, reply.Utxos, 1)
	assert.Equal(t, int32(1), reply.Utxos[0].Height)
	assert.Equal(t, "50.00000000", reply.Utxos[0].Value.StringFixed(8))
}

func TestApiChainInfo(t *testing.T) {
	s, _, blocks := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	var info map[string]json.RawMessage
	code := 0
	require.NoError(t, gout.GET(ts.URL+"/rest/chaininfo.json").BindJSON(&info).Code(&code).Do())
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, `"`+blocks[2].BlockHash().String()+`"`, string(info["bestblockhash"]))

	body := ""
	require.NoError(t, gout.GET(ts.URL+"/rest/chaininfo.bin").BindBody(&body).Code(&code).Do())
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "output format not found (available: json)\r\n", body)
}
