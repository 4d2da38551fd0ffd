package rest

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wx-shi/utxo-rest/internal/chaintest"
	"github.com/wx-shi/utxo-rest/internal/model"
)

func TestUtxoRequestRoundTrip(t *testing.T) {
	q := model.NewUtxoQuery(true, []wire.OutPoint{
		{Hash: chainhash.Hash{1}, Index: 0},
		{Hash: chainhash.Hash{2}, Index: 7},
	})
	var buf bytes.Buffer
	require.NoError(t, WriteUtxoRequest(&buf, q))
	assert.Equal(t, 1+1+2*36, buf.Len())

	got, err := ReadUtxoRequest(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, q, got)

	_, err = ReadUtxoRequest(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
	assert.Error(t, err)
	_, err = ReadUtxoRequest(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestUtxoRequestTooMany(t *testing.T) {
	ops := make([]wire.OutPoint, model.MaxUtxoOutpoints+1)
	var buf bytes.Buffer
	require.NoError(t, WriteUtxoRequest(&buf, model.NewUtxoQuery(false, ops)))

	_, err := ReadUtxoRequest(&buf)
	var restErr *Error
	require.True(t, errors.As(err, &restErr))
	assert.Equal(t, 500, restErr.Status)
	assert.Equal(t, "Error: max outpoints exceeded (max: 15, tried: 16)", restErr.Message)
}

func TestUtxoResponseRoundTrip(t *testing.T) {
	hits := make([]bool, 11)
	hits[0], hits[3], hits[10] = true, true, true
	res := &model.UtxoResult{
		ChainHeight: 1234,
		ChainTip:    chainhash.Hash{0xab, 0xcd},
		Hits:        hits,
		Coins: []model.Coin{
			{TxVersion: 1, Height: 100, Out: wire.TxOut{Value: 5000, PkScript: chaintest.Script}},
			{TxVersion: 2, Height: model.MempoolHeight, Out: wire.TxOut{Value: 1, PkScript: []byte{0x51}}},
			{TxVersion: 1, Height: 7, Out: wire.TxOut{Value: 0, PkScript: []byte{}}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteUtxoResponse(&buf, res))

	raw := buf.Bytes()
	// int32 height, tip, then a two byte bitmap
	assert.Equal(t, []byte{0xd2, 0x04, 0x00, 0x00}, raw[:4])
	assert.Equal(t, []byte{2, 0x09, 0x04}, raw[36:39])

	got, err := ReadUtxoResponse(bytes.NewReader(raw), len(hits))
	require.NoError(t, err)
	assert.Equal(t, res, got)

	_, err = ReadUtxoResponse(bytes.NewReader(raw), 20)
	assert.Error(t, err)
	_, err = ReadUtxoResponse(bytes.NewReader(raw[:len(raw)-1]), len(hits))
	assert.Error(t, err)
}
