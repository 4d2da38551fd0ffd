package pkg

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisAddress = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

func TestAddressFromScript(t *testing.T) {
	script := chaincfg.MainNetParams.GenesisBlock.Transactions[0].TxOut[0].PkScript

	address, err := AddressFromScript(script, &chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, genesisAddress, address)

	_, err = AddressFromScript([]byte{txscript.OP_RETURN, 0x01, 0x02}, &chaincfg.MainNetParams)
	assert.Error(t, err)
}

func TestScriptPubKeyResult(t *testing.T) {
	script := chaincfg.MainNetParams.GenesisBlock.Transactions[0].TxOut[0].PkScript

	res := ScriptPubKeyResult(script, &chaincfg.MainNetParams)
	assert.Equal(t, "pubkey", res.Type)
	assert.Equal(t, int32(1), res.ReqSigs)
	assert.Equal(t, []string{genesisAddress}, res.Addresses)
	assert.Contains(t, res.Asm, "OP_CHECKSIG")
	assert.Equal(t, "41", res.Hex[:2])

	res = ScriptPubKeyResult([]byte{txscript.OP_RETURN, 0x01, 0x02}, &chaincfg.MainNetParams)
	assert.Equal(t, "nulldata", res.Type)
	assert.Empty(t, res.Addresses)
}

func TestConv(t *testing.T) {
	n, err := BytesToUint32(Uint32ToBytes(0xdeadbeef))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), n)

	_, err = BytesToUint32([]byte{1})
	assert.Error(t, err)

	b, err := BytesToBool(BoolToBytes(true))
	require.NoError(t, err)
	assert.True(t, b)

	_, err = BytesToBool([]byte{2})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, Named(logger, "test"))

	_, err = NewLogger("loud")
	assert.Error(t, err)

	assert.NotNil(t, Named(nil, "nop"))
}
