package pkg

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptPubKeyResult 解析锁定脚本, 输出与节点 JSON 接口一致的结构
func ScriptPubKeyResult(script []byte, params *chaincfg.Params) btcjson.ScriptPubKeyResult {
	// DisasmString still returns the decodable prefix on error.
	disasm, _ := txscript.DisasmString(script)

	class, addrs, reqSigs, _ := txscript.ExtractPkScriptAddrs(script, params)
	res := btcjson.ScriptPubKeyResult{
		Asm:  disasm,
		Hex:  hex.EncodeToString(script),
		Type: class.String(),
	}
	if class == txscript.NonStandardTy || class == txscript.NullDataTy {
		return res
	}

	res.ReqSigs = int32(reqSigs)
	res.Addresses = make([]string, 0, len(addrs))
	for _, addr := range addrs {
		res.Addresses = append(res.Addresses, addr.EncodeAddress())
	}
	return res
}

// AddressFromScript 获取地址
func AddressFromScript(script []byte, params *chaincfg.Params) (string, error) {
	_, addresses, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return "", err
	}

	if len(addresses) > 0 {
		return addresses[0].EncodeAddress(), nil
	}

	return "", fmt.Errorf("unable to extract address from script %x", script)
}
