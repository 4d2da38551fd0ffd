package rest

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

// isHex reports whether s is a non-empty, even-length hex string.
func isHex(s string) bool {
	if len(s) == 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ParseHash accepts exactly 64 hex characters in the usual display byte
// order of block and transaction hashes.
func ParseHash(s string) (*chainhash.Hash, bool) {
	if len(s) != 2*chainhash.HashSize {
		return nil, false
	}
	hash, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return nil, false
	}
	return hash, true
}

// DecodeName reverses form encoding: '+' is a space and "%XX" is the byte
// 0xXX. A '%' without two following hex digits is an error.
func DecodeName(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	var b [1]byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			out = append(out, ' ')
		case '%':
			if i+2 >= len(s) {
				return nil, errors.Errorf("truncated escape at %d", i)
			}
			if _, err := hex.Decode(b[:], []byte(s[i+1:i+3])); err != nil {
				return nil, errors.Wrapf(err, "invalid escape %q", s[i:i+3])
			}
			out = append(out, b[0])
			i += 2
		default:
			out = append(out, c)
		}
	}
	return out, nil
}
