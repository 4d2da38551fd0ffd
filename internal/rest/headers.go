package rest

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/wx-shi/utxo-rest/internal/chain"
)

const maxHeaders = 2000

var headerFormats = []Format{FormatBinary, FormatHex}

// headers serves /rest/headers/<count>/<hash>: up to count headers of the
// active chain starting at hash.
func (g *Gateway) headers(part string, _ []byte) (*Response, error) {
	param, format := ParseDataFormat(part)
	if !supports(format, headerFormats) {
		return nil, errFormatNotFound(availableFormats(headerFormats...))
	}

	path := strings.Split(param, "/")
	if len(path) != 2 {
		return nil, errBadRequest("No header count specified. Use /rest/headers/<count>/<hash>.<ext>.")
	}
	count, err := strconv.Atoi(path[0])
	if err != nil || count < 1 || count > maxHeaders {
		return nil, errBadRequest("Header count out of range: %s", path[0])
	}
	hash, ok := ParseHash(path[1])
	if !ok {
		return nil, errBadRequest("Invalid hash: %s", path[1])
	}

	headers := make([]wire.BlockHeader, 0, count)
	err = g.node.View(func(v *chain.View) error {
		idx, err := v.LookupBlockIndex(hash)
		if err != nil {
			return err
		}
		for idx != nil {
			active, err := v.Contains(idx)
			if err != nil {
				return err
			}
			if !active {
				break
			}
			headers = append(headers, idx.Header)
			if len(headers) == count {
				break
			}
			if idx, err = v.Next(idx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(headers) * wire.MaxBlockHeaderPayload)
	for i := range headers {
		if err := headers[i].Serialize(&buf); err != nil {
			return nil, err
		}
	}
	return render(format, buf.Bytes(), nil)
}
