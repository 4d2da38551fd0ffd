package rest

import (
	"net/http"

	"github.com/wx-shi/utxo-rest/internal/chain"
	"github.com/wx-shi/utxo-rest/internal/model"
	"github.com/wx-shi/utxo-rest/internal/names"
	"github.com/wx-shi/utxo-rest/pkg"
)

// NameInfo is the JSON rendering of a name's current registration.
type NameInfo struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Txid      string `json:"txid"`
	Vout      uint32 `json:"vout"`
	Address   string `json:"address"`
	Height    uint32 `json:"height"`
	ExpiresIn int32  `json:"expires_in"`
	Expired   bool   `json:"expired"`
}

// name serves /rest/name/<encoded name>. The binary form is the raw value.
func (g *Gateway) name(part string, _ []byte) (*Response, error) {
	encoded, format := ParseDataFormat(part)
	if !supports(format, allFormats) {
		return nil, errFormatNotFound(availableFormats(allFormats...))
	}
	plain, err := DecodeName(encoded)
	if err != nil {
		return nil, errBadRequest("Invalid encoded name: %s", encoded)
	}

	var (
		data      *model.NameData
		tipHeight int32
	)
	err = g.node.View(func(v *chain.View) error {
		var err error
		if data, err = v.Name(plain); err != nil || data == nil {
			return err
		}
		tipHeight, _, err = v.Height()
		return err
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errNotFound("'%s' not found", plain)
	}

	switch format {
	case FormatBinary:
		return &Response{Status: http.StatusOK, ContentType: contentTypeBinary, Body: data.Value}, nil
	case FormatHex:
		return hexResponse(data.Value), nil
	}
	return jsonResponse(g.nameInfo(data, tipHeight))
}

func (g *Gateway) nameInfo(data *model.NameData, tipHeight int32) *NameInfo {
	addr, err := pkg.AddressFromScript(data.Script, g.params)
	if err != nil {
		addr = "<nonstandard>"
	}
	expiresIn := names.ExpiresIn(data.Height, tipHeight)
	return &NameInfo{
		Name:      string(data.Name),
		Value:     string(data.Value),
		Txid:      data.Outpoint.Hash.String(),
		Vout:      data.Outpoint.Index,
		Address:   addr,
		Height:    data.Height,
		ExpiresIn: expiresIn,
		Expired:   expiresIn <= 0,
	}
}
