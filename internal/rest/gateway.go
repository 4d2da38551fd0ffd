// Package rest serves the node's chain state over the /rest/ URI space in
// binary, hex and JSON encodings.
package rest

import (
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/wx-shi/utxo-rest/internal/chain"
	"github.com/wx-shi/utxo-rest/pkg"
	"go.uber.org/zap"
)

const (
	contentTypeBinary = "application/octet-stream"
	contentTypeText   = "text/plain"
	contentTypeJSON   = "application/json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Node is the chain handle the gateway reads from. *chain.Node implements it.
type Node interface {
	Warmup() (string, bool)
	View(fn func(v *chain.View) error) error
	Params() *chaincfg.Params
}

// Response is a fully rendered reply. Close asks the transport to drop the
// connection after writing it.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	Close       bool
}

type handler func(g *Gateway, param string, body []byte) (*Response, error)

type route struct {
	prefix  string
	name    string
	handler handler
}

// Checked in order, first match wins: /rest/block/notxdetails/ must come
// before /rest/block/.
var routes = []route{
	{"/rest/tx/", "tx", (*Gateway).tx},
	{"/rest/block/notxdetails/", "block_notxdetails", (*Gateway).blockNoTxDetails},
	{"/rest/block/", "block", (*Gateway).block},
	{"/rest/chaininfo", "chaininfo", (*Gateway).chainInfo},
	{"/rest/headers/", "headers", (*Gateway).headers},
	{"/rest/getutxos", "getutxos", (*Gateway).getUtxos},
	{"/rest/name/", "name", (*Gateway).name},
}

type Gateway struct {
	node   Node
	params *chaincfg.Params
	logger *zap.Logger
}

func NewGateway(node Node, logger *zap.Logger) *Gateway {
	initPrometheusMetrics()
	return &Gateway{
		node:   node,
		params: node.Params(),
		logger: pkg.Named(logger, "rest"),
	}
}

// Dispatch answers one request. uri is the escaped request path, body the
// raw request body. It never returns nil.
func (g *Gateway) Dispatch(uri string, body []byte) *Response {
	start := time.Now()

	if msg, warm := g.node.Warmup(); warm {
		resp := errorResponse(errUnavailable("Service temporarily unavailable: %s", msg))
		observe("warmup", resp.Status, start)
		return resp
	}

	for _, r := range routes {
		if !strings.HasPrefix(uri, r.prefix) {
			continue
		}
		resp, err := r.handler(g, uri[len(r.prefix):], body)
		if err != nil {
			resp = g.failure(uri, err)
		}
		observe(r.name, resp.Status, start)
		return resp
	}

	observe("none", http.StatusNotFound, start)
	return &Response{
		Status:      http.StatusNotFound,
		ContentType: contentTypeText,
		Body:        []byte(http.StatusText(http.StatusNotFound) + "\r\n"),
		Close:       true,
	}
}

func (g *Gateway) failure(uri string, err error) *Response {
	var restErr *Error
	if !errors.As(err, &restErr) {
		g.logger.Error("Dispatch", zap.String("uri", uri), zap.Error(err))
		restErr = errInternal("%s", err.Error())
	} else {
		g.logger.Debug("Dispatch", zap.String("uri", uri), zap.Int("status", restErr.Status),
			zap.String("msg", restErr.Message))
	}
	return errorResponse(restErr)
}

func errorResponse(e *Error) *Response {
	return &Response{
		Status:      e.Status,
		ContentType: contentTypeText,
		Body:        []byte(e.Message + "\r\n"),
	}
}

// render encodes raw as the requested format. jsonDoc builds the JSON
// document and is only called for FormatJSON.
func render(format Format, raw []byte, jsonDoc func() (interface{}, error)) (*Response, error) {
	switch format {
	case FormatBinary:
		return &Response{Status: http.StatusOK, ContentType: contentTypeBinary, Body: raw}, nil
	case FormatHex:
		return hexResponse(raw), nil
	case FormatJSON:
		doc, err := jsonDoc()
		if err != nil {
			return nil, err
		}
		return jsonResponse(doc)
	}
	return nil, errFormatNotFound(availableFormats(allFormats...))
}

func hexResponse(raw []byte) *Response {
	body := make([]byte, hex.EncodedLen(len(raw))+1)
	hex.Encode(body, raw)
	body[len(body)-1] = '\n'
	return &Response{Status: http.StatusOK, ContentType: contentTypeText, Body: body}
}

func jsonResponse(doc interface{}) (*Response, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshal json")
	}
	return &Response{Status: http.StatusOK, ContentType: contentTypeJSON, Body: append(b, '\n')}, nil
}
