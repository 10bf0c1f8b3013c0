package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// HTTPClient is the LedgerClient over a node's HTTP RPC.
type HTTPClient struct {
	desc Descriptor
	base string
	hc   *http.Client
}

func DialHTTP(desc Descriptor) (LedgerClient, error) {
	return &HTTPClient{
		desc: desc,
		base: strings.TrimRight(desc.RPCEndpoint, "/"),
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (c *HTTPClient) Descriptor() Descriptor { return c.desc }

type rpcError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *HTTPClient) do(req *http.Request, path string, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRPCUnavailable, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var re rpcError
		if decErr := json.NewDecoder(resp.Body).Decode(&re); decErr == nil && re.Code != "" {
			return fmt.Errorf("%w: rpc %s: %s", SentinelForCode(re.Code), path, re.Msg)
		}
		return fmt.Errorf("%w: rpc %s status=%d", ErrRPCUnavailable, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type estimateReq struct {
	Op Operation `json:"op"`
}

type estimateResp struct {
	Gas uint64 `json:"gas"`
}

func (c *HTTPClient) EstimateGas(ctx context.Context, op Operation) (uint64, error) {
	var out estimateResp
	err := c.postJSON(ctx, "/tx/estimate", estimateReq{Op: op}, &out)
	return out.Gas, err
}

type gasPriceResp struct {
	Price uint64 `json:"price"`
}

func (c *HTTPClient) GasPrice(ctx context.Context) (uint64, error) {
	var out gasPriceResp
	err := c.getJSON(ctx, "/gas/price", &out)
	return out.Price, err
}

type sendTxReq struct {
	Op       Operation `json:"op"`
	GasLimit uint64    `json:"gas_limit"`
	GasPrice uint64    `json:"gas_price"`
}

type sendTxResp struct {
	TxHash hash.Hash32 `json:"tx_hash"`
}

func (c *HTTPClient) SendTransaction(ctx context.Context, op Operation, gasLimit, gasPrice uint64) (hash.Hash32, error) {
	var out sendTxResp
	err := c.postJSON(ctx, "/tx/send", sendTxReq{Op: op, GasLimit: gasLimit, GasPrice: gasPrice}, &out)
	return out.TxHash, err
}

func (c *HTTPClient) Receipt(ctx context.Context, txHash hash.Hash32) (*Receipt, bool, error) {
	var out Receipt
	err := c.getJSON(ctx, "/tx/receipt/"+txHash.Hex(), &out)
	if err != nil {
		// absent receipt is normal while pending; the monitor keeps polling
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &out, true, nil
}

type headResp struct {
	HeadNum int64 `json:"head_num"`
	Empty   bool  `json:"empty"`
}

func (c *HTTPClient) BlockNumber(ctx context.Context) (int64, error) {
	var out headResp
	if err := c.getJSON(ctx, "/chain/head", &out); err != nil {
		return 0, err
	}
	return out.HeadNum, nil
}

func (c *HTTPClient) GetRecord(ctx context.Context, owner string) (*ledger.Record, error) {
	var rec ledger.Record
	if err := c.getJSON(ctx, "/record/"+owner, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

type processedResp struct {
	Processed bool `json:"processed"`
}

func (c *HTTPClient) IsProcessed(ctx context.Context, messageID hash.Hash32) (bool, error) {
	var out processedResp
	err := c.getJSON(ctx, "/relay/processed/"+messageID.Hex(), &out)
	return out.Processed, err
}
