package getter

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/RiemaLabs/modular-indexer-runes/internal/metrics"
)

const rpcRequestTimeout = 30 * time.Second

// BitcoinGetter reads the chain from a Bitcoin Core compatible node
// over JSON-RPC 1.0. Every request carries an idempotency key derived
// from its method and params, so a caching proxy in front of the node
// can serve a retried fetch without charging for it twice.
type BitcoinGetter struct {
	mu       sync.RWMutex
	url      string
	username string
	password string

	client *http.Client
}

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Id      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewBitcoinGetter(url, username, password string) *BitcoinGetter {
	return &BitcoinGetter{
		url:      url,
		username: username,
		password: password,
		client:   &http.Client{Timeout: rpcRequestTimeout},
	}
}

// SetEndpoint swaps the node this getter talks to. The new endpoint
// is probed with a getblockcount before it replaces the old one.
func (r *BitcoinGetter) SetEndpoint(url, username, password string) error {
	if url == "" {
		return &RpcError{Kind: RpcEndpoint, Err: fmt.Errorf("empty rpc url")}
	}
	probe := NewBitcoinGetter(url, username, password)
	if _, err := probe.GetLatestBlockHeight(); err != nil {
		return err
	}
	r.mu.Lock()
	r.url = url
	r.username = username
	r.password = password
	r.mu.Unlock()
	return nil
}

func (r *BitcoinGetter) Endpoint() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.url
}

func (r *BitcoinGetter) GetLatestBlockHeight() (uint, error) {
	defer metrics.ObserveRpcCall("getblockcount", time.Now())
	var count int64
	if err := r.call("getblockcount", nil, &count); err != nil {
		metrics.RpcFailures.WithLabelValues("getblockcount").Inc()
		return 0, err
	}
	if count < 0 {
		return 0, &RpcError{Kind: RpcDecode, Err: fmt.Errorf("negative block count %d", count)}
	}
	return uint(count), nil
}

func (r *BitcoinGetter) GetBlockHash(blockHeight uint) (string, error) {
	defer metrics.ObserveRpcCall("getblockhash", time.Now())
	var hash string
	if err := r.call("getblockhash", []interface{}{blockHeight}, &hash); err != nil {
		metrics.RpcFailures.WithLabelValues("getblockhash").Inc()
		return "", err
	}
	return hash, nil
}

func (r *BitcoinGetter) GetBlock(blockHeight uint) (*wire.MsgBlock, error) {
	hash, err := r.GetBlockHash(blockHeight)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveRpcCall("getblock", time.Now())
	var rawHex string
	// Verbosity 0 returns the serialized block as hex.
	if err := r.call("getblock", []interface{}{hash, 0}, &rawHex); err != nil {
		metrics.RpcFailures.WithLabelValues("getblock").Inc()
		return nil, err
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, &RpcError{Kind: RpcDecode, Err: fmt.Errorf("block %s: %v", hash, err)}
	}
	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, &RpcError{Kind: RpcDecode, Err: fmt.Errorf("block %s: %v", hash, err)}
	}
	return block, nil
}

func (r *BitcoinGetter) call(method string, params []interface{}, result interface{}) error {
	r.mu.RLock()
	url, username, password := r.url, r.username, r.password
	r.mu.RUnlock()
	if url == "" {
		return &RpcError{Kind: RpcEndpoint, Err: fmt.Errorf("bitcoin rpc endpoint is not set")}
	}
	if params == nil {
		params = []interface{}{}
	}
	payload, err := json.Marshal(rpcRequest{
		Jsonrpc: "1.0",
		Id:      "runes-indexer",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return &RpcError{Kind: RpcDecode, Err: err}
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &RpcError{Kind: RpcEndpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", idempotencyKey(payload))
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &RpcError{Kind: RpcIo, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RpcError{Kind: RpcIo, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RpcError{Kind: RpcEndpoint, Err: fmt.Errorf("%s returned status %d", method, resp.StatusCode)}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return &RpcError{Kind: RpcDecode, Err: fmt.Errorf("%s response: %v", method, err)}
	}
	if rpcResp.Error != nil {
		return &RpcError{Kind: RpcEndpoint, Err: fmt.Errorf("%s failed with code %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)}
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return &RpcError{Kind: RpcDecode, Err: fmt.Errorf("%s result: %v", method, err)}
	}
	return nil
}

// idempotencyKey is stable for one logical request: two fetches of
// the same block hash to the same key no matter when they are sent.
func idempotencyKey(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
