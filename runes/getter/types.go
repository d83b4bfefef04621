package getter

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// BlockGetter surfaces the chain to the indexer: the tip height,
// block hashes for reorg detection, and full blocks for execution.
type BlockGetter interface {
	GetLatestBlockHeight() (uint, error)
	GetBlockHash(blockHeight uint) (string, error)
	GetBlock(blockHeight uint) (*wire.MsgBlock, error)
}

type RpcErrorKind int

const (
	// RpcIo is a transport failure reaching the data source.
	RpcIo RpcErrorKind = iota
	// RpcEndpoint is an error response from the data source itself.
	RpcEndpoint
	// RpcDecode is a response or stored record that does not decode.
	RpcDecode
)

func (k RpcErrorKind) String() string {
	switch k {
	case RpcIo:
		return "io"
	case RpcEndpoint:
		return "endpoint"
	case RpcDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// RpcError wraps getter failures. All of them are transient from the
// indexer's point of view: the caller backs off and retries instead
// of giving up on the chain.
type RpcError struct {
	Kind RpcErrorKind
	Err  error
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("rpc %s error: %v", e.Kind, e.Err)
}

func (e *RpcError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a getter failure worth retrying.
func IsTransient(err error) bool {
	var rpcErr *RpcError
	return errors.As(err, &rpcErr)
}
