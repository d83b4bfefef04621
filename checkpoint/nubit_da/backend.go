package nubit_da

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/rollkit/go-da"
	"github.com/rollkit/go-da/proxy"
)

const (
	// NamespaceSize is the size of the hex encoded namespace string.
	NamespaceSize = 29 * 2
	// Default namespace for runes checkpoints.
	DefaultNamespace = "00000000000000000000000000000000000000000000000072756E6573"
	// Default locally deployed Nubit node.
	DefaultNodeRPC = "http://localhost:26658"

	DefaultFetchTimeout  = time.Minute
	DefaultSubmitTimeout = time.Minute
)

// NubitDABackend talks to a Nubit DA node through the go-da proxy
// client. Checkpoints are submitted as blobs under a fixed namespace.
type NubitDABackend struct {
	Client       da.DA
	FetchTimeout time.Duration

	SubmitTimeout time.Duration
	Namespace     da.Namespace
}

func NewNubitDABackend(rpc, token, namespace string, fetchTimeout string, submitTimeout string) (*NubitDABackend, error) {
	client, err := proxy.NewClient(rpc, token)
	if err != nil {
		return nil, err
	}
	byteData := []byte(namespace)
	hexNamespace := hex.EncodeToString(byteData)
	fullNamespace := padNamespaceLeft(hexNamespace)
	ns, err := hex.DecodeString(fullNamespace)
	if err != nil {
		return nil, err
	}

	transFetchTimeout, err := time.ParseDuration(fetchTimeout)
	if err != nil {
		transFetchTimeout = DefaultFetchTimeout
	}

	transSubmitTimeout, err := time.ParseDuration(submitTimeout)
	if err != nil {
		transSubmitTimeout = DefaultSubmitTimeout
	}

	return &NubitDABackend{
		Client:        client,
		FetchTimeout:  transFetchTimeout,
		SubmitTimeout: transSubmitTimeout,
		Namespace:     ns,
	}, nil
}

// IsValidNamespaceID reports whether the raw namespace fits the hex
// encoded namespace size once padded.
func IsValidNamespaceID(nID string) bool {
	if len(nID) > 10 {
		return false
	}
	byteData := []byte(nID)
	hexString := hex.EncodeToString(byteData)
	return len(hexString) <= NamespaceSize
}

func padNamespaceLeft(s string) string {
	currentLength := len(s)
	if currentLength < NamespaceSize {
		return strings.Repeat("0", NamespaceSize-currentLength) + s
	}
	return s
}
