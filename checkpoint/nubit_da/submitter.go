package nubit_da

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	sdk "github.com/RiemaLabs/nubit-da-sdk"
	"github.com/RiemaLabs/nubit-da-sdk/constant"

	"github.com/RiemaLabs/modular-indexer-runes/checkpoint"
)

// UploadCheckpointByNode submits a checkpoint blob through a locally
// deployed Nubit DA node.
func UploadCheckpointByNode(c *checkpoint.Checkpoint, nodeRpc string, authToken string, namespaceID string, fetchTimeout string, submitTimeout string) error {
	checkpointJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to generate checkpoint, err: %v", err)
	}
	nubitDABackend, err := NewNubitDABackend(nodeRpc, authToken, namespaceID, fetchTimeout, submitTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to Nubit DA, err: %v", err)
	}
	log.Println("building Calldata transaction candidate", "size", len(checkpointJSON))
	ctx, cancel := context.WithTimeout(context.Background(), nubitDABackend.SubmitTimeout)
	ids, err := nubitDABackend.Client.Submit(ctx, [][]byte{checkpointJSON}, -1, nubitDABackend.Namespace)
	cancel()
	if err != nil || len(ids) != 1 {
		log.Println("❗ nubit: blob submission failed", "err", err)
		return fmt.Errorf("failed to submit the checkpoint blob, err: %v", err)
	}
	log.Println("🏆 nubit: blob successfully submitted", "id", hex.EncodeToString(ids[0]))
	return nil
}

// UploadCheckpointByDA submits a checkpoint through the hosted Nubit
// gateway, paying with a gas coupon.
func UploadCheckpointByDA(c *checkpoint.Checkpoint, pk, gasCoupon, namespaceID, network string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if network == "Pre-Alpha Testnet" {
		sdk.SetNet(constant.PreAlphaTestNet)
	} else if network == "Testnet" {
		sdk.SetNet(constant.TestNet)
	} else {
		return fmt.Errorf("unknown network: %s", network)
	}

	clientDA := sdk.NewNubit(sdk.WithCtx(ctx),
		sdk.WithGasCode(gasCoupon),
		sdk.WithPrivateKey(pk),
	)
	if clientDA == nil {
		return fmt.Errorf("failed to build the Nubit client")
	}

	checkpointJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint to JSON: %v", err)
	}

	labels := map[string]interface{}{
		"contentType": "application/json",
	}
	_, err = clientDA.UploadBytes(checkpointJSON, namespaceID, 0, labels)
	if err != nil {
		return fmt.Errorf("failed to upload checkpoint: %v", err)
	}

	return nil
}
