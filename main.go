package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/RiemaLabs/modular-indexer-runes/apis"
	"github.com/RiemaLabs/modular-indexer-runes/checkpoint"
	"github.com/RiemaLabs/modular-indexer-runes/checkpoint/aws_s3"
	"github.com/RiemaLabs/modular-indexer-runes/checkpoint/nubit_da"
	"github.com/RiemaLabs/modular-indexer-runes/internal/kvstore"
	"github.com/RiemaLabs/modular-indexer-runes/internal/metrics"
	"github.com/RiemaLabs/modular-indexer-runes/runes"
	"github.com/RiemaLabs/modular-indexer-runes/runes/getter"
	"github.com/RiemaLabs/modular-indexer-runes/runes/index"
)

var (
	version = "latest"
	gitHash = "unknown"
)

// maxBlocksPerTick bounds the work of one ingestion tick. A long gap
// to the chain tip is crossed over several ticks instead of one
// unbounded loop.
const maxBlocksPerTick uint = 100

// snapshotEvictDepth is how far below the current height catchup
// snapshots are kept on disk.
const snapshotEvictDepth uint = 2000

// CatchupStage indexes every block up to latestHeight-depth-1 and
// commits them to the ledger database directly; those blocks are
// final and need no undo records. The last depth+1 blocks are then
// executed into the queue's rollback history.
func CatchupStage(blockGetter getter.BlockGetter, arguments *RuntimeArguments, store *kvstore.ByteMap, initHeight uint, latestHeight uint, depth uint) (*index.Queue, error) {
	metrics.Stage.Set(metrics.StageCatchup)

	header := index.LoadHeader(store, arguments.EnableCache, initHeight)
	curHeight := header.Height

	if latestHeight < initHeight+depth+1 {
		return nil, fmt.Errorf("the chain tip %d is below the indexing start %d", latestHeight, initHeight+depth+1)
	}
	catchupHeight := latestHeight - depth - 1

	log.Printf("Catching up to the latest block height! From %d to %d \n", curHeight, catchupHeight)

	// Listen for SIGINT so a long catchup can be resumed later.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)

	if catchupHeight < curHeight {
		return nil, errors.New("the stored ledger state is too advanced to handle reorg situations")
	}
	for i := curHeight + 1; i <= catchupHeight; i++ {
		select {
		case <-sigChan:
			log.Printf("Saving the ledger snapshot. Please don't force exit.")
			if arguments.EnableCache {
				_ = index.StoreHeader(header, header.Height-snapshotEvictDepth)
			}
			os.Exit(0)
		default:
			if err := index.ApplyBlock(header, blockGetter, i); err != nil {
				return nil, err
			}
			metrics.CurrentHeight.Set(float64(i))
			if i%1000 == 0 {
				log.Printf("Blocks: %d / %d \n", i, catchupHeight)
				if arguments.EnableCache {
					if err := index.StoreHeader(header, header.Height-snapshotEvictDepth); err != nil {
						log.Printf("Failed to store the snapshot at height: %d", i)
					}
				}
			}
		}
	}

	if arguments.EnableCache {
		if err := index.StoreHeader(header, header.Height-snapshotEvictDepth); err != nil {
			log.Printf("Failed to store the snapshot at height: %d", header.Height)
		}
	}

	queue, err := index.NewQueue(blockGetter, header, catchupHeight+1, depth)
	if err != nil {
		return nil, err
	}
	if queue.LatestHeight() != latestHeight {
		return nil, fmt.Errorf("mismatched state height: %d and chain height: %d", queue.LatestHeight(), latestHeight)
	}
	return queue, nil
}

// ingestionStep advances the queue toward the chain tip, bounded by
// maxBlocksPerTick, then checks the retained headers for a reorg and
// rolls back if one is found.
func ingestionStep(blockGetter getter.BlockGetter, queue *index.Queue) error {
	latestHeight, err := blockGetter.GetLatestBlockHeight()
	if err != nil {
		return err
	}

	curHeight := queue.LatestHeight()
	if curHeight < latestHeight {
		target := latestHeight
		if target > curHeight+maxBlocksPerTick {
			target = curHeight + maxBlocksPerTick
		}
		metrics.Stage.Set(metrics.StageUpdating)
		if err := queue.Update(blockGetter, target); err != nil {
			var linkage *index.ChainLinkageError
			if !errors.As(err, &linkage) {
				return err
			}
			// The chain moved between polls; the retained headers
			// are checked below and the tip is rolled back onto the
			// surviving branch.
			log.Printf("Block %d does not extend the current tip, checking for a reorganization", linkage.Height)
		}
		metrics.Stage.Set(metrics.StageServing)
	}

	reorgHeight, err := queue.CheckForReorg(blockGetter)
	if err != nil {
		return err
	}
	if reorgHeight != 0 {
		log.Printf("Rolling back to height %d to handle the reorganization", reorgHeight-1)
		metrics.Stage.Set(metrics.StageReorg)
		if err := queue.Recovery(blockGetter, reorgHeight); err != nil {
			return err
		}
		metrics.Stage.Set(metrics.StageServing)
	}

	metrics.CurrentHeight.Set(float64(queue.LatestHeight()))
	return nil
}

// publishCheckpoints uploads one checkpoint per retained (height,
// hash), skipping pairs already published.
func publishCheckpoints(queue *index.Queue, history map[string]checkpoint.UploadRecord) {
	indexerID := checkpoint.IndexerIdentification{
		URL:          GlobalConfig.Service.URL,
		Name:         GlobalConfig.Service.Name,
		Version:      version,
		MetaProtocol: GlobalConfig.Service.MetaProtocol,
	}
	timeout := time.Duration(GlobalConfig.Report.Timeout) * time.Millisecond

	queue.RLock()
	candidates := make([]checkpoint.Checkpoint, 0, len(queue.History)+1)
	for _, state := range queue.History {
		commitment := hex.EncodeToString(state.Commit[:])
		candidates = append(candidates, checkpoint.NewCheckpoint(&indexerID, state.Height, state.Hash, commitment))
	}
	commitment := hex.EncodeToString(queue.Header.Commit[:])
	candidates = append(candidates, checkpoint.NewCheckpoint(&indexerID, queue.Header.Height, queue.Header.Hash, commitment))
	queue.RUnlock()

	for i := range candidates {
		c := &candidates[i]
		key := c.Height + c.Hash
		if record, found := history[key]; found && record.Success {
			continue
		}
		var err error
		switch GlobalConfig.Report.Method {
		case "S3":
			s3cfg := GlobalConfig.Report.S3
			err = aws_s3.UploadCheckpointByS3(c, s3cfg.AccessKey, s3cfg.SecretKey, s3cfg.Region, s3cfg.Bucket, timeout)
		case "DA":
			dacfg := GlobalConfig.Report.Da
			err = nubit_da.UploadCheckpointByDA(c, dacfg.PrivateKey, dacfg.GasCoupon, dacfg.NamespaceID, dacfg.Network, timeout)
		case "DA-NODE":
			dacfg := GlobalConfig.Report.Da
			err = nubit_da.UploadCheckpointByNode(c, dacfg.NodeRPC, dacfg.AuthToken, dacfg.NamespaceID, dacfg.FetchTimeout, dacfg.SubmitTimeout)
		default:
			log.Printf("Unknown report method: %s", GlobalConfig.Report.Method)
			return
		}
		if err != nil {
			log.Printf("Unable to upload the checkpoint at height %s due to: %v", c.Height, err)
			continue
		}
		log.Printf("Succeeded to upload the checkpoint at height %s", c.Height)
		history[key] = checkpoint.UploadRecord{Success: true}
	}
}

// ServiceStage runs the recurring ingestion tick. A tick that is
// still fetching when the next one fires is not queued up: the flag
// rejects the overlap and the later tick is skipped.
func ServiceStage(blockGetter getter.BlockGetter, bitcoin *getter.BitcoinGetter, arguments *RuntimeArguments, queue *index.Queue, interval time.Duration) {
	metrics.Stage.Set(metrics.StageServing)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)

	history := make(map[string]checkpoint.UploadRecord)

	if arguments.EnableService {
		log.Printf("Providing API service at: %s", GlobalConfig.Service.ListenAddr)
		go apis.StartService(queue, bitcoin, GlobalConfig.Service.ListenAddr, arguments.EnableTest, arguments.EnablePprof)
	}

	var inProgress atomic.Bool
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			os.Exit(0)
		case <-ticker.C:
			if !inProgress.CompareAndSwap(false, true) {
				continue
			}
			err := ingestionStep(blockGetter, queue)
			if err != nil {
				var verification *index.BlockVerificationError
				if errors.As(err, &verification) {
					// The chain diverged beyond the retained history;
					// resume from a trusted snapshot.
					log.Fatalf("Failed to handle the reorganization: %v", err)
				}
				log.Printf("Ingestion failed, retrying next tick: %v", err)
			} else if arguments.EnableCheckpoint {
				publishCheckpoints(queue, history)
			}
			if !arguments.EnableTest {
				log.Printf("Listening for new Bitcoin block, current height: %d\n", queue.LatestHeight())
			}
			inProgress.Store(false)
		}
	}
}

func Execution(arguments *RuntimeArguments) {
	go metrics.ListenAndServe(arguments.MetricAddr)
	metrics.Version.WithLabelValues(fmt.Sprintf("%s-%s", version, gitHash)).Set(1)
	metrics.Stage.Set(metrics.StageInitializing)

	configFile, err := os.ReadFile(arguments.ConfigFilePath)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
	if err := json.Unmarshal(configFile, &GlobalConfig); err != nil {
		log.Fatalf("Failed to parse config file: %v", err)
	}

	if arguments.EnableCheckpoint {
		switch GlobalConfig.Report.Method {
		case "DA", "DA-NODE":
			if !nubit_da.IsValidNamespaceID(GlobalConfig.Report.Da.NamespaceID) {
				log.Fatalf("Got invalid namespace ID %q from the config.json", GlobalConfig.Report.Da.NamespaceID)
			}
		case "S3":
		default:
			log.Fatalf("Unknown report method: %s", GlobalConfig.Report.Method)
		}
	}

	store, err := kvstore.NewByteMap(arguments.DBPath)
	if err != nil {
		log.Fatalf("Failed to open the ledger database: %v", err)
	}
	defer store.Close()

	depth := GlobalConfig.ReorgDepth
	if depth == 0 {
		depth = index.DefaultConfirmations
	}

	var blockGetter getter.BlockGetter
	var bitcoin *getter.BitcoinGetter
	switch GlobalConfig.Source {
	case "", "bitcoind":
		rpc := GlobalConfig.BitcoinRPC
		bitcoin = getter.NewBitcoinGetter(rpc.URL, rpc.Username, rpc.Password)
		blockGetter = bitcoin
	case "postgres":
		db := GlobalConfig.Database
		pg, err := getter.NewPgGetter(getter.DatabaseConfig(db))
		if err != nil {
			log.Fatalf("Failed to connect to the mirror database: %v", err)
		}
		blockGetter = pg
	default:
		log.Fatalf("Unknown block source: %s", GlobalConfig.Source)
	}
	if arguments.EnableTest {
		blockGetter = getter.NewCappedGetter(blockGetter, arguments.TestBlockHeightLimit)
	}

	latestHeight, err := blockGetter.GetLatestBlockHeight()
	if err != nil {
		log.Fatalf("Failed to get the latest block height: %v", err)
	}

	queue, err := CatchupStage(blockGetter, arguments, store, runes.RunesStartHeight-1, latestHeight, depth)
	if err != nil {
		log.Fatalf("Failed to catchup the latest state: %v", err)
	}

	ServiceStage(blockGetter, bitcoin, arguments, queue, 60*time.Second)
}

func main() {
	arguments := NewRuntimeArguments()
	rootCmd := arguments.MakeCmd()
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute: %v", err)
	}
}
