package main

import (
	"log"

	"github.com/spf13/cobra"
)

type RuntimeArguments struct {
	// EnableService: Provide HTTP query APIs.
	EnableService bool
	// EnableCheckpoint: Publish state checkpoints.
	EnableCheckpoint bool
	// EnableCache: Snapshot the ledger state to disk during catchup.
	EnableCache bool
	// EnableTest: Cap the indexed height for reproducible runs.
	EnableTest bool
	// EnablePprof: Register pprof handlers on the API service.
	EnablePprof bool
	// TestBlockHeightLimit: The capped height under --test.
	TestBlockHeightLimit uint
	// ConfigFilePath: Path of config.json.
	ConfigFilePath string
	// MetricAddr: Listen address of the prometheus endpoint.
	MetricAddr string
	// DBPath: Directory of the committed ledger database.
	DBPath string
}

func NewRuntimeArguments() *RuntimeArguments {
	return &RuntimeArguments{}
}

func (arguments *RuntimeArguments) MakeCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "runes-indexer",
		Short: "Activates the runes indexer with optional services.",
		Long: `
		The runes indexer reads every Bitcoin block, decodes runestone messages,
		maintains the rune registry and the UTXO balance ledger, and serves
		read-only queries over the committed state. Reorganizations within the
		retained depth are rolled back automatically from the undo history.

		Flags:
		- "--service/-s": Activates the web service API, allowing the indexer to respond to incoming queries.
		- "--checkpoint": Publishes a state checkpoint per indexed block to S3 or the DA layer.
		- "--cache": Snapshots the ledger during catchup so a restart resumes instead of reindexing. Enabled by default.
		`,

		Run: func(cmd *cobra.Command, args []string) {
			if arguments.EnableService {
				log.Println("Service mode is enabled.")
			} else {
				log.Println("Service mode is disabled.")
			}
			if arguments.EnableCheckpoint {
				log.Println("Checkpoint publication is enabled.")
			} else {
				log.Println("Checkpoint publication is disabled.")
			}
			if arguments.EnableCache {
				log.Println("Ledger snapshot cache is enabled.")
			} else {
				log.Println("Ledger snapshot cache is disabled.")
			}
			if arguments.EnableTest {
				log.Println("Test mode is enabled, block height limit:", arguments.TestBlockHeightLimit)
			}
			Execution(arguments)
		},
	}

	rootCmd.Flags().BoolVarP(&arguments.EnableService, "service", "s", false, "Enable this flag to provide API service")
	rootCmd.Flags().BoolVarP(&arguments.EnableCheckpoint, "checkpoint", "", false, "Enable this flag to publish state checkpoints")
	rootCmd.Flags().BoolVarP(&arguments.EnableCache, "cache", "", true, "Enable this flag to snapshot the ledger state during catchup")
	rootCmd.Flags().BoolVarP(&arguments.EnableTest, "test", "", false, "Enable this flag to cap the indexed block height")
	rootCmd.Flags().BoolVarP(&arguments.EnablePprof, "pprof", "", false, "Enable this flag to register pprof handlers")
	rootCmd.Flags().UintVarP(&arguments.TestBlockHeightLimit, "blockheight", "b", 0, "The capped block height under --test")
	rootCmd.Flags().StringVarP(&arguments.ConfigFilePath, "config", "c", "config.json", "Path of the configuration file")
	rootCmd.Flags().StringVarP(&arguments.MetricAddr, "metrics", "", ":8081", "Listen address of the prometheus metrics endpoint")
	rootCmd.Flags().StringVarP(&arguments.DBPath, "db", "", ".ledger", "Directory of the committed ledger database")

	return rootCmd
}
