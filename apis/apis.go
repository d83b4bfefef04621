package apis

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/RiemaLabs/modular-indexer-runes/internal/metrics"
	"github.com/RiemaLabs/modular-indexer-runes/runes/getter"
	"github.com/RiemaLabs/modular-indexer-runes/runes/index"
)

func GetRuneEntry(c *gin.Context, queue *index.Queue) {
	queue.RLock()
	defer queue.RUnlock()

	commitment := hex.EncodeToString(queue.Header.Commit[:])

	id, err := parseRuneIdQuery(c, queue.Header)
	if err != nil {
		errStr := err.Error()
		c.JSON(http.StatusBadRequest, RunesEntryResponse{Error: &errStr})
		return
	}

	entry, ok := index.GetRuneEntry(queue.Header, id)
	if !ok {
		errStr := fmt.Sprintf("rune %s is not etched", id)
		c.JSON(http.StatusNotFound, RunesEntryResponse{Error: &errStr, Commitment: &commitment})
		return
	}

	result := entryToJSON(entry, uint64(queue.Header.Height)+1)
	c.JSON(http.StatusOK, RunesEntryResponse{Result: &result, Commitment: &commitment})
}

func GetRuneEntries(c *gin.Context, queue *index.Queue) {
	queue.RLock()
	defer queue.RUnlock()

	commitment := hex.EncodeToString(queue.Header.Commit[:])

	pageStr := c.DefaultQuery("page", "0")
	page, err := strconv.ParseUint(pageStr, 10, 32)
	if err != nil {
		errStr := fmt.Sprintf("invalid page %q", pageStr)
		c.JSON(http.StatusBadRequest, RunesEntriesResponse{Error: &errStr})
		return
	}

	entries, more := index.GetRuneEntries(queue.Header, uint(page))
	nextHeight := uint64(queue.Header.Height) + 1
	entriesJSON := make([]RuneEntryJSON, 0, len(entries))
	for _, entry := range entries {
		entriesJSON = append(entriesJSON, entryToJSON(entry, nextHeight))
	}

	result := RunesEntriesResult{
		Entries: entriesJSON,
		Page:    uint(page),
		More:    more,
		Total:   index.GetRuneCount(queue.Header),
	}
	c.JSON(http.StatusOK, RunesEntriesResponse{Result: &result, Commitment: &commitment})
}

func GetOutpointBalances(c *gin.Context, queue *index.Queue) {
	queue.RLock()
	defer queue.RUnlock()

	commitment := hex.EncodeToString(queue.Header.Commit[:])

	outpoint, err := parseOutpointQuery(c)
	if err != nil {
		errStr := err.Error()
		c.JSON(http.StatusBadRequest, RunesBalancesResponse{Error: &errStr})
		return
	}

	balances := index.GetOutpointBalances(queue.Header, outpoint)
	balancesJSON := make([]OutpointBalanceJSON, 0, len(balances))
	for _, balance := range balances {
		item := OutpointBalanceJSON{
			RuneId: balance.Id.String(),
			Symbol: defaultSymbol,
			Amount: balance.Amount.Dec(),
		}
		if entry, ok := index.GetRuneEntry(queue.Header, balance.Id); ok {
			item.Name = entry.SpacedRune.String()
			item.Divisibility = entry.Divisibility
			if entry.Symbol != nil {
				item.Symbol = string(*entry.Symbol)
			}
		}
		balancesJSON = append(balancesJSON, item)
	}

	result := RunesBalancesResult{
		Outpoint: outpoint.String(),
		Balances: balancesJSON,
	}
	c.JSON(http.StatusOK, RunesBalancesResponse{Result: &result, Commitment: &commitment})
}

// GetChainTip answers the indexed tip. With a Bitcoin RPC source the
// link must be configured; an unset endpoint gets a plain-text
// diagnostic instead of a tip that can no longer advance.
func GetChainTip(c *gin.Context, queue *index.Queue, bitcoin *getter.BitcoinGetter) {
	if bitcoin != nil && bitcoin.Endpoint() == "" {
		c.Data(http.StatusServiceUnavailable, "text/plain", []byte("the bitcoin rpc endpoint is not set"))
		return
	}

	queue.RLock()
	defer queue.RUnlock()

	result := ChainTipResult{
		Height:     queue.Header.Height,
		Hash:       queue.Header.Hash,
		Commitment: hex.EncodeToString(queue.Header.Commit[:]),
	}
	c.JSON(http.StatusOK, ChainTipResponse{Result: &result})
}

func GetBlockHeight(c *gin.Context, queue *index.Queue) {
	queue.RLock()
	defer queue.RUnlock()

	curHeight := queue.LatestHeight()
	c.Data(http.StatusOK, "text/plain", []byte(fmt.Sprintf("%d", curHeight)))
}

// SetRpcEndpoint swaps the Bitcoin node the indexer reads from, so a
// failing node can be replaced without a restart.
func SetRpcEndpoint(c *gin.Context, bitcoin *getter.BitcoinGetter) {
	var req SetRpcEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url"})
		return
	}
	if err := bitcoin.SetEndpoint(req.URL, req.Username, req.Password); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "updated",
		"endpoint": bitcoin.Endpoint(),
	})
}

func StartService(queue *index.Queue, bitcoin *getter.BitcoinGetter, listenAddr string, enableDebug bool, enablePprof bool) {
	if !enableDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.Default())
	r.Use(metrics.HTTP)
	if enablePprof {
		pprof.Register(r)
	}

	r.GET("/v1/runes/entry", func(c *gin.Context) {
		GetRuneEntry(c, queue)
	})

	r.GET("/v1/runes/entries", func(c *gin.Context) {
		GetRuneEntries(c, queue)
	})

	r.GET("/v1/runes/balances", func(c *gin.Context) {
		GetOutpointBalances(c, queue)
	})

	r.GET("/v1/runes/chain_tip", func(c *gin.Context) {
		GetChainTip(c, queue, bitcoin)
	})

	r.GET("/v1/runes/block_height", func(c *gin.Context) {
		GetBlockHeight(c, queue)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
		})
	})

	if bitcoin != nil {
		r.POST("/v1/runes/admin/rpc_endpoint", func(c *gin.Context) {
			SetRpcEndpoint(c, bitcoin)
		})
	}

	r.Run(listenAddr)
}
