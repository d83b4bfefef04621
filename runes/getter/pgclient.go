package getter

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/btcsuite/btcd/wire"

	"github.com/RiemaLabs/modular-indexer-runes/internal/metrics"
)

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	DBname   string
	Port     string
}

// PgGetter reads the chain from a Postgres mirror populated by a
// block ingestor: block_hashes maps heights to hashes, raw_blocks
// stores the serialized blocks.
type PgGetter struct {
	db *gorm.DB
}

func ConnectDatabase(config DatabaseConfig) (*gorm.DB, error) {
	host := config.Host
	user := config.User
	password := config.Password
	dbname := config.DBname
	port := config.Port
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s", host, user, password, dbname, port)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func NewPgGetter(config DatabaseConfig) (*PgGetter, error) {
	db, err := ConnectDatabase(config)
	if err != nil {
		return nil, &RpcError{Kind: RpcIo, Err: err}
	}
	getter := PgGetter{
		db: db,
	}
	return &getter, nil
}

func (pg *PgGetter) GetLatestBlockHeight() (uint, error) {
	defer metrics.ObserveRpcCall("pg_latest_height", time.Now())
	var blockHeight int
	sql := `
		SELECT block_height
		FROM block_hashes ORDER BY block_height DESC LIMIT 1
	`
	err := pg.db.Raw(sql).Scan(&blockHeight).Error
	if err != nil {
		return 0, wrapPgError(err)
	}
	return uint(blockHeight), nil
}

func (pg *PgGetter) GetBlockHash(blockHeight uint) (string, error) {
	defer metrics.ObserveRpcCall("pg_block_hash", time.Now())
	var blockHash string
	sql := `
		SELECT block_hash
		FROM block_hashes
		WHERE block_height = $1
	`
	tx := pg.db.Raw(sql, blockHeight).Scan(&blockHash)
	if tx.Error != nil {
		return "", wrapPgError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return "", &RpcError{Kind: RpcEndpoint, Err: fmt.Errorf("height %d is not mirrored", blockHeight)}
	}
	return blockHash, nil
}

func (pg *PgGetter) GetBlock(blockHeight uint) (*wire.MsgBlock, error) {
	defer metrics.ObserveRpcCall("pg_block", time.Now())
	var rawBlock []byte
	sql := `
		SELECT raw_block
		FROM raw_blocks
		WHERE block_height = $1
	`
	tx := pg.db.Raw(sql, blockHeight).Scan(&rawBlock)
	if tx.Error != nil {
		return nil, wrapPgError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, &RpcError{Kind: RpcEndpoint, Err: fmt.Errorf("height %d is not mirrored", blockHeight)}
	}
	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(rawBlock)); err != nil {
		return nil, &RpcError{Kind: RpcDecode, Err: fmt.Errorf("block at height %d: %w", blockHeight, err)}
	}
	return block, nil
}

func wrapPgError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &RpcError{Kind: RpcEndpoint, Err: err}
	}
	return &RpcError{Kind: RpcIo, Err: err}
}
