package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"election-ledger/chain"
	"election-ledger/config"
	"election-ledger/ledger"
	"election-ledger/service"
	"election-ledger/signing"
	"election-ledger/storage"
	"election-ledger/storage/bolt"
	"election-ledger/storage/mem"
	"election-ledger/storage/postgres"
	"election-ledger/storage/sqlite"
)

func openStore(cfg config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return mem.New(), nil
	case config.StorageBolt:
		return bolt.Open(cfg.StoragePath())
	case config.StorageSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return sqlite.Open(cfg.StoragePath())
	case config.StoragePostgres:
		return postgres.Open(cfg.PostgresDSN)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
}

// loadSigner prefers an explicit key, then the key file in the data dir. An
// in-memory node without an explicit key signs with a throwaway key.
func loadSigner(cfg config.Config) (*signing.Signer, error) {
	if cfg.NodeKey != "" {
		return signing.Parse(cfg.NodeKey)
	}
	if cfg.Storage == config.StorageMemory {
		return signing.Generate()
	}
	return signing.LoadOrGenerate(cfg.DataDir)
}

// existingSigner is loadSigner for read-only commands: it never creates a
// key file.
func existingSigner(cfg config.Config) (*signing.Signer, error) {
	if cfg.NodeKey != "" {
		return signing.Parse(cfg.NodeKey)
	}
	path := filepath.Join(cfg.DataDir, signing.KeyFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no node key at %s", path)
		}
		return nil, err
	}
	return signing.LoadOrGenerate(cfg.DataDir)
}

type node struct {
	store   storage.Store
	ledger  *ledger.Ledger
	queue   *service.Queue
	metrics *service.MetricsCollector
}

func openNode(ctx context.Context, cfg config.Config, c *cli) (*node, error) {
	fee, err := cfg.Fee()
	if err != nil {
		return nil, err
	}
	signer, err := loadSigner(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	metrics := service.NewMetricsCollector()
	l, err := ledger.New(ctx, store, chain.New(signer), ledger.Config{
		Owner:       cfg.Owner,
		CreationFee: fee,
		CacheSize:   cfg.CacheSize,
		Logger:      c.logger,
		Metrics:     metrics,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	c.logger.Info("ledger opened",
		"event", "node_ledger_opened",
		"module", "electiond",
		"storage", cfg.Storage,
		"owner", l.Owner(),
		"signer", signer.Address().Hex(),
		"creation_fee", fee.Dec(),
	)
	return &node{
		store:   store,
		ledger:  l,
		queue:   service.NewQueue(cfg.QueueSize, c.logger),
		metrics: metrics,
	}, nil
}

func (n *node) Close() error {
	n.queue.Stop()
	return n.store.Close()
}
