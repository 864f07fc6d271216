// Package ledger is the election state machine: organization registration,
// election creation, voting and tally reads. Every mutation runs in a single
// storage transaction together with its journal block and is serialized by
// the ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"

	"election-ledger/chain"
	"election-ledger/models"
	"election-ledger/storage"
)

// DefaultCacheSize is the number of elections kept in the metadata cache.
const DefaultCacheSize = 1024

// Operation names reported to a Recorder.
const (
	OpRegisterOrganization = "register_organization"
	OpCreateElection       = "create_election"
	OpVote                 = "vote"
)

// DefaultCreationFee is 10^24, one whole token in its smallest unit.
func DefaultCreationFee() *uint256.Int {
	return uint256.MustFromDecimal("1000000000000000000000000")
}

// Recorder receives the outcome of every mutation.
type Recorder interface {
	Observe(op string, took time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, time.Duration, error) {}

type Config struct {
	Owner       string
	CreationFee *uint256.Int
	CacheSize   int
	Logger      *slog.Logger
	Metrics     Recorder
}

type Ledger struct {
	store   storage.Store
	journal *chain.Journal
	owner   string
	fee     *uint256.Int
	cache   *lru.Cache[string, *models.Election]
	logger  *slog.Logger
	metrics Recorder

	// mu serializes mutations.
	mu sync.Mutex
}

// New opens the ledger on store. The first open records cfg.Owner in the
// store; later opens must name the same owner.
func New(ctx context.Context, store storage.Store, journal *chain.Journal, cfg Config) (*Ledger, error) {
	owner := strings.TrimSpace(cfg.Owner)
	if owner == "" {
		return nil, errors.New("ledger: owner is required")
	}
	if store == nil || journal == nil {
		return nil, errors.New("ledger: store and journal are required")
	}
	fee := cfg.CreationFee
	if fee == nil {
		fee = DefaultCreationFee()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *models.Election](size)
	if err != nil {
		return nil, fmt.Errorf("create election cache: %w", err)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}

	err = store.Update(ctx, func(w storage.Writer) error {
		v, ok, err := w.Get(storage.TableMeta, ownerKey)
		if err != nil {
			return err
		}
		if ok {
			if string(v) != owner {
				return fmt.Errorf("%w: recorded %q", ErrOwnerMismatch, v)
			}
			return nil
		}
		return w.Put(storage.TableMeta, ownerKey, []byte(owner))
	})
	if err != nil {
		return nil, fmt.Errorf("initialize owner: %w", err)
	}

	return &Ledger{
		store:   store,
		journal: journal,
		owner:   owner,
		fee:     new(uint256.Int).Set(fee),
		cache:   cache,
		logger:  ResolveLogger(cfg.Logger).With("module", "ledger", "layer", "application"),
		metrics: metrics,
	}, nil
}

// ResolveLogger returns logger, or the default logger when it is nil.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func (l *Ledger) Owner() string {
	return l.owner
}

// CreationFee returns a copy of the exact payment CreateElection requires.
func (l *Ledger) CreationFee() *uint256.Int {
	return new(uint256.Int).Set(l.fee)
}

func (l *Ledger) observe(op string, start time.Time, err error) {
	l.metrics.Observe(op, time.Since(start), err)
}

// election returns the metadata of (org, id), consulting the cache first.
// Elections never change once written, so a cached entry is never stale.
func (l *Ledger) election(r storage.Reader, org string, id uint64) (*models.Election, error) {
	key := string(electionKey(org, id))
	if e, ok := l.cache.Get(key); ok {
		return e, nil
	}
	e, ok, err := getElection(r, org, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrElectionNotFound
	}
	l.cache.Add(key, e)
	return e, nil
}

// ChainBlocks returns journal blocks starting at height from.
func (l *Ledger) ChainBlocks(ctx context.Context, from uint64, limit int) ([]*models.Block, error) {
	var blocks []*models.Block
	err := l.store.View(ctx, func(r storage.Reader) error {
		var err error
		blocks, err = chain.Blocks(r, from, limit)
		return err
	})
	return blocks, err
}

// VerifyChain checks the whole journal against this node's signing key.
func (l *Ledger) VerifyChain(ctx context.Context) (*chain.Report, error) {
	var report *chain.Report
	err := l.store.View(ctx, func(r storage.Reader) error {
		var err error
		report, err = chain.Verify(r, l.journal.Signer())
		return err
	})
	return report, err
}
