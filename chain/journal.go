// Package chain keeps the hash-linked, node-signed journal of every mutation
// the ledger accepts. Blocks are written by the caller's storage transaction,
// so a block exists if and only if its mutation was committed.
package chain

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"election-ledger/models"
	"election-ledger/signing"
	"election-ledger/storage"
)

// MaxPageSize bounds a single Blocks read.
const MaxPageSize = 500

var lengthKey = []byte("chain_length")

// GenesisPrevHash is the PrevHash of the block at height 0.
var GenesisPrevHash = make([]byte, 32)

var ErrCorruptHead = errors.New("chain: corrupt head record")

// Journal appends signed blocks.
type Journal struct {
	signer *signing.Signer
}

func New(signer *signing.Signer) *Journal {
	return &Journal{signer: signer}
}

// Signer returns the address blocks are signed with.
func (j *Journal) Signer() common.Address {
	return j.signer.Address()
}

// Append builds the next block for payload and stores it through w.
func (j *Journal) Append(w storage.Writer, kind, caller string, at time.Time, payload any) (*models.Block, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	height, err := Length(w)
	if err != nil {
		return nil, err
	}
	prevHash := GenesisPrevHash
	if height > 0 {
		prev, ok, err := blockAt(w, height-1)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("block %d: %w", height-1, ErrCorruptHead)
		}
		prevHash = prev.Hash
	}

	block := &models.Block{
		Height:    height,
		TxID:      uuid.New().String(),
		Timestamp: at.UnixNano(),
		Kind:      kind,
		Caller:    caller,
		Payload:   raw,
		PrevHash:  prevHash,
	}
	block.Hash = block.CalculateHash()
	block.Signature, err = j.signer.Sign(block.Hash)
	if err != nil {
		return nil, fmt.Errorf("sign block %d: %w", height, err)
	}

	data, err := json.Marshal(block)
	if err != nil {
		return nil, fmt.Errorf("marshal block %d: %w", height, err)
	}
	if err := w.Put(storage.TableBlocks, blockKey(height), data); err != nil {
		return nil, fmt.Errorf("store block %d: %w", height, err)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, height+1)
	if err := w.Put(storage.TableMeta, lengthKey, next); err != nil {
		return nil, fmt.Errorf("store chain length: %w", err)
	}
	return block, nil
}

// Length returns the number of blocks in the journal.
func Length(r storage.Reader) (uint64, error) {
	v, ok, err := r.Get(storage.TableMeta, lengthKey)
	if err != nil {
		return 0, fmt.Errorf("read chain length: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, ErrCorruptHead
	}
	return binary.BigEndian.Uint64(v), nil
}

// Blocks returns up to limit blocks starting at height from.
func Blocks(r storage.Reader, from uint64, limit int) ([]*models.Block, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	length, err := Length(r)
	if err != nil {
		return nil, err
	}
	blocks := make([]*models.Block, 0)
	for h := from; h < length && len(blocks) < limit; h++ {
		b, ok, err := blockAt(r, h)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("block %d missing: %w", h, ErrCorruptHead)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Problem describes one block that failed verification.
type Problem struct {
	Height uint64 `json:"height"`
	Reason string `json:"reason"`
}

// Report is the outcome of Verify.
type Report struct {
	Length   uint64        `json:"length"`
	Valid    bool          `json:"valid"`
	LastHash hexutil.Bytes `json:"last_hash,omitempty"`
	Signer   string        `json:"signer"`
	Problems []Problem     `json:"problems,omitempty"`
}

// Verify walks the whole journal and checks heights, hash links, block
// hashes, timestamps and that every signature recovers to signer.
func Verify(r storage.Reader, signer common.Address) (*Report, error) {
	report := &Report{Signer: signer.Hex()}

	var (
		expected = uint64(0)
		prev     *models.Block
	)
	err := r.Scan(storage.TableBlocks, nil, func(key, value []byte) error {
		var b models.Block
		if err := json.Unmarshal(value, &b); err != nil {
			report.Problems = append(report.Problems, Problem{Height: expected, Reason: "undecodable block"})
			expected++
			return nil
		}
		report.Problems = append(report.Problems, checkBlock(&b, prev, expected, signer)...)
		prev = &b
		expected = b.Height + 1
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan blocks: %w", err)
	}

	length, err := Length(r)
	if err != nil {
		return nil, err
	}
	if length != expected {
		report.Problems = append(report.Problems, Problem{
			Height: expected,
			Reason: fmt.Sprintf("recorded length %d, found %d blocks", length, expected),
		})
	}

	report.Length = expected
	if prev != nil {
		report.LastHash = prev.Hash
	}
	report.Valid = len(report.Problems) == 0
	return report, nil
}

func checkBlock(b, prev *models.Block, expected uint64, signer common.Address) []Problem {
	var problems []Problem
	add := func(reason string) {
		problems = append(problems, Problem{Height: b.Height, Reason: reason})
	}

	if b.Height != expected {
		add(fmt.Sprintf("height %d, expected %d", b.Height, expected))
	}
	if !b.HashValid() {
		add("hash does not match contents")
	}
	if prev == nil {
		if !bytes.Equal(b.PrevHash, GenesisPrevHash) {
			add("first block does not start from genesis")
		}
	} else {
		if !bytes.Equal(b.PrevHash, prev.Hash) {
			add("previous hash link broken")
		}
		if b.Timestamp < prev.Timestamp {
			add("timestamp precedes previous block")
		}
	}
	addr, err := signing.Recover(b.Hash, b.Signature)
	switch {
	case err != nil:
		add("unrecoverable signature")
	case addr != signer:
		add("signed by " + addr.Hex())
	}
	return problems
}

func blockAt(r storage.Reader, height uint64) (*models.Block, bool, error) {
	v, ok, err := r.Get(storage.TableBlocks, blockKey(height))
	if err != nil || !ok {
		return nil, ok, err
	}
	var b models.Block
	if err := json.Unmarshal(v, &b); err != nil {
		return nil, false, fmt.Errorf("decode block %d: %w", height, err)
	}
	return &b, true, nil
}

func blockKey(height uint64) []byte {
	return storage.Key().Uint64(height).Bytes()
}
