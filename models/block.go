package models

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// Journal block kinds.
const (
	KindOrganizationRegistered = "organization_registered"
	KindElectionCreated        = "election_created"
	KindVoteCast               = "vote_cast"
)

// Block is one entry of the ledger journal. Every accepted mutation appends
// exactly one block, linked to its predecessor by PrevHash.
type Block struct {
	Height    uint64          `json:"height"`
	TxID      string          `json:"tx_id"`
	Timestamp int64           `json:"timestamp"` // unix nanoseconds
	Kind      string          `json:"kind"`
	Caller    string          `json:"caller"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  hexutil.Bytes   `json:"prev_hash"`
	Hash      hexutil.Bytes   `json:"hash"`
	Signature hexutil.Bytes   `json:"signature"`
}

// CalculateHash returns the Keccak-256 digest of every field except Hash and
// Signature. Variable-length fields are length prefixed.
func (b *Block) CalculateHash() []byte {
	buffer := new(bytes.Buffer)
	_ = binary.Write(buffer, binary.BigEndian, b.Height)
	_ = binary.Write(buffer, binary.BigEndian, b.Timestamp)
	for _, field := range [][]byte{
		[]byte(b.TxID),
		[]byte(b.Kind),
		[]byte(b.Caller),
		b.Payload,
		b.PrevHash,
	} {
		_ = binary.Write(buffer, binary.BigEndian, uint32(len(field)))
		buffer.Write(field)
	}

	d := sha3.NewLegacyKeccak256()
	d.Write(buffer.Bytes())
	return d.Sum(nil)
}

// HashValid reports whether Hash matches the block contents.
func (b *Block) HashValid() bool {
	return bytes.Equal(b.CalculateHash(), b.Hash)
}

// OrganizationRegistered is the journal payload of a registration.
type OrganizationRegistered struct {
	Organization string `json:"organization_id"`
}

// ElectionCreated is the journal payload of a created election.
type ElectionCreated struct {
	Election Election `json:"election"`
	Payment  string   `json:"payment"`
}
