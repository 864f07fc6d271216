// Package signing holds the node key that signs journal blocks.
package signing

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyFile is the name of the credentials file kept in the data directory.
const KeyFile = "node_key.json"

var ErrInvalidHash = errors.New("signing: hash must be 32 bytes")

// Credentials is the on-disk form of a node key.
type Credentials struct {
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// Signer signs 32-byte digests with a secp256k1 key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Generate creates a signer with a fresh random key.
func Generate() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate node key: %w", err)
	}
	return newSigner(key), nil
}

// Parse restores a signer from a hex private key, with or without 0x prefix.
func Parse(privateKeyHex string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("restore node key: %w", err)
	}
	return newSigner(key), nil
}

// LoadOrGenerate reads the node key from dir, generating and persisting a new
// one when the file does not exist yet.
func LoadOrGenerate(dir string) (*Signer, error) {
	path := filepath.Join(dir, KeyFile)

	data, err := os.ReadFile(path)
	if err == nil {
		var creds Credentials
		if err := json.Unmarshal(data, &creds); err != nil {
			return nil, fmt.Errorf("parse node credentials: %w", err)
		}
		return Parse(creds.PrivateKey)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read node credentials: %w", err)
	}

	s, err := Generate()
	if err != nil {
		return nil, err
	}
	data, err = json.MarshalIndent(s.Credentials(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal node credentials: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("save node credentials: %w", err)
	}
	return s, nil
}

// Address is the Ethereum-style address of the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) Credentials() Credentials {
	return Credentials{
		Address:    s.address.Hex(),
		PublicKey:  hexutil.Encode(crypto.FromECDSAPub(&s.key.PublicKey)),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(s.key)),
	}
}

// Sign returns a 65-byte recoverable signature over hash.
func (s *Signer) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidHash
	}
	return crypto.Sign(hash, s.key)
}

// Recover returns the address that produced sig over hash.
func Recover(hash, sig []byte) (common.Address, error) {
	if len(hash) != 32 {
		return common.Address{}, ErrInvalidHash
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
