// Package chain produces the placeholder ledger identifiers the demo uses in
// place of real on-chain receipts.
package chain

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HashGenerator issues placeholder transaction hashes.
type HashGenerator interface {
	// TxHash returns a 32-byte transaction hash (0x + 64 hex characters).
	TxHash() (string, error)
	// BadgeHash returns a 20-byte mint reference (0x + 40 hex characters),
	// the width the seeded badge catalog uses.
	BadgeHash() (string, error)
}

// RandomHashes draws hash bytes from an entropy source.
type RandomHashes struct {
	entropy io.Reader
}

// NewRandomHashes returns a generator backed by crypto/rand.
func NewRandomHashes() *RandomHashes {
	return &RandomHashes{entropy: rand.Reader}
}

// NewHashesFrom returns a generator reading from entropy. Tests use it with
// deterministic readers.
func NewHashesFrom(entropy io.Reader) *RandomHashes {
	return &RandomHashes{entropy: entropy}
}

func (g *RandomHashes) TxHash() (string, error) {
	var buf [common.HashLength]byte
	if _, err := io.ReadFull(g.entropy, buf[:]); err != nil {
		return "", fmt.Errorf("chain: read entropy: %w", err)
	}
	return common.BytesToHash(buf[:]).Hex(), nil
}

func (g *RandomHashes) BadgeHash() (string, error) {
	var buf [common.AddressLength]byte
	if _, err := io.ReadFull(g.entropy, buf[:]); err != nil {
		return "", fmt.Errorf("chain: read entropy: %w", err)
	}
	return hexutil.Encode(buf[:]), nil
}

// IsWalletAddress reports whether value is a 20-byte hex account address.
func IsWalletAddress(value string) bool {
	return common.IsHexAddress(value)
}

// NormalizeAddress returns the checksummed form of a valid address.
func NormalizeAddress(value string) string {
	return common.HexToAddress(value).Hex()
}

// IsTxHash reports whether value is a 0x-prefixed 32-byte hash.
func IsTxHash(value string) bool {
	decoded, err := hexutil.Decode(value)
	return err == nil && len(decoded) == common.HashLength
}
