package chain

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestRandomHashesWidths(t *testing.T) {
	generator := NewRandomHashes()

	txHash, err := generator.TxHash()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txHash) != 66 || !strings.HasPrefix(txHash, "0x") {
		t.Fatalf("unexpected tx hash %q", txHash)
	}

	badgeHash, err := generator.BadgeHash()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(badgeHash) != 42 || badgeHash != strings.ToLower(badgeHash) {
		t.Fatalf("unexpected badge hash %q", badgeHash)
	}
}

func TestHashesFromDeterministicReader(t *testing.T) {
	generator := NewHashesFrom(bytes.NewReader(bytes.Repeat([]byte{0xab}, 64)))

	txHash, err := generator.TxHash()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txHash != "0x"+strings.Repeat("ab", 32) {
		t.Fatalf("unexpected tx hash %q", txHash)
	}
}

func TestHashesPropagateEntropyFailure(t *testing.T) {
	generator := NewHashesFrom(failingReader{})
	if _, err := generator.TxHash(); err == nil {
		t.Fatalf("expected tx hash to fail")
	}
	if _, err := generator.BadgeHash(); err == nil {
		t.Fatalf("expected badge hash to fail")
	}
}

func TestIsWalletAddress(t *testing.T) {
	cases := map[string]bool{
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8": true,
		"70997970c51812dc3a010c7d01b50e0d17dc79c8":   true,
		"0x1234":         false,
		"not-an-address": false,
	}
	for input, expected := range cases {
		if IsWalletAddress(input) != expected {
			t.Fatalf("IsWalletAddress(%q) expected %v", input, expected)
		}
	}
	if NormalizeAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8") != "0x70997970C51812dc3A010C7d01b50e0d17dc79C8" {
		t.Fatalf("expected checksummed address")
	}
}

func TestIsTxHash(t *testing.T) {
	generated, err := NewRandomHashes().TxHash()
	if err != nil {
		t.Fatalf("tx hash: %v", err)
	}
	cases := map[string]bool{
		generated: true,
		"0xa1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1b2": true,
		"0x8fe08ef56cbefe58fe08ef56cbefe58fe08ef56c":                         false,
		"7f9fade1c0d57a7af66ab4ead79fade1c0d57a7af66ab4ead7c2c2eb7b11a91385": false,
		"0xzz": false,
		"":     false,
	}
	for value, want := range cases {
		if got := IsTxHash(value); got != want {
			t.Fatalf("IsTxHash(%q) = %v, want %v", value, got, want)
		}
	}
}
