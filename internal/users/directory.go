// Package users resolves sign-in requests to student profiles.
package users

import (
	"errors"
	"fmt"
	"strings"
)

// CurrentSemester is stamped on every profile created at sign-in.
const CurrentSemester = "Spring 2025"

const (
	didPrefix       = "did:"
	minCustomDIDLen = 10
)

// ErrInvalidDID indicates the sign-in request did not carry a usable DID.
var ErrInvalidDID = errors.New("users: invalid did")

var presetAccounts = []Account{
	{DID: "did:byteedu:0x98F7B3C2E1D5A8F4E9C6B2A7D3E5F1A3E", Address: "0x98f7b3c2e1d5a8f4e9c6b2a7d3e5f1a3e0b4c9d2", Name: "Nguyen Duc Khanh", Major: "Computer Science", ClassYear: "2025", GPA: 3.76, Email: "khanh.nguyen@byteedu.edu", Avatar: "NK"},
	{DID: "did:byteedu:0xA7B8C9D0E1F2A3B4C5D6E7F8A9B0C1D2E", Address: "0xa7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6", Name: "Tran Minh Anh", Major: "Data Science", ClassYear: "2026", GPA: 3.92, Email: "anh.tran@byteedu.edu", Avatar: "TMA"},
	{DID: "did:byteedu:0xF1E2D3C4B5A6F7E8D9C0B1A2F3E4D5C6B", Address: "0xf1e2d3c4b5a6f7e8d9c0b1a2f3e4d5c6b7a8c9d0", Name: "Le Hoang Nam", Major: "Information Technology", ClassYear: "2025", GPA: 3.54, Email: "nam.le@byteedu.edu", Avatar: "LHN"},
	{DID: "did:byteedu:0x1A2B3C4D5E6F7A8B9C0D1E2F3A4B5C6D7", Address: "0x1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b", Name: "Pham Thu Huong", Major: "Software Engineering", ClassYear: "2024", GPA: 3.88, Email: "huong.pham@byteedu.edu", Avatar: "PTH"},
}

var guestTemplate = Account{
	Name:      "Guest User",
	Major:     "Computer Science",
	ClassYear: "2025",
	GPA:       3.50,
	Email:     "guest@byteedu.edu",
	Avatar:    "GU",
}

// Directory holds the accounts available for quick sign-in.
type Directory struct {
	accounts []Account
	byDID    map[string]Account
}

// NewDirectory returns the directory of preset demo accounts.
func NewDirectory() *Directory {
	byDID := make(map[string]Account, len(presetAccounts))
	for _, account := range presetAccounts {
		byDID[strings.ToLower(account.DID)] = account
	}
	return &Directory{accounts: presetAccounts, byDID: byDID}
}

// Accounts lists the preset accounts in display order.
func (d *Directory) Accounts() []Account {
	return append([]Account(nil), d.accounts...)
}

// Resolve returns the account for did. A DID outside the preset list signs
// in as a guest carrying that DID, and its wallet when the DID ends in one.
func (d *Directory) Resolve(did string) (Account, error) {
	did = normalize(did)
	if account, ok := d.byDID[strings.ToLower(did)]; ok {
		return account, nil
	}
	if len(did) < minCustomDIDLen {
		return Account{}, fmt.Errorf("%w: must be at least %d characters", ErrInvalidDID, minCustomDIDLen)
	}
	if !strings.HasPrefix(strings.ToLower(did), didPrefix) {
		return Account{}, fmt.Errorf("%w: must start with %q", ErrInvalidDID, didPrefix)
	}
	guest := guestTemplate
	guest.DID = did
	guest.Address = walletFromDID(did)
	return guest, nil
}
