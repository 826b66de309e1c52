package users

import (
	"strings"

	"github.com/MarcoPoloResearchLab/byteedu/internal/chain"
	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
)

// Account is a demo identity offered on the sign-in screen.
type Account struct {
	DID       string  `json:"did"`
	Address   string  `json:"address,omitempty"`
	Name      string  `json:"name"`
	Major     string  `json:"major"`
	ClassYear string  `json:"classYear"`
	GPA       float64 `json:"gpa"`
	Email     string  `json:"email"`
	Avatar    string  `json:"avatar"`
}

// Profile converts the account into the profile stored at sign-in.
func (a Account) Profile(semester string) records.Profile {
	return records.Profile{
		Name:      a.Name,
		DID:       a.DID,
		Major:     a.Major,
		ClassYear: a.ClassYear,
		GPA:       a.GPA,
		Semester:  semester,
		Email:     a.Email,
		Region:    records.RegionNone,
	}
}

// walletFromDID returns the trailing wallet address of did, when it carries one.
func walletFromDID(did string) string {
	candidate := did[strings.LastIndex(did, ":")+1:]
	if !chain.IsWalletAddress(candidate) || !strings.HasPrefix(strings.ToLower(candidate), "0x") {
		return ""
	}
	return chain.NormalizeAddress(candidate)
}

// normalize value helper used across the directory.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
