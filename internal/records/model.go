package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Region is the home region recorded for a student. HIGHLAND, MEKONG and
// MOUNTAINOUS students carry a vote-weight bonus.
type Region int

const (
	RegionNone Region = iota
	RegionHanoi
	RegionHoChiMinh
	RegionCentral
	RegionHighland
	RegionMekong
	RegionMountainous
)

var regionNames = [...]string{"NONE", "HANOI", "HOCHIMINH", "CENTRAL", "HIGHLAND", "MEKONG", "MOUNTAINOUS"}

// Valid reports whether r is one of the known region codes.
func (r Region) Valid() bool {
	return r >= RegionNone && r <= RegionMountainous
}

func (r Region) String() string {
	if !r.Valid() {
		return "UNKNOWN"
	}
	return regionNames[r]
}

// ContributionType enumerates the categories a contribution can be filed under.
type ContributionType string

const (
	ContributionQuiz        ContributionType = "quiz"
	ContributionVolunteer   ContributionType = "volunteer"
	ContributionResearch    ContributionType = "research"
	ContributionLeadership  ContributionType = "leadership"
	ContributionAttendance  ContributionType = "attendance"
	ContributionCompetition ContributionType = "competition"
)

// ContributionTypes lists every accepted category in display order.
var ContributionTypes = []ContributionType{
	ContributionQuiz,
	ContributionVolunteer,
	ContributionResearch,
	ContributionLeadership,
	ContributionAttendance,
	ContributionCompetition,
}

// ParseContributionType normalizes raw input into a known category.
func ParseContributionType(raw string) (ContributionType, bool) {
	candidate := ContributionType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range ContributionTypes {
		if known == candidate {
			return known, true
		}
	}
	return "", false
}

// VoteChoice is the side a vote is cast for.
type VoteChoice string

const (
	ChoiceApprove VoteChoice = "approve"
	ChoiceReject  VoteChoice = "reject"
)

// ParseVoteChoice normalizes raw input into a vote choice.
func ParseVoteChoice(raw string) (VoteChoice, bool) {
	switch VoteChoice(strings.ToLower(strings.TrimSpace(raw))) {
	case ChoiceApprove:
		return ChoiceApprove, true
	case ChoiceReject:
		return ChoiceReject, true
	default:
		return "", false
	}
}

// Profile describes the student using this client.
type Profile struct {
	Name      string  `json:"name" yaml:"name"`
	DID       string  `json:"did" yaml:"did"`
	Major     string  `json:"major" yaml:"major"`
	ClassYear string  `json:"classYear" yaml:"classYear"`
	GPA       float64 `json:"gpa" yaml:"gpa"`
	Semester  string  `json:"semester" yaml:"semester"`
	Email     string  `json:"email" yaml:"email"`
	Region    Region  `json:"region" yaml:"region"`
}

// ProfilePatch carries a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Name      *string  `json:"name,omitempty"`
	DID       *string  `json:"did,omitempty"`
	Major     *string  `json:"major,omitempty"`
	ClassYear *string  `json:"classYear,omitempty"`
	GPA       *float64 `json:"gpa,omitempty"`
	Semester  *string  `json:"semester,omitempty"`
	Email     *string  `json:"email,omitempty"`
	Region    *Region  `json:"region,omitempty"`
}

// PatchFrom builds a patch that overrides every field with the values of p.
func PatchFrom(p Profile) ProfilePatch {
	return ProfilePatch{
		Name:      &p.Name,
		DID:       &p.DID,
		Major:     &p.Major,
		ClassYear: &p.ClassYear,
		GPA:       &p.GPA,
		Semester:  &p.Semester,
		Email:     &p.Email,
		Region:    &p.Region,
	}
}

// Apply returns base with the non-nil fields of the patch overridden.
func (patch ProfilePatch) Apply(base Profile) Profile {
	merged := base
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.DID != nil {
		merged.DID = *patch.DID
	}
	if patch.Major != nil {
		merged.Major = *patch.Major
	}
	if patch.ClassYear != nil {
		merged.ClassYear = *patch.ClassYear
	}
	if patch.GPA != nil {
		merged.GPA = *patch.GPA
	}
	if patch.Semester != nil {
		merged.Semester = *patch.Semester
	}
	if patch.Email != nil {
		merged.Email = *patch.Email
	}
	if patch.Region != nil {
		merged.Region = *patch.Region
	}
	return merged
}

// Badge is one entry of the fixed achievement catalog.
type Badge struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Color      string     `json:"color" yaml:"color"`
	EarnedDate *time.Time `json:"earnedDate" yaml:"earnedDate"`
	Obtained   bool       `json:"obtained" yaml:"obtained"`
	TxHash     string     `json:"txHash,omitempty" yaml:"txHash,omitempty"`
}

// UnmarshalJSON accepts earnedDate as RFC 3339 or as a bare calendar date,
// which older clients wrote.
func (b *Badge) UnmarshalJSON(data []byte) error {
	type plain Badge
	var decoded struct {
		plain
		EarnedDate *string `json:"earnedDate"`
	}
	if err := sonic.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*b = Badge(decoded.plain)
	b.EarnedDate = nil
	if decoded.EarnedDate == nil || strings.TrimSpace(*decoded.EarnedDate) == "" {
		return nil
	}
	earned, err := parseEarnedDate(strings.TrimSpace(*decoded.EarnedDate))
	if err != nil {
		return err
	}
	b.EarnedDate = &earned
	return nil
}

func parseEarnedDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, nil
	}
	if parsed, err := time.ParseInLocation(time.DateOnly, value, time.UTC); err == nil {
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("earnedDate %q is neither RFC 3339 nor a calendar date", value)
}

// Contribution is a verified achievement submitted by the student.
type Contribution struct {
	ID          string           `json:"id" yaml:"id"`
	FileName    string           `json:"fileName" yaml:"fileName"`
	Type        ContributionType `json:"type" yaml:"type"`
	UploadDate  time.Time        `json:"uploadDate" yaml:"uploadDate"`
	ImpactScore int              `json:"impactScore" yaml:"impactScore"`
	Verified    bool             `json:"verified" yaml:"verified"`
}

// Vote records tokens spent on a governance proposal.
type Vote struct {
	ProposalID int64      `json:"proposalId" yaml:"proposalId"`
	Amount     int64      `json:"amount" yaml:"amount"`
	Choice     VoteChoice `json:"choice" yaml:"choice"`
	Date       time.Time  `json:"date" yaml:"date"`
	TxHash     string     `json:"txHash" yaml:"txHash"`
}

// Snapshot is a point-in-time copy of every persisted collection.
type Snapshot struct {
	Profile       Profile        `json:"profile" yaml:"profile"`
	TokenBalance  int64          `json:"tokenBalance" yaml:"tokenBalance"`
	Badges        []Badge        `json:"badges" yaml:"badges"`
	Contributions []Contribution `json:"contributions" yaml:"contributions"`
	Votes         []Vote         `json:"votes" yaml:"votes"`
	Authenticated bool           `json:"authenticated" yaml:"authenticated"`
	CurrentUser   *Profile       `json:"currentUser,omitempty" yaml:"currentUser,omitempty"`
}
