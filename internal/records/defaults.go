package records

import "time"

const (
	// SchemaVersion gates the badge catalog refresh in InitializeStorage.
	SchemaVersion = "1.1"

	// DefaultTokenBalance is the balance of a student who has never earned
	// or spent tokens.
	DefaultTokenBalance int64 = 300
)

func day(year int, month time.Month, date int) *time.Time {
	value := time.Date(year, month, date, 0, 0, 0, 0, time.UTC)
	return &value
}

func instant(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return parsed
}

// DefaultProfile returns the profile used before anyone signs in.
func DefaultProfile() Profile {
	return Profile{
		Name:      "Nguyen Duc Khanh",
		DID:       "did:byteedu:0x98F7B3C2E1D5A8F4E9C6B2A7D3E5F1A3E",
		Major:     "Computer Science",
		ClassYear: "2025",
		GPA:       3.76,
		Semester:  "Spring 2025",
		Email:     "khanh.nguyen@byteedu.edu",
		Region:    RegionNone,
	}
}

// DefaultBadges returns a fresh copy of the badge catalog.
func DefaultBadges() []Badge {
	return []Badge{
		{ID: "1", Name: "Research Excellence", Color: "bg-blue-500", Obtained: true, EarnedDate: day(2024, time.September, 15), TxHash: "0x8fe08ef56cbefe58fe08ef56cbefe58fe08ef56c"},
		{ID: "2", Name: "Leadership", Color: "bg-purple-500", Obtained: true, EarnedDate: day(2024, time.October, 20), TxHash: "0x7a9c3b5e2f1d8c4a6e9b7c3f5a8d2e6b4c1f9a7e"},
		{ID: "3", Name: "Volunteer Star", Color: "bg-green-500", Obtained: true, EarnedDate: day(2024, time.November, 5), TxHash: "0x3d5f7a9c1e8b4a6c2f5d8e9a7c3b1f6e4d2a8c5e"},
		{ID: "4", Name: "Academic Excellence", Color: "bg-yellow-500", Obtained: true, EarnedDate: day(2024, time.August, 30), TxHash: "0x9b4e6c2a8f5d3e7a1c9b6f4e2d8a5c7e3b1f9d6a"},
		{ID: "5", Name: "Innovation Award", Color: "bg-pink-500", Obtained: false},
		{ID: "6", Name: "Community Builder", Color: "bg-indigo-500", Obtained: true, EarnedDate: day(2024, time.September, 25), TxHash: "0x2e8d5a3f7c9b1e6a4d8f5c2e9a7b3d6f1c8e4a5b"},
		{ID: "7", Name: "Global Citizen", Color: "bg-orange-500", Obtained: false},
		{ID: "8", Name: "Tech Pioneer", Color: "bg-cyan-500", Obtained: true, EarnedDate: day(2024, time.October, 10), TxHash: "0x5c8f2a9e7b3d1f6c4e8a5d2b9f7c3e1a6d4b8f5c"},
		{ID: "9", Name: "Social Impact", Color: "bg-emerald-500", Obtained: true, EarnedDate: day(2024, time.November, 12), TxHash: "0x6f9a3c5e8d2b7f1a4c6e9d5b8a3f7c1e4d2b9f6a"},
	}
}

// DefaultContributions returns the sample contribution history.
func DefaultContributions() []Contribution {
	return []Contribution{
		{ID: "1730800001", FileName: "AI_Research_Paper_Final.pdf", Type: ContributionResearch, UploadDate: instant("2024-10-15T14:30:00Z"), ImpactScore: 92, Verified: true},
		{ID: "1730800002", FileName: "Community_Service_Certificate.jpg", Type: ContributionVolunteer, UploadDate: instant("2024-10-18T09:15:00Z"), ImpactScore: 85, Verified: true},
		{ID: "1730800003", FileName: "Blockchain_Competition_Award.pdf", Type: ContributionCompetition, UploadDate: instant("2024-10-22T16:45:00Z"), ImpactScore: 95, Verified: true},
		{ID: "1730800004", FileName: "CS301_Midterm_Exam_Score.pdf", Type: ContributionQuiz, UploadDate: instant("2024-10-25T11:20:00Z"), ImpactScore: 88, Verified: true},
		{ID: "1730800005", FileName: "Tech_Club_President_Certificate.jpg", Type: ContributionLeadership, UploadDate: instant("2024-11-01T10:30:00Z"), ImpactScore: 90, Verified: true},
		{ID: "1730800006", FileName: "Database_Systems_Perfect_Attendance.pdf", Type: ContributionAttendance, UploadDate: instant("2024-11-05T08:00:00Z"), ImpactScore: 78, Verified: true},
		{ID: "1730800007", FileName: "National_Hackathon_2024_Winner.jpg", Type: ContributionCompetition, UploadDate: instant("2024-11-08T15:30:00Z"), ImpactScore: 87, Verified: true},
		{ID: "1730800008", FileName: "Machine_Learning_Research_Publication.pdf", Type: ContributionResearch, UploadDate: instant("2024-09-20T13:00:00Z"), ImpactScore: 94, Verified: true},
		{ID: "1730800009", FileName: "Environmental_Volunteer_Project.jpg", Type: ContributionVolunteer, UploadDate: instant("2024-09-28T10:45:00Z"), ImpactScore: 82, Verified: true},
		{ID: "1730800010", FileName: "Math_Olympiad_Bronze_Medal.pdf", Type: ContributionCompetition, UploadDate: instant("2024-08-15T14:20:00Z"), ImpactScore: 86, Verified: true},
	}
}

// DefaultVotes returns the sample voting history.
func DefaultVotes() []Vote {
	return []Vote{
		{ProposalID: 11, Amount: 15, Choice: ChoiceApprove, Date: instant("2024-10-20T14:30:00Z"), TxHash: "0x7f9fade1c0d57a7af66ab4ead79fade1c0d57a7af66ab4ead7c2c2eb7b11a91385"},
		{ProposalID: 10, Amount: 20, Choice: ChoiceApprove, Date: instant("2024-10-25T09:15:00Z"), TxHash: "0x3c2f8b4e6d1a9c7b5e3f8d4c2a1b9e7f6d5c4b3a2e1f9d8c7b6a5e4f3d2c1b0a"},
		{ProposalID: 9, Amount: 10, Choice: ChoiceReject, Date: instant("2024-11-01T16:45:00Z"), TxHash: "0xa1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1b2"},
		{ProposalID: 8, Amount: 25, Choice: ChoiceApprove, Date: instant("2024-09-15T11:20:00Z"), TxHash: "0xd4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1b2c3d4e5"},
		{ProposalID: 7, Amount: 12, Choice: ChoiceApprove, Date: instant("2024-09-22T08:30:00Z"), TxHash: "0xf6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1b2c3d4e5f6a7"},
	}
}
