package governance

import (
	"time"

	"github.com/shopspring/decimal"
)

type seedProposal struct {
	id          int64
	title       string
	description string
	category    string
	support     int64
	countdown   time.Duration
}

func countdown(hours, minutes, seconds int) time.Duration {
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
}

var seedProposals = []seedProposal{
	{12, "Robotics club equipment (20M VND)", "Fund new equipment for the university robotics club so it can enter national competitions and deepen hands-on learning.", "Funding", 62, countdown(2, 13, 45)},
	{13, "Two NVIDIA A100 GPUs for the AI lab", "Buy high-performance GPUs to expand AI research capacity for students and faculty working on deep learning projects.", "Infrastructure", 48, countdown(1, 45, 22)},
	{14, "Mekong Delta student scholarship", "Create a scholarship fund covering tuition and living costs for students in hardship from the Mekong Delta.", "Scholarship", 83, countdown(3, 30, 18)},
	{15, "Campus-wide Wi-Fi upgrade", "Modernize the campus network with Wi-Fi 6E to meet the growing demand of digital learning and research.", "Infrastructure", 71, countdown(4, 15, 30)},
	{16, "Student mental health support", "Allocate resources for professional counselling, mental health workshops and peer support groups.", "Wellness", 89, countdown(5, 22, 10)},
	{17, "Innovation and startup incubator", "Provide dedicated space and grants that support student startups with mentorship, resources and seed capital.", "Entrepreneurship", 55, countdown(6, 45, 55)},
	{18, "24/7 library hours", "Keep the library open around the clock during exam periods and major project deadlines.", "Facilities", 76, countdown(7, 30, 15)},
	{19, "Green campus sustainability fund", "Budget solar panels, recycling programmes and green infrastructure to cut campus carbon emissions.", "Environment", 68, countdown(8, 12, 40)},
	{20, "eSports arena and gaming club", "Build a dedicated eSports venue with high-end gaming PCs and streaming equipment for competitive play.", "Recreation", 54, countdown(9, 5, 20)},
	{21, "International exchange scholarship", "Fund study-abroad scholarships at partner universities in the US, the EU and Asia.", "Scholarship", 81, countdown(10, 22, 35)},
	{22, "Canteen upgrade with a diverse menu", "Renovate the student canteen and add international dishes, vegan options and evening service.", "Facilities", 72, countdown(11, 18, 50)},
	{23, "Student research publication fund", "Help students publish in international journals and attend scientific conferences.", "Funding", 79, countdown(12, 45, 10)},
	{24, "Modern fitness and recreation center", "Build a new gym with modern equipment, a yoga room, a swimming pool and sports courts.", "Wellness", 65, countdown(13, 30, 25)},
	{25, "AI teaching assistant platform", "Deploy an AI-powered platform for homework help, tutoring and personalised learning around the clock.", "Technology", 58, countdown(14, 15, 40)},
	{26, "Student housing cost support fund", "Set up a fund that subsidises dormitory costs for low-income students.", "Scholarship", 85, countdown(15, 8, 55)},
	{27, "Career development center", "Offer CV workshops, mock interviews, career counselling and networking events with employers.", "Career", 73, countdown(16, 25, 30)},
	{28, "Open-source software lab", "Establish a lab focused on open-source development that teaches students to contribute to real projects.", "Technology", 61, countdown(17, 42, 15)},
	{29, "Culture festival and arts program", "Support an annual multicultural festival, art exhibitions, music performances and cultural exchange.", "Culture", 69, countdown(18, 20, 45)},
	{30, "Emergency financial aid reserve", "Create an emergency fund for students facing sudden financial hardship or family emergencies.", "Funding", 87, countdown(19, 10, 0)},
}

func seedCatalog(seededAt time.Time) []Proposal {
	catalog := make([]Proposal, 0, len(seedProposals))
	for _, seed := range seedProposals {
		catalog = append(catalog, Proposal{
			ID:          seed.id,
			Title:       seed.title,
			Description: seed.description,
			Category:    seed.category,
			Support:     decimal.NewFromInt(seed.support),
			EndsAt:      seededAt.Add(seed.countdown),
		})
	}
	return catalog
}

// fallbackCountdown applies to persisted proposals the seed list no longer knows.
const fallbackCountdown = 24 * time.Hour

func allClosed(catalog []Proposal, now time.Time) bool {
	for _, proposal := range catalog {
		if now.Before(proposal.EndsAt) {
			return false
		}
	}
	return true
}

// reopen restarts every countdown from now. Support gathered so far is kept.
func reopen(catalog []Proposal, now time.Time) []Proposal {
	countdowns := make(map[int64]time.Duration, len(seedProposals))
	for _, seed := range seedProposals {
		countdowns[seed.id] = seed.countdown
	}
	reopened := make([]Proposal, len(catalog))
	for index, proposal := range catalog {
		countdown, ok := countdowns[proposal.ID]
		if !ok {
			countdown = fallbackCountdown
		}
		proposal.EndsAt = now.Add(countdown)
		reopened[index] = proposal
	}
	return reopened
}
