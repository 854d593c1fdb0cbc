// Package crm manages leads, referral sources and marketing campaigns.
package crm

import "time"

// LeadStatus tracks where a lead is in the funnel.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// leadTransitions lists the allowed forward moves in the funnel.
var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadStatusNew:       {LeadStatusContacted, LeadStatusLost},
	LeadStatusContacted: {LeadStatusQualified, LeadStatusLost},
	LeadStatusQualified: {LeadStatusConverted, LeadStatusLost},
}

// CanTransition reports whether a lead may move from one status to
// another. Converted and lost are terminal.
func CanTransition(from, to LeadStatus) bool {
	for _, allowed := range leadTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Lead represents a prospective client.
type Lead struct {
	ID         int64
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Source     string
	CampaignID *int64
	Status     LeadStatus
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReferralSource represents a professional referrer (physician,
// school counselor, another practice).
type ReferralSource struct {
	ID           int64
	Name         string
	Organization string
	Email        string
	Phone        string
	Specialty    string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Campaign represents a marketing campaign leads can be attributed to.
type Campaign struct {
	ID        int64
	Name      string
	Channel   string
	StartsAt  time.Time
	EndsAt    *time.Time
	Budget    float64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats aggregates the CRM funnel for the dashboard.
type Stats struct {
	TotalLeads      int            `json:"totalLeads"`
	LeadsByStatus   map[string]int `json:"leadsByStatus"`
	ActiveCampaigns int            `json:"activeCampaigns"`
	ReferralSources int            `json:"referralSources"`
	ConversionRate  float64        `json:"conversionRate"`
	GeneratedAt     time.Time      `json:"generatedAt"`
}
