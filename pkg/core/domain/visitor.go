package domain

import "time"

// Visitor is the aggregated profile served to the admin dashboard.
type Visitor struct {
	ID               string    `json:"id"`
	IPHash           string    `json:"-"`
	CompanyName      *string   `json:"company_name"`
	Country          *string   `json:"country"`
	DeviceType       *string   `json:"device_type"`
	Industry         *string   `json:"industry"`
	VisitCount       int       `json:"visit_count"`
	TotalTimeSpent   int       `json:"total_time_spent"`
	PagesPerSession  float64   `json:"pages_per_session"`
	EngagementScore  int       `json:"engagement_score"`
	IntentScore      int       `json:"intent_score"`
	HeatLevel        string    `json:"heat_level"`
	Referrer         string    `json:"-"`
	UTMSource        string    `json:"-"`
	UTMMedium        string    `json:"-"`
	UTMCampaign      string    `json:"-"`
	ScreenResolution string    `json:"-"`
	FirstVisitDate   time.Time `json:"-"`
	LastVisitDate    time.Time `json:"last_visit_date"`
}

// Heat levels assigned by the scoring backend.
const (
	HeatCold            = "Cold"
	HeatWarm            = "Warm"
	HeatHot             = "Hot"
	HeatEnterpriseReady = "Enterprise Ready"
)

var HeatLevels = []string{HeatCold, HeatWarm, HeatHot, HeatEnterpriseReady}

// Sort orders accepted by the visitors listing.
const (
	SortIntentScore   = "intent_score"
	SortVisitCount    = "visit_count"
	SortLastVisitDate = "last_visit_date"
)

const (
	DefaultVisitorLimit = 100
	MaxVisitorLimit     = 1000
)

type VisitorQuery struct {
	SortBy    string
	Limit     int
	Country   string
	HeatLevel string
	Industry  string
	DateFrom  *time.Time
	DateTo    *time.Time // exclusive upper bound
}

type FilterOptions struct {
	Countries  []string `json:"countries"`
	Industries []string `json:"industries"`
	HeatLevels []string `json:"heat_levels"`
}
