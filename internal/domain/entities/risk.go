package entities

import (
	"math"
	"time"
)

// RiskTier is a discrete risk bucket derived from a probability
type RiskTier string

const (
	RiskTierLow    RiskTier = "LOW"
	RiskTierMedium RiskTier = "MEDIUM"
	RiskTierHigh   RiskTier = "HIGH"
)

// ContributingFactor is one signed contribution to a score, in log-odds units
type ContributingFactor struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
}

// RiskScore is the estimated no-show probability for one appointment.
// Factors are ordered by decreasing absolute contribution.
type RiskScore struct {
	Probability float64              `json:"probability"`
	Factors     []ContributingFactor `json:"factors"`
}

// ScoredAppointment pairs a feature row with its score
type ScoredAppointment struct {
	AppointmentID string            `json:"appointment_id"`
	PatientID     string            `json:"patient_id"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	Categorical   map[string]string `json:"categorical"`
	Score         RiskScore         `json:"score"`
}

// probabilityScale converts probabilities to fixed-point so that sums are
// exact and independent of accumulation order.
const probabilityScale = 1e9

// RiskCohort aggregates scores over a set of appointments
type RiskCohort struct {
	Total  int `json:"total"`
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`

	// ProbabilitySum is the fixed-point (1e-9) sum of probabilities.
	ProbabilitySum int64 `json:"probability_sum"`

	// MeanProbability is nil when the cohort is empty.
	MeanProbability *float64 `json:"mean_probability"`

	GroupBy string                 `json:"group_by,omitempty"`
	Groups  map[string]*RiskCohort `json:"groups,omitempty"`
}

// Add accumulates one probability under the given tier
func (c *RiskCohort) Add(p float64, tier RiskTier) {
	c.Total++
	switch tier {
	case RiskTierHigh:
		c.High++
	case RiskTierMedium:
		c.Medium++
	default:
		c.Low++
	}
	c.ProbabilitySum += int64(math.Round(p * probabilityScale))
	c.refreshMean()
}

// Merge folds other into c. Merging is commutative and associative.
func (c *RiskCohort) Merge(other *RiskCohort) {
	if other == nil {
		return
	}
	c.Total += other.Total
	c.Low += other.Low
	c.Medium += other.Medium
	c.High += other.High
	c.ProbabilitySum += other.ProbabilitySum
	c.refreshMean()

	if len(other.Groups) == 0 {
		return
	}
	if c.GroupBy == "" {
		c.GroupBy = other.GroupBy
	}
	if c.Groups == nil {
		c.Groups = make(map[string]*RiskCohort, len(other.Groups))
	}
	for key, g := range other.Groups {
		dst, ok := c.Groups[key]
		if !ok {
			dst = &RiskCohort{}
			c.Groups[key] = dst
		}
		dst.Merge(g)
	}
}

// HasData reports whether the cohort contains any scored appointment
func (c *RiskCohort) HasData() bool {
	return c.Total > 0
}

func (c *RiskCohort) refreshMean() {
	if c.Total == 0 {
		c.MeanProbability = nil
		return
	}
	mean := float64(c.ProbabilitySum) / probabilityScale / float64(c.Total)
	c.MeanProbability = &mean
}

// InterventionAction is a concrete outreach step
type InterventionAction string

const (
	ActionPhoneCall48h             InterventionAction = "phone_call_48h_before"
	ActionSMS24h                   InterventionAction = "sms_24h_before"
	ActionFacilitatedRescheduling  InterventionAction = "offer_facilitated_rescheduling"
	ActionEvaluateTransportSubsidy InterventionAction = "evaluate_transport_subsidy"
	ActionAutomaticConfirmation    InterventionAction = "automatic_confirmation"
)

// PatientAttributes are the non-model inputs of the intervention policy
type PatientAttributes struct {
	// HouseholdIncome is nil when unknown.
	HouseholdIncome *float64 `json:"household_income,omitempty"`
	// DistanceKm is Missing() when either facility location is unknown.
	DistanceKm float64 `json:"distance_km"`
	RiskFlag   string  `json:"risk_flag"`
}

// SubsidyEvaluation is the outcome of the transport subsidy check
type SubsidyEvaluation struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// InterventionDecision is the recommended outreach for one appointment
type InterventionDecision struct {
	Tier    RiskTier             `json:"tier"`
	Actions []InterventionAction `json:"actions"`
	// Subsidy is set only for HIGH tier decisions.
	Subsidy *SubsidyEvaluation `json:"subsidy,omitempty"`
}

// OverbookingRecommendation bounds extra bookings for one specialty
type OverbookingRecommendation struct {
	Specialty           string   `json:"specialty"`
	ObservedNoShowRate  *float64 `json:"observed_no_show_rate"`
	Ceiling             float64  `json:"ceiling"`
	PredictedNoShowRate *float64 `json:"predicted_no_show_rate"`
	Recommended         float64  `json:"recommended"`
}

// PatientAssessment is the result of scoring a patient's appointment
type PatientAssessment struct {
	PatientID     string               `json:"patient_id"`
	AppointmentID string               `json:"appointment_id"`
	ScheduledAt   time.Time            `json:"scheduled_at"`
	Score         RiskScore            `json:"score"`
	Decision      InterventionDecision `json:"decision"`
	ModelVersion  string               `json:"model_version"`
}

// RiskDetail is one entry of the highest-risk list of a range assessment
type RiskDetail struct {
	AppointmentID string   `json:"appointment_id"`
	PatientID     string   `json:"patient_id"`
	Date          string   `json:"date"`
	Specialty     string   `json:"specialty"`
	Probability   float64  `json:"probability"`
	Tier          RiskTier `json:"tier"`
}

// DayAssessment is the cohort of one calendar day
type DayAssessment struct {
	Date   string      `json:"date"`
	Cohort *RiskCohort `json:"cohort"`
}

// RangeAssessment is the result of scoring every appointment in a date range.
// When Incomplete is set, Days holds only the days finished before cancellation.
type RangeAssessment struct {
	Start        string                      `json:"start"`
	End          string                      `json:"end"`
	Days         []DayAssessment             `json:"days"`
	Aggregate    *RiskCohort                 `json:"aggregate"`
	Overbooking  []OverbookingRecommendation `json:"overbooking"`
	TopRisks     []RiskDetail                `json:"top_risks"`
	Incomplete   bool                        `json:"incomplete"`
	ModelVersion string                      `json:"model_version"`
}
