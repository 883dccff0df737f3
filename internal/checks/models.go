package checks

import (
	"time"

	id "datex/pkg/domain"
)

// CheckType names one compliance screening the orchestrator can run.
type CheckType string

const (
	CheckSanctions        CheckType = "sanctions"
	CheckPEP              CheckType = "pep"
	CheckAdverseMedia     CheckType = "adverse_media"
	CheckAgeVerification  CheckType = "age_verification"
	CheckMIFIDSuitability CheckType = "mifid_suitability"
)

// IsValid reports whether the check type is known.
func (t CheckType) IsValid() bool {
	switch t {
	case CheckSanctions, CheckPEP, CheckAdverseMedia, CheckAgeVerification, CheckMIFIDSuitability:
		return true
	}
	return false
}

// requiredCategory maps each check to the data category whose consent it
// needs. A check never runs without a usable grant covering its category.
var requiredCategory = map[CheckType]id.DataCategory{
	CheckSanctions:        id.CategoryComplianceData,
	CheckPEP:              id.CategoryComplianceData,
	CheckAdverseMedia:     id.CategoryComplianceData,
	CheckAgeVerification:  id.CategoryBasicData,
	CheckMIFIDSuitability: id.CategoryKYCData,
}

// CheckRequest is one requested screening. MinimumAge applies only to
// age_verification.
type CheckRequest struct {
	Type       CheckType
	MinimumAge int
}

// CheckResult is the outcome of a single screening. Details carries
// check-specific fields; the age check exposes only the boolean verdict and
// a proof reference, never a birth date or an exact age.
type CheckResult struct {
	Type      CheckType      `json:"type"`
	Completed bool           `json:"completed"`
	Risk      id.RiskLevel   `json:"risk"`
	Findings  []string       `json:"findings,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Report is the aggregated outcome of one orchestration run.
type Report struct {
	Subject         id.Fingerprint
	OverallRisk     id.RiskLevel
	Results         []CheckResult
	Recommendations []string
	Duration        time.Duration
}
