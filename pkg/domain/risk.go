package domain

// RiskLevel grades the outcome of a compliance check.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
	// RiskUnknown marks a check that could not be completed. It is never
	// silently dropped: it aggregates as at least medium severity.
	RiskUnknown RiskLevel = "unknown"
)

// riskSeverity orders levels for worst-of aggregation. Unknown sits between
// medium and high so an incomplete check can never lower a verdict.
var riskSeverity = map[RiskLevel]int{
	RiskLow:     1,
	RiskMedium:  2,
	RiskUnknown: 3,
	RiskHigh:    4,
}

// Severity returns the numeric ordering of the level; unrecognized levels
// rank as unknown.
func (r RiskLevel) Severity() int {
	if s, ok := riskSeverity[r]; ok {
		return s
	}
	return riskSeverity[RiskUnknown]
}

// MaxRisk returns the worst of two levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// AggregateRisk folds individual results into an overall verdict: the overall
// risk equals the maximum severity across checks and is never lower than any
// single result.
func AggregateRisk(levels []RiskLevel) RiskLevel {
	overall := RiskLow
	for _, l := range levels {
		overall = MaxRisk(overall, l)
	}
	return overall
}
