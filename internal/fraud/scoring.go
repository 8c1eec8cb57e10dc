package fraud

import "math"

const maxRiskScore = 100.0

// Combine averages the points of every fired rule over the number of rules
// that fired. The result is clamped to [0, 100] and is 0 when nothing fired.
func Combine(results []FactorResult) (score float64, totalPoints, factorCount int) {
	for _, r := range results {
		totalPoints += r.Score()
		factorCount += r.Factors()
	}

	if factorCount == 0 {
		return 0, totalPoints, 0
	}

	score = float64(totalPoints) / float64(factorCount)
	return math.Max(0, math.Min(score, maxRiskScore)), totalPoints, factorCount
}

// ClassifySeverity buckets a score; lower bounds are inclusive
func ClassifySeverity(score float64) Severity {
	switch {
	case score >= 80:
		return SeverityCritical
	case score >= 60:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// FraudTypeFor returns the label shown to reviewers for a score
func FraudTypeFor(score float64) string {
	switch ClassifySeverity(score) {
	case SeverityCritical:
		return "High Risk Transaction"
	case SeverityHigh:
		return "Suspicious Activity"
	case SeverityMedium:
		return "Unusual Pattern"
	default:
		return "Low Risk Alert"
	}
}

// firedOnly drops evaluators that contributed nothing
func firedOnly(results []FactorResult) []FactorResult {
	out := make([]FactorResult, 0, len(results))
	for _, r := range results {
		if r.Fired() {
			out = append(out, r)
		}
	}
	return out
}

// collectIndicators flattens the indicators of fired evaluators in evaluation order
func collectIndicators(results []FactorResult) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Indicators()...)
	}
	if out == nil {
		out = []string{}
	}
	return out
}
