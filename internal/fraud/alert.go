package fraud

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// allowedTransitions is the review lifecycle; resolved and false_positive are terminal
var allowedTransitions = map[AlertStatus][]AlertStatus{
	AlertStatusActive:        {AlertStatusInvestigating, AlertStatusResolved, AlertStatusFalsePositive},
	AlertStatusInvestigating: {AlertStatusResolved, AlertStatusFalsePositive},
}

// BuildAlert turns an alert-worthy assessment into a RiskAlert
func BuildAlert(assessment *Assessment, now time.Time) *RiskAlert {
	indicators := append([]string(nil), assessment.Indicators...)

	return &RiskAlert{
		ID:            uuid.New(),
		TransactionID: assessment.TransactionID,
		UserID:        assessment.UserID,
		RiskScore:     assessment.Score,
		RiskLevel:     assessment.Severity,
		FraudType:     assessment.FraudType,
		Description:   describe(assessment.FraudType, indicators),
		Indicators:    indicators,
		Confidence:    assessment.Score / 100,
		Status:        AlertStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func describe(fraudType string, indicators []string) string {
	return fraudType + ": " + strings.Join(indicators, ", ")
}

// CanTransition reports whether an alert may move from one status to another
func CanTransition(from, to AlertStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed
func IsTerminal(status AlertStatus) bool {
	return len(allowedTransitions[status]) == 0
}
