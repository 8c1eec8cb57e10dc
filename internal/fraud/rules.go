package fraud

// DefaultRules is the catalog of heuristics served to reviewers. Scoring is
// done by the evaluators each rule names; the catalog only documents them.
func DefaultRules() []FraudRule {
	return []FraudRule{
		{
			ID:          "high_amount",
			Name:        "High Amount Transaction",
			Description: "Transaction amount significantly higher than usual",
			Conditions: []RuleCondition{
				{Field: "amount", Operator: "greater_than", Value: 5000},
			},
			RiskScore: 30,
			Evaluator: EvaluatorAmount,
			IsActive:  true,
		},
		{
			ID:          "round_dollar",
			Name:        "Round Dollar Amount",
			Description: "Transaction with round dollar amount (potential testing)",
			Conditions: []RuleCondition{
				{Field: "amount", Operator: "modulo", Value: 100},
			},
			RiskScore: 15,
			Evaluator: EvaluatorRoundDollar,
			IsActive:  true,
		},
		{
			ID:          "unusual_merchant",
			Name:        "Unusual Merchant",
			Description: "Transaction with merchant not in user's history",
			Conditions: []RuleCondition{
				{Field: "merchant", Operator: "not_in", Value: "user_history"},
			},
			RiskScore: 20,
			Evaluator: EvaluatorMerchant,
			IsActive:  true,
		},
		{
			ID:          "velocity_high",
			Name:        "High Transaction Velocity",
			Description: "Multiple transactions in short time period",
			Conditions: []RuleCondition{
				{Field: "count", Operator: "greater_than", Value: 10, Period: "1_hour"},
			},
			RiskScore: 25,
			Evaluator: EvaluatorVelocity,
			IsActive:  true,
		},
	}
}
