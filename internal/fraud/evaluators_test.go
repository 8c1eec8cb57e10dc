package fraud

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// Wednesday 2024-01-10, 14:00 UTC
var weekdayAfternoon = time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func patternWithAverage(avg string) *TransactionPattern {
	p := EmptyPattern(uuid.New(), weekdayAfternoon)
	p.AverageAmount = dec(avg)
	p.TypicalMerchants = []string{"Whole Foods", "Shell"}
	p.CommonCategories = []string{"Groceries", "Fuel"}
	return p
}

func rules(r FactorResult) []string {
	out := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		out = append(out, h.Rule)
	}
	return out
}

func TestEvaluateAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		avg    string
		score  int
		rules  []string
	}{
		{"six times average", "603", "100.5", 30, []string{"amount_5x_average"}},
		{"four times average", "402.10", "100.5", 15, []string{"amount_3x_average"}},
		{"exactly five times is only 3x", "502.5", "100.5", 15, []string{"amount_3x_average"}},
		{"round hundred above 100", "200", "100", 10, []string{"amount_round_hundred"}},
		{"exactly 100 is not above 100", "100", "100", 0, []string{}},
		{"micro amount", "0.50", "10", 5, []string{"amount_micro"}},
		{"six hundred on hundred average", "600", "100", 40, []string{"amount_5x_average", "amount_round_hundred"}},
		{"empty history flags any positive amount", "12.34", "0", 30, []string{"amount_5x_average"}},
		{"ordinary amount", "57.25", "50", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateAmount(dec(tt.amount), patternWithAverage(tt.avg))
			assert.Equal(t, EvaluatorAmount, res.Evaluator)
			assert.Equal(t, tt.score, res.Score())
			assert.Equal(t, tt.rules, rules(res))
		})
	}
}

func TestEvaluateMerchant(t *testing.T) {
	pattern := patternWithAverage("50")

	tests := []struct {
		name     string
		merchant string
		score    int
		factors  int
	}{
		{"known merchant", "Whole Foods", 0, 0},
		{"unknown merchant", "Corner Deli", 10, 1},
		{"high risk term", "Lucky Casino", 35, 2},
		{"high risk term is case insensitive", "BITCOIN ATM", 35, 2},
		{"generic term", "Online Store", 25, 2},
		{"high risk and generic", "Crypto Payment Hub", 50, 3},
		{"membership is exact", "whole foods", 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateMerchant(tt.merchant, pattern)
			assert.Equal(t, tt.score, res.Score())
			assert.Equal(t, tt.factors, res.Factors())
		})
	}
}

func TestEvaluateTime(t *testing.T) {
	tests := []struct {
		name  string
		at    time.Time
		score int
	}{
		{"weekday afternoon", weekdayAfternoon, 0},
		{"before six", time.Date(2024, 1, 10, 5, 59, 0, 0, time.UTC), 10},
		{"six is usual", time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC), 0},
		{"twenty two is usual", time.Date(2024, 1, 10, 22, 59, 0, 0, time.UTC), 0},
		{"twenty three", time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC), 10},
		{"saturday", time.Date(2024, 1, 13, 12, 0, 0, 0, time.UTC), 5},
		{"sunday night", time.Date(2024, 1, 14, 23, 30, 0, 0, time.UTC), 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.score, EvaluateTime(tt.at, time.UTC).Score())
		})
	}
}

func TestEvaluateTime_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	// 14:00 UTC Wednesday is 23:00 Wednesday in Tokyo
	res := EvaluateTime(weekdayAfternoon, tokyo)
	assert.Equal(t, []string{"time_off_hours"}, rules(res))
}

func TestEvaluateLocation(t *testing.T) {
	pattern := patternWithAverage("50")

	assert.False(t, EvaluateLocation("", pattern).Fired())
	assert.Equal(t, 15, EvaluateLocation("Austin, TX", pattern).Score())
	assert.Equal(t, 35, EvaluateLocation("International Airport", pattern).Score())
	assert.Equal(t, 35, EvaluateLocation("Foreign Exchange Desk", pattern).Score())
	// markers are case sensitive
	assert.Equal(t, 15, EvaluateLocation("international airport", pattern).Score())
}

func TestEvaluateCategory(t *testing.T) {
	pattern := patternWithAverage("50")

	assert.Equal(t, 0, EvaluateCategory("Groceries", pattern).Score())
	assert.Equal(t, 10, EvaluateCategory("Travel", pattern).Score())
	assert.Equal(t, 30, EvaluateCategory("Gambling", pattern).Score())
	assert.Equal(t, 30, EvaluateCategory("Investment", pattern).Score())
	assert.Equal(t, 10, EvaluateCategory("gambling", pattern).Score())
}

func TestEvaluatePaymentMethod(t *testing.T) {
	assert.False(t, EvaluatePaymentMethod("").Fired())
	assert.False(t, EvaluatePaymentMethod("Visa").Fired())
	assert.Equal(t, 25, EvaluatePaymentMethod("Cryptocurrency").Score())
	assert.Equal(t, 25, EvaluatePaymentMethod("Prepaid Card").Score())
	assert.Equal(t, 25, EvaluatePaymentMethod("Amazon Gift Card").Score())
}

func TestEvaluateRoundDollar(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		rules  []string
	}{
		{"five hundred", "500", []string{"round_dollar_hundred", "round_dollar_whole"}},
		{"one hundred", "100", []string{"round_dollar_hundred", "round_dollar_whole"}},
		{"whole dollars", "42", []string{"round_dollar_whole"}},
		{"below ten", "9", []string{}},
		{"cents", "500.01", []string{}},
		{"zero", "0", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rules, rules(EvaluateRoundDollar(dec(tt.amount))))
		})
	}
}

func TestEvaluateRoundDollar_HundredRuleScoresFifteen(t *testing.T) {
	res := EvaluateRoundDollar(dec("500"))
	assert.Equal(t, FactorHit{Rule: "round_dollar_hundred", Points: 15, Indicator: "Round dollar amount"}, res.Hits[0])
}

func TestEvaluateVelocity(t *testing.T) {
	assert.Equal(t, 0, EvaluateVelocity(0).Score())
	assert.Equal(t, 0, EvaluateVelocity(10).Score())
	assert.Equal(t, 15, EvaluateVelocity(11).Score())
	assert.Equal(t, 15, EvaluateVelocity(20).Score())
	assert.Equal(t, 30, EvaluateVelocity(21).Score())
	assert.Equal(t, 1, EvaluateVelocity(50).Factors())
}

func TestFactorResult_IndicatorsFollowHits(t *testing.T) {
	res := EvaluateMerchant("Lucky Casino", patternWithAverage("50"))
	assert.Equal(t, []string{"Merchant not in user's history", "High-risk merchant"}, res.Indicators())
}
