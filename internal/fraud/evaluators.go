package fraud

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Evaluator names
const (
	EvaluatorAmount        = "amount"
	EvaluatorMerchant      = "merchant"
	EvaluatorTime          = "time"
	EvaluatorLocation      = "location"
	EvaluatorCategory      = "category"
	EvaluatorPaymentMethod = "payment_method"
	EvaluatorRoundDollar   = "round_dollar"
	EvaluatorVelocity      = "velocity"
)

// Evaluators lists every evaluator in the order they are run.
var Evaluators = []string{
	EvaluatorAmount,
	EvaluatorMerchant,
	EvaluatorTime,
	EvaluatorLocation,
	EvaluatorCategory,
	EvaluatorPaymentMethod,
	EvaluatorRoundDollar,
	EvaluatorVelocity,
}

var (
	decimalOne     = decimal.NewFromInt(1)
	decimalTen     = decimal.NewFromInt(10)
	decimalHundred = decimal.NewFromInt(100)
	decimalThree   = decimal.NewFromInt(3)
	decimalFive    = decimal.NewFromInt(5)

	highRiskMerchantTerms = []string{"casino", "gambling", "adult", "crypto", "bitcoin"}
	genericMerchantTerms  = []string{"store", "merchant", "payment", "transaction"}
	highRiskCategories    = []string{"Gambling", "Adult", "Crypto", "Investment"}
	highRiskPaymentTerms  = []string{"cryptocurrency", "prepaid", "gift card"}
	internationalMarkers  = []string{"International", "Foreign"}
)

// Score is the sum of points of every hit
func (r FactorResult) Score() int {
	total := 0
	for _, h := range r.Hits {
		total += h.Points
	}
	return total
}

// Factors is the number of rules that fired
func (r FactorResult) Factors() int {
	return len(r.Hits)
}

// Fired reports whether any rule fired
func (r FactorResult) Fired() bool {
	return len(r.Hits) > 0
}

// Indicators returns the indicator of every hit
func (r FactorResult) Indicators() []string {
	out := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		out = append(out, h.Indicator)
	}
	return out
}

func (r *FactorResult) add(rule string, points int, indicator string) {
	r.Hits = append(r.Hits, FactorHit{Rule: rule, Points: points, Indicator: indicator})
}

// EvaluateAmount compares the amount with the user's average spend.
// Multiples of 100 also score here and again in EvaluateRoundDollar.
func EvaluateAmount(amount decimal.Decimal, pattern *TransactionPattern) FactorResult {
	res := FactorResult{Evaluator: EvaluatorAmount}
	avg := pattern.AverageAmount

	if amount.GreaterThan(avg.Mul(decimalFive)) {
		res.add("amount_5x_average", 30, "Amount exceeds 5x the user's average")
	} else if amount.GreaterThan(avg.Mul(decimalThree)) {
		res.add("amount_3x_average", 15, "Amount exceeds 3x the user's average")
	}

	if isMultipleOfHundred(amount) && amount.GreaterThan(decimalHundred) {
		res.add("amount_round_hundred", 10, "Round hundred amount")
	}

	if amount.LessThan(decimalOne) {
		res.add("amount_micro", 5, "Very small amount (potential testing)")
	}

	return res
}

// EvaluateMerchant checks the merchant against the user's usual merchants and risky name terms
func EvaluateMerchant(merchant string, pattern *TransactionPattern) FactorResult {
	res := FactorResult{Evaluator: EvaluatorMerchant}

	if !containsExact(pattern.TypicalMerchants, merchant) {
		res.add("merchant_unfamiliar", 10, "Merchant not in user's history")
	}

	lower := strings.ToLower(merchant)
	if containsAny(lower, highRiskMerchantTerms) {
		res.add("merchant_high_risk", 25, "High-risk merchant")
	}
	if containsAny(lower, genericMerchantTerms) {
		res.add("merchant_generic", 15, "Generic merchant name")
	}

	return res
}

// EvaluateTime flags late-night and weekend transactions in loc
func EvaluateTime(at time.Time, loc *time.Location) FactorResult {
	res := FactorResult{Evaluator: EvaluatorTime}
	if loc != nil {
		at = at.In(loc)
	}

	if hour := at.Hour(); hour < 6 || hour > 22 {
		res.add("time_off_hours", 10, "Transaction outside usual hours")
	}
	if day := at.Weekday(); day == time.Saturday || day == time.Sunday {
		res.add("time_weekend", 5, "Weekend transaction")
	}

	return res
}

// EvaluateLocation scores a non-empty location. The pattern's geography is
// never populated, so any location counts as unfamiliar.
func EvaluateLocation(location string, pattern *TransactionPattern) FactorResult {
	res := FactorResult{Evaluator: EvaluatorLocation}
	if location == "" {
		return res
	}

	if !containsExact(pattern.GeographicPatterns, location) {
		res.add("location_unfamiliar", 15, "Location not seen before")
	}
	if containsAny(location, internationalMarkers) {
		res.add("location_international", 20, "International transaction")
	}

	return res
}

// EvaluateCategory checks the category against the user's common categories and a high-risk set
func EvaluateCategory(category string, pattern *TransactionPattern) FactorResult {
	res := FactorResult{Evaluator: EvaluatorCategory}

	if !containsExact(pattern.CommonCategories, category) {
		res.add("category_unfamiliar", 10, "Unusual category for user")
	}
	if containsExact(highRiskCategories, category) {
		res.add("category_high_risk", 20, "High-risk category")
	}

	return res
}

// EvaluatePaymentMethod flags anonymous payment instruments
func EvaluatePaymentMethod(method string) FactorResult {
	res := FactorResult{Evaluator: EvaluatorPaymentMethod}
	if method == "" {
		return res
	}

	if containsAny(strings.ToLower(method), highRiskPaymentTerms) {
		res.add("payment_method_high_risk", 25, "High-risk payment method")
	}

	return res
}

// EvaluateRoundDollar flags round amounts
func EvaluateRoundDollar(amount decimal.Decimal) FactorResult {
	res := FactorResult{Evaluator: EvaluatorRoundDollar}

	if isMultipleOfHundred(amount) && amount.GreaterThanOrEqual(decimalHundred) {
		res.add("round_dollar_hundred", 15, "Round dollar amount")
	}
	if isWholeDollar(amount) && amount.GreaterThanOrEqual(decimalTen) {
		res.add("round_dollar_whole", 5, "Whole dollar amount")
	}

	return res
}

// EvaluateVelocity scores the number of transactions the user made that day
func EvaluateVelocity(sameDayCount int) FactorResult {
	res := FactorResult{Evaluator: EvaluatorVelocity}

	if sameDayCount > 20 {
		res.add("velocity_very_high", 30, "More than 20 transactions today")
	} else if sameDayCount > 10 {
		res.add("velocity_high", 15, "More than 10 transactions today")
	}

	return res
}

// evaluateStatic runs every evaluator that needs no I/O
func evaluateStatic(txn *Transaction, pattern *TransactionPattern, loc *time.Location) []FactorResult {
	return []FactorResult{
		EvaluateAmount(txn.Amount, pattern),
		EvaluateMerchant(txn.Merchant, pattern),
		EvaluateTime(txn.Date, loc),
		EvaluateLocation(txn.Location, pattern),
		EvaluateCategory(txn.Category, pattern),
		EvaluatePaymentMethod(txn.PaymentMethod),
		EvaluateRoundDollar(txn.Amount),
	}
}

func isMultipleOfHundred(amount decimal.Decimal) bool {
	return amount.Mod(decimalHundred).IsZero()
}

func isWholeDollar(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(0))
}

func containsExact(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
