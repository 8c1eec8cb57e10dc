package fraud

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Severity buckets a risk score
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertStatus represents where a fraud alert is in its review lifecycle
type AlertStatus string

const (
	AlertStatusActive        AlertStatus = "active"
	AlertStatusInvestigating AlertStatus = "investigating"
	AlertStatusResolved      AlertStatus = "resolved"
	AlertStatusFalsePositive AlertStatus = "false_positive"
)

// PatternSource tells where a transaction pattern came from
type PatternSource string

const (
	PatternSourceCache   PatternSource = "cache"
	PatternSourceHistory PatternSource = "history"
	PatternSourceEmpty   PatternSource = "empty"
)

// Transaction is an incoming transaction to be scored
type Transaction struct {
	ID            string          `json:"id" validate:"notblank,max=128"`
	Amount        decimal.Decimal `json:"amount" validate:"gte=0,lte=100000000"`
	Merchant      string          `json:"merchant" validate:"notblank,max=255"`
	Category      string          `json:"category" validate:"notblank,max=100"`
	Date          time.Time       `json:"date"`
	Location      string          `json:"location,omitempty" validate:"max=255"`
	PaymentMethod string          `json:"payment_method,omitempty" validate:"max=100"`
	Description   string          `json:"description,omitempty" validate:"max=1000"`
}

// HistoricalTransaction is a past transaction used to build a user's pattern
type HistoricalTransaction struct {
	Amount    decimal.Decimal `json:"amount"`
	Merchant  string          `json:"merchant"`
	Category  string          `json:"category"`
	CreatedAt time.Time       `json:"created_at"`
}

// TransactionPattern is a per-user baseline of spending behaviour
type TransactionPattern struct {
	UserID             uuid.UUID       `json:"user_id"`
	AverageAmount      decimal.Decimal `json:"average_amount"`
	TypicalMerchants   []string        `json:"typical_merchants"`
	UsualTimes         []string        `json:"usual_times"`
	CommonCategories   []string        `json:"common_categories"`
	SpendingVelocity   float64         `json:"spending_velocity"`
	GeographicPatterns []string        `json:"geographic_patterns"`
	SampleSize         int             `json:"sample_size"`
	BuiltAt            time.Time       `json:"built_at"`
}

// PatternLookup is a pattern together with where it came from
type PatternLookup struct {
	Pattern *TransactionPattern `json:"pattern"`
	Source  PatternSource       `json:"source"`
}

// FactorHit is a single rule that fired inside an evaluator
type FactorHit struct {
	Rule      string `json:"rule"`
	Points    int    `json:"points"`
	Indicator string `json:"indicator"`
}

// FactorResult is the outcome of one evaluator
type FactorResult struct {
	Evaluator string      `json:"evaluator"`
	Hits      []FactorHit `json:"hits"`
}

// Assessment is the full breakdown of a scored transaction
type Assessment struct {
	TransactionID   string         `json:"transaction_id"`
	UserID          uuid.UUID      `json:"user_id"`
	Score           float64        `json:"score"`
	Severity        Severity       `json:"severity"`
	FraudType       string         `json:"fraud_type"`
	TotalPoints     int            `json:"total_points"`
	FactorCount     int            `json:"factor_count"`
	Factors         []FactorResult `json:"factors"`
	Indicators      []string       `json:"indicators"`
	AlertWorthy     bool           `json:"alert_worthy"`
	PatternSource   PatternSource  `json:"pattern_source"`
	PatternDegraded bool           `json:"pattern_degraded"`
	AssessedAt      time.Time      `json:"assessed_at"`
}

// RiskAlert is a materialized fraud alert for a risky transaction
type RiskAlert struct {
	ID            uuid.UUID   `json:"id"`
	TransactionID string      `json:"transaction_id"`
	UserID        uuid.UUID   `json:"user_id"`
	RiskScore     float64     `json:"risk_score"`
	RiskLevel     Severity    `json:"risk_level"`
	FraudType     string      `json:"fraud_type"`
	Description   string      `json:"description"`
	Indicators    []string    `json:"indicators"`
	Confidence    float64     `json:"confidence"`
	Status        AlertStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// FraudStatistics summarizes a user's alerts
type FraudStatistics struct {
	UserID              uuid.UUID `json:"user_id"`
	TotalAlerts         int       `json:"total_alerts"`
	ActiveAlerts        int       `json:"active_alerts"`
	InvestigatingAlerts int       `json:"investigating_alerts"`
	ResolvedAlerts      int       `json:"resolved_alerts"`
	FalsePositives      int       `json:"false_positives"`
	AverageRiskScore    float64   `json:"average_risk_score"`
}

// RuleCondition is one declarative condition of a FraudRule
type RuleCondition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
	Period   string      `json:"period,omitempty"`
}

// FraudRule documents a heuristic and the evaluator implementing it
type FraudRule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Conditions  []RuleCondition `json:"conditions"`
	RiskScore   int             `json:"risk_score"`
	Evaluator   string          `json:"evaluator"`
	IsActive    bool            `json:"is_active"`
}

// UpdateAlertStatusRequest moves an alert through its lifecycle
type UpdateAlertStatusRequest struct {
	Status AlertStatus `json:"status" validate:"required,alert_status"`
}
