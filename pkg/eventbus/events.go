package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// FraudDetectedData is emitted when a transaction produces a risk alert.
type FraudDetectedData struct {
	AlertID       uuid.UUID `json:"alert_id"`
	UserID        uuid.UUID `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	RiskScore     float64   `json:"risk_score"`
	Severity      string    `json:"severity"`
	FraudType     string    `json:"fraud_type"`
	Indicators    []string  `json:"indicators"`
	DetectedAt    time.Time `json:"detected_at"`
}

// FraudAlertStatusChangedData is emitted when an analyst moves an alert through its lifecycle.
type FraudAlertStatusChangedData struct {
	AlertID   uuid.UUID `json:"alert_id"`
	UserID    uuid.UUID `json:"user_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// TransactionRecordedData is published by the expense service whenever a user records a transaction.
type TransactionRecordedData struct {
	TransactionID string    `json:"transaction_id"`
	UserID        uuid.UUID `json:"user_id"`
	Amount        string    `json:"amount"`
	Merchant      string    `json:"merchant"`
	Category      string    `json:"category"`
	RecordedAt    time.Time `json:"recorded_at"`
}
