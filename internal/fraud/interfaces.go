package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HistoryReader reads a user's recent transactions, newest first
type HistoryReader interface {
	GetRecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]HistoricalTransaction, error)
}

// VelocityCounter counts a user's transactions inside [from, to]
type VelocityCounter interface {
	CountTransactionsBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error)
}

// RepositoryInterface defines the persistence operations used by the fraud service
type RepositoryInterface interface {
	HistoryReader
	VelocityCounter

	CreateAlert(ctx context.Context, alert *RiskAlert) error
	GetAlertByID(ctx context.Context, id uuid.UUID) (*RiskAlert, error)
	GetAlertsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*RiskAlert, int64, error)
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, from, to AlertStatus, at time.Time) error
	GetStatistics(ctx context.Context, userID uuid.UUID) (*FraudStatistics, error)
}

// EventPublisher announces alert events to other services
type EventPublisher interface {
	PublishFraudDetected(ctx context.Context, alert *RiskAlert) error
	PublishStatusChanged(ctx context.Context, alert *RiskAlert, from AlertStatus) error
}

// PatternProvider resolves and invalidates transaction patterns
type PatternProvider interface {
	Lookup(ctx context.Context, userID uuid.UUID) (PatternLookup, error)
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// ServiceInterface is the set of operations exposed over HTTP
type ServiceInterface interface {
	AnalyzeTransaction(ctx context.Context, userID uuid.UUID, txn *Transaction) (*RiskAlert, error)
	Assess(ctx context.Context, userID uuid.UUID, txn *Transaction) (*Assessment, error)
	GetUserAlerts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*RiskAlert, int64, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*RiskAlert, error)
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, status AlertStatus) (*RiskAlert, error)
	GetStatistics(ctx context.Context, userID uuid.UUID) (*FraudStatistics, error)
	GetPattern(ctx context.Context, userID uuid.UUID) (*PatternLookup, error)
	InvalidatePattern(ctx context.Context, userID uuid.UUID) error
	Rules() []FraudRule
}
