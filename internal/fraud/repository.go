package fraud

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verigrade/verigrade/pkg/tracing"
)

const tracerName = "verigrade/fraud"

// Repository handles fraud data operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new fraud repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetRecentTransactions returns the user's most recent transactions, newest first
func (r *Repository) GetRecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]HistoricalTransaction, error) {
	query := `
		SELECT amount, merchant, category, created_at
		FROM expenses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var txns []HistoricalTransaction
	err := tracing.TraceDBQuery(ctx, tracerName, "SELECT", query, func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t HistoricalTransaction
			if err := rows.Scan(&t.Amount, &t.Merchant, &t.Category, &t.CreatedAt); err != nil {
				return err
			}
			txns = append(txns, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("get recent transactions: %w", err)
	}

	return txns, nil
}

// CountTransactionsBetween counts the user's transactions created inside [from, to]
func (r *Repository) CountTransactionsBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM expenses
		WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3
	`

	var count int
	err := tracing.TraceDBQuery(ctx, tracerName, "SELECT", query, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, query, userID, from, to).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}

	return count, nil
}

// CreateAlert inserts a fraud alert
func (r *Repository) CreateAlert(ctx context.Context, alert *RiskAlert) error {
	indicatorsJSON, err := json.Marshal(alert.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}

	query := `
		INSERT INTO fraud_alerts (
			id, transaction_id, user_id, risk_score, risk_level, fraud_type,
			description, indicators, confidence, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	err = tracing.TraceDBQuery(ctx, tracerName, "INSERT", query, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query,
			alert.ID,
			alert.TransactionID,
			alert.UserID,
			alert.RiskScore,
			alert.RiskLevel,
			alert.FraudType,
			alert.Description,
			indicatorsJSON,
			alert.Confidence,
			alert.Status,
			alert.CreatedAt,
			alert.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("create fraud alert: %w", err)
	}

	return nil
}

const alertColumns = `
	id, transaction_id, user_id, risk_score, risk_level, fraud_type,
	description, indicators, confidence, status, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*RiskAlert, error) {
	var alert RiskAlert
	var indicatorsJSON []byte

	err := row.Scan(
		&alert.ID,
		&alert.TransactionID,
		&alert.UserID,
		&alert.RiskScore,
		&alert.RiskLevel,
		&alert.FraudType,
		&alert.Description,
		&indicatorsJSON,
		&alert.Confidence,
		&alert.Status,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Indicators = []string{}
	if len(indicatorsJSON) > 0 {
		if err := json.Unmarshal(indicatorsJSON, &alert.Indicators); err != nil {
			return nil, fmt.Errorf("unmarshal indicators: %w", err)
		}
	}

	return &alert, nil
}

// GetAlertByID retrieves a fraud alert by ID
func (r *Repository) GetAlertByID(ctx context.Context, id uuid.UUID) (*RiskAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM fraud_alerts WHERE id = $1`

	var alert *RiskAlert
	err := tracing.TraceDBQuery(ctx, tracerName, "SELECT", query, func(ctx context.Context) error {
		var err error
		alert, err = scanAlert(r.db.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("get fraud alert: %w", err)
	}

	return alert, nil
}

// GetAlertsByUser returns a page of the user's alerts, newest first, and the total count
func (r *Repository) GetAlertsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*RiskAlert, int64, error) {
	countQuery := `SELECT COUNT(*) FROM fraud_alerts WHERE user_id = $1`

	var total int64
	err := tracing.TraceDBQuery(ctx, tracerName, "SELECT", countQuery, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("count fraud alerts: %w", err)
	}

	query := `SELECT ` + alertColumns + `
		FROM fraud_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	alerts := make([]*RiskAlert, 0)
	err = tracing.TraceDBQuery(ctx, tracerName, "SELECT", query, func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			alert, err := scanAlert(rows)
			if err != nil {
				return err
			}
			alerts = append(alerts, alert)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list fraud alerts: %w", err)
	}

	return alerts, total, nil
}

// UpdateAlertStatus moves an alert from one status to another. It returns
// ErrStatusChanged when the stored status is no longer from.
func (r *Repository) UpdateAlertStatus(ctx context.Context, id uuid.UUID, from, to AlertStatus, at time.Time) error {
	query := `
		UPDATE fraud_alerts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	var affected int64
	err := tracing.TraceDBQuery(ctx, tracerName, "UPDATE", query, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, query, to, at, id, from)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update fraud alert status: %w", err)
	}

	if affected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// GetStatistics aggregates the user's alerts by status
func (r *Repository) GetStatistics(ctx context.Context, userID uuid.UUID) (*FraudStatistics, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'investigating'),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COUNT(*) FILTER (WHERE status = 'false_positive'),
			COALESCE(AVG(risk_score), 0)
		FROM fraud_alerts
		WHERE user_id = $1
	`

	stats := &FraudStatistics{UserID: userID}
	err := tracing.TraceDBQuery(ctx, tracerName, "SELECT", query, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, query, userID).Scan(
			&stats.TotalAlerts,
			&stats.ActiveAlerts,
			&stats.InvestigatingAlerts,
			&stats.ResolvedAlerts,
			&stats.FalsePositives,
			&stats.AverageRiskScore,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("get fraud statistics: %w", err)
	}

	return stats, nil
}
