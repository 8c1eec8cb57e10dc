package fraud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/verigrade/verigrade/pkg/common"
	apperrors "github.com/verigrade/verigrade/pkg/errors"
	"github.com/verigrade/verigrade/pkg/eventbus"
	"github.com/verigrade/verigrade/pkg/logger"
	"github.com/verigrade/verigrade/pkg/tracing"
	"github.com/verigrade/verigrade/pkg/validation"
	"go.uber.org/zap"
)

// DefaultAlertThreshold is the lowest score that raises an alert
const DefaultAlertThreshold = 30.0

// ServiceConfig holds scoring options
type ServiceConfig struct {
	AlertThreshold float64
	Location       *time.Location
}

// Service handles transaction risk scoring and alert review
type Service struct {
	repo      RepositoryInterface
	patterns  PatternProvider
	velocity  *VelocityChecker
	publisher EventPublisher
	cfg       ServiceConfig
	now       func() time.Time
}

// NewService creates a new fraud service. publisher may be nil.
func NewService(repo RepositoryInterface, patterns PatternProvider, publisher EventPublisher, cfg ServiceConfig) *Service {
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = DefaultAlertThreshold
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if publisher == nil {
		publisher = NewBusPublisher(nil)
	}

	return &Service{
		repo:      repo,
		patterns:  patterns,
		velocity:  NewVelocityChecker(repo, cfg.Location),
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// AnalyzeTransaction scores a transaction and returns an alert when the score
// reaches the alert threshold, or nil otherwise. The alert is stored and
// published; failures of either are logged and do not fail the call.
func (s *Service) AnalyzeTransaction(ctx context.Context, userID uuid.UUID, txn *Transaction) (*RiskAlert, error) {
	assessment, err := s.Assess(ctx, userID, txn)
	if err != nil {
		return nil, err
	}

	if !assessment.AlertWorthy {
		return nil, nil
	}

	alert := BuildAlert(assessment, s.now())

	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		sideEffectFailures.WithLabelValues("persist").Inc()
		logger.ErrorContext(ctx, "failed to store fraud alert",
			zap.String("alert_id", alert.ID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		apperrors.Report(ctx, err, map[string]string{
			"alert_id": alert.ID.String(),
			"user_id":  userID.String(),
		})
	}

	if err := s.publisher.PublishFraudDetected(ctx, alert); err != nil {
		sideEffectFailures.WithLabelValues("publish").Inc()
		logger.WarnContext(ctx, "failed to publish fraud alert",
			zap.String("alert_id", alert.ID.String()),
			zap.Error(err),
		)
	}

	logger.InfoContext(ctx, "fraud alert raised",
		zap.String("alert_id", alert.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("transaction_id", alert.TransactionID),
		zap.Float64("risk_score", alert.RiskScore),
		zap.String("severity", string(alert.RiskLevel)),
	)

	return alert, nil
}

// Assess scores a transaction and returns the full breakdown, including scores below the alert threshold
func (s *Service) Assess(ctx context.Context, userID uuid.UUID, txn *Transaction) (*Assessment, error) {
	if txn == nil {
		return nil, common.NewBadRequestError("transaction is required", nil)
	}

	scored := *txn
	if scored.Date.IsZero() {
		scored.Date = s.now()
	}
	if err := validation.ValidateStruct(&scored); err != nil {
		return nil, common.NewBadRequestError(err.Error(), err)
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "fraud.Assess")
	defer span.End()
	span.SetAttributes(
		tracing.UserIDKey.String(userID.String()),
		tracing.TransactionIDKey.String(scored.ID),
	)

	lookup, err := s.patterns.Lookup(ctx, userID)
	degraded := false
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.analysisFailed(ctx, userID, &scored, err)
		}
		degraded = true
		logger.WarnContext(ctx, "scoring against empty pattern",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
	pattern := lookup.Pattern
	if pattern == nil {
		pattern = EmptyPattern(userID, s.now())
	}

	results := evaluateStatic(&scored, pattern, s.cfg.Location)
	results = append(results, s.velocity.Evaluate(ctx, userID, scored.Date))

	if err := ctx.Err(); err != nil {
		return nil, s.analysisFailed(ctx, userID, &scored, err)
	}

	score, points, factors := Combine(results)
	assessment := &Assessment{
		TransactionID:   scored.ID,
		UserID:          userID,
		Score:           score,
		Severity:        ClassifySeverity(score),
		FraudType:       FraudTypeFor(score),
		TotalPoints:     points,
		FactorCount:     factors,
		Factors:         firedOnly(results),
		Indicators:      collectIndicators(results),
		AlertWorthy:     score >= s.cfg.AlertThreshold,
		PatternSource:   lookup.Source,
		PatternDegraded: degraded,
		AssessedAt:      s.now(),
	}
	if assessment.PatternSource == "" {
		assessment.PatternSource = PatternSourceEmpty
	}

	observeAssessment(assessment)
	span.SetAttributes(
		tracing.RiskScoreKey.Float64(score),
		tracing.SeverityKey.String(string(assessment.Severity)),
		tracing.PatternSourceKey.String(string(assessment.PatternSource)),
		tracing.PatternDegradedKey.Bool(degraded),
	)

	logger.DebugContext(ctx, "transaction assessed",
		zap.String("user_id", userID.String()),
		zap.String("transaction_id", scored.ID),
		zap.Float64("risk_score", score),
		zap.Int("factors", factors),
	)

	return assessment, nil
}

func (s *Service) analysisFailed(ctx context.Context, userID uuid.UUID, txn *Transaction, err error) error {
	tracing.RecordError(ctx, err, tracing.TransactionIDKey.String(txn.ID))

	logger.ErrorContext(ctx, "failed to analyze transaction",
		zap.String("user_id", userID.String()),
		zap.String("transaction_id", txn.ID),
		zap.Error(err),
	)
	apperrors.Report(ctx, err, map[string]string{
		"user_id":        userID.String(),
		"transaction_id": txn.ID,
	})

	return common.NewInternalError("failed to analyze transaction for fraud", err)
}

// GetUserAlerts returns a page of the user's alerts
func (s *Service) GetUserAlerts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*RiskAlert, int64, error) {
	alerts, total, err := s.repo.GetAlertsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, common.NewInternalError("failed to get fraud alerts", err)
	}
	return alerts, total, nil
}

// GetAlert retrieves a fraud alert
func (s *Service) GetAlert(ctx context.Context, id uuid.UUID) (*RiskAlert, error) {
	alert, err := s.repo.GetAlertByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			return nil, common.NewNotFoundError("fraud alert not found", err)
		}
		return nil, common.NewInternalError("failed to get fraud alert", err)
	}
	return alert, nil
}

// UpdateAlertStatus moves an alert through the review lifecycle
func (s *Service) UpdateAlertStatus(ctx context.Context, id uuid.UUID, status AlertStatus) (*RiskAlert, error) {
	if !validation.IsAlertStatus(string(status)) {
		return nil, common.NewBadRequestError(fmt.Sprintf("unknown alert status %q", status), nil)
	}

	alert, err := s.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	from := alert.Status
	if !CanTransition(from, status) {
		return nil, common.NewConflictError(
			fmt.Sprintf("cannot move alert from %s to %s", from, status),
			ErrInvalidStatusTransition,
		)
	}

	now := s.now()
	if err := s.repo.UpdateAlertStatus(ctx, id, from, status, now); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, common.NewConflictError("fraud alert was updated by someone else", err)
		}
		return nil, common.NewInternalError("failed to update fraud alert", err)
	}

	alert.Status = status
	alert.UpdatedAt = now

	if err := s.publisher.PublishStatusChanged(ctx, alert, from); err != nil {
		sideEffectFailures.WithLabelValues("publish").Inc()
		logger.WarnContext(ctx, "failed to publish alert status change",
			zap.String("alert_id", id.String()),
			zap.Error(err),
		)
	}

	logger.InfoContext(ctx, "fraud alert status changed",
		zap.String("alert_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)

	return alert, nil
}

// GetStatistics summarizes the user's alerts
func (s *Service) GetStatistics(ctx context.Context, userID uuid.UUID) (*FraudStatistics, error) {
	stats, err := s.repo.GetStatistics(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to get fraud statistics", err)
	}
	return stats, nil
}

// GetPattern returns the user's current transaction pattern
func (s *Service) GetPattern(ctx context.Context, userID uuid.UUID) (*PatternLookup, error) {
	lookup, err := s.patterns.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrPatternUnavailable) {
			return nil, common.NewAppError(http.StatusServiceUnavailable, "transaction history unavailable", err)
		}
		return nil, common.NewInternalError("failed to get transaction pattern", err)
	}
	return &lookup, nil
}

// InvalidatePattern drops the user's cached pattern so the next lookup rebuilds it
func (s *Service) InvalidatePattern(ctx context.Context, userID uuid.UUID) error {
	if err := s.patterns.Invalidate(ctx, userID); err != nil {
		return common.NewInternalError("failed to invalidate transaction pattern", err)
	}
	return nil
}

// Rules returns the heuristic catalog
func (s *Service) Rules() []FraudRule {
	return DefaultRules()
}

// HandleTransactionRecorded invalidates the pattern of a user who recorded a new transaction
func (s *Service) HandleTransactionRecorded(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.TransactionRecordedData
	if err := event.Decode(&data); err != nil {
		logger.WarnContext(ctx, "dropping malformed transaction event",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return nil
	}

	if err := s.patterns.Invalidate(ctx, data.UserID); err != nil {
		return fmt.Errorf("invalidate pattern for %s: %w", data.UserID, err)
	}

	logger.DebugContext(ctx, "transaction pattern invalidated",
		zap.String("user_id", data.UserID.String()),
		zap.String("transaction_id", data.TransactionID),
	)
	return nil
}
