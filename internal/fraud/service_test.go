package fraud

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/verigrade/verigrade/pkg/common"
	"github.com/verigrade/verigrade/pkg/eventbus"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockRepository implements RepositoryInterface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetRecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]HistoricalTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]HistoricalTransaction), args.Error(1)
}

func (m *MockRepository) CountTransactionsBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) CreateAlert(ctx context.Context, alert *RiskAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockRepository) GetAlertByID(ctx context.Context, id uuid.UUID) (*RiskAlert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RiskAlert), args.Error(1)
}

func (m *MockRepository) GetAlertsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*RiskAlert, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*RiskAlert), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) UpdateAlertStatus(ctx context.Context, id uuid.UUID, from, to AlertStatus, at time.Time) error {
	args := m.Called(ctx, id, from, to, at)
	return args.Error(0)
}

func (m *MockRepository) GetStatistics(ctx context.Context, userID uuid.UUID) (*FraudStatistics, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FraudStatistics), args.Error(1)
}

// MockPublisher implements EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishFraudDetected(ctx context.Context, alert *RiskAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockPublisher) PublishStatusChanged(ctx context.Context, alert *RiskAlert, from AlertStatus) error {
	args := m.Called(ctx, alert, from)
	return args.Error(0)
}

// ============================================================================
// Helper Functions
// ============================================================================

type serviceFixture struct {
	svc       *Service
	repo      *MockRepository
	publisher *MockPublisher
	cache     *MemoryPatternCache
}

func newServiceFixture() *serviceFixture {
	repo := new(MockRepository)
	publisher := new(MockPublisher)
	cache := NewMemoryPatternCache(16, time.Hour)

	agg := NewPatternAggregator(repo, cache, nil, 100)
	agg.now = func() time.Time { return weekdayAfternoon }

	svc := NewService(repo, agg, publisher, ServiceConfig{Location: time.UTC})
	svc.now = func() time.Time { return weekdayAfternoon }

	return &serviceFixture{svc: svc, repo: repo, publisher: publisher, cache: cache}
}

func (f *serviceFixture) withHistory(userID uuid.UUID, rows []HistoricalTransaction) {
	f.repo.On("GetRecentTransactions", mock.Anything, userID, 100).Return(rows, nil).Once()
}

func (f *serviceFixture) withSameDayCount(userID uuid.UUID, count int) {
	f.repo.On("CountTransactionsBetween", mock.Anything, userID, mock.Anything, mock.Anything).Return(count, nil).Once()
}

func groceryHistory(amount string, n int) []HistoricalTransaction {
	rows := make([]HistoricalTransaction, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, historyRow(amount, "Whole Foods", "Groceries"))
	}
	return rows
}

func txn(amount, merchant, category string) *Transaction {
	return &Transaction{
		ID:       "txn-" + amount,
		Amount:   dec(amount),
		Merchant: merchant,
		Category: category,
		Date:     weekdayAfternoon,
	}
}

// ============================================================================
// Scoring
// ============================================================================

func TestService_LowRiskTransactionScoresZero(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.withHistory(userID, groceryHistory("50", 10))
	f.withSameDayCount(userID, 2)

	alert, err := f.svc.AnalyzeTransaction(context.Background(), userID, txn("57.25", "Whole Foods", "Groceries"))

	require.NoError(t, err)
	assert.Nil(t, alert)
	f.repo.AssertNotCalled(t, "CreateAlert", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishFraudDetected", mock.Anything, mock.Anything)
}

func TestService_Assess_AmountJustUnderAverageScoresZero(t *testing.T) {
	for _, amount := range []string{"49.50", "49.75", "49.99"} {
		t.Run(amount, func(t *testing.T) {
			f := newServiceFixture()
			userID := uuid.New()
			f.withHistory(userID, groceryHistory("50", 10))
			f.withSameDayCount(userID, 2)

			a, err := f.svc.Assess(context.Background(), userID, txn(amount, "Whole Foods", "Groceries"))

			require.NoError(t, err)
			assert.Equal(t, 0.0, a.Score)
			assert.Zero(t, a.FactorCount)
			assert.Equal(t, []string{}, a.Indicators)
			assert.False(t, a.AlertWorthy)
		})
	}
}

func TestService_Assess_LowRiskBreakdown(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.withHistory(userID, groceryHistory("50", 10))
	f.withSameDayCount(userID, 2)

	a, err := f.svc.Assess(context.Background(), userID, txn("57.25", "Whole Foods", "Groceries"))

	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Score)
	assert.Equal(t, SeverityLow, a.Severity)
	assert.Zero(t, a.FactorCount)
	assert.Empty(t, a.Factors)
	assert.Equal(t, []string{}, a.Indicators)
	assert.False(t, a.AlertWorthy)
	assert.Equal(t, PatternSourceHistory, a.PatternSource)
}

func TestService_SixHundredOnHundredAverageStaysBelowThreshold(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.withHistory(userID, groceryHistory("100", 10))
	f.withSameDayCount(userID, 1)

	a, err := f.svc.Assess(context.Background(), userID, txn("600", "Electronics Hub", "Electronics"))
	require.NoError(t, err)

	// amount 30+10, merchant 10, category 10, round dollar 15+5
	assert.Equal(t, 80, a.TotalPoints)
	assert.Equal(t, 6, a.FactorCount)
	assert.InDelta(t, 80.0/6.0, a.Score, 1e-9)
	assert.False(t, a.AlertWorthy)

	f.withSameDayCount(userID, 1)
	alert, err := f.svc.AnalyzeTransaction(context.Background(), userID, txn("600", "Electronics Hub", "Electronics"))
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestService_AlertRaisedPersistedAndPublished(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.withHistory(userID, groceryHistory("50", 10))
	f.withSameDayCount(userID, 2)
	f.repo.On("CreateAlert", mock.Anything, mock.AnythingOfType("*fraud.RiskAlert")).Return(nil).Once()
	f.publisher.On("PublishFraudDetected", mock.Anything, mock.AnythingOfType("*fraud.RiskAlert")).Return(nil).Once()

	alert, err := f.svc.AnalyzeTransaction(context.Background(), userID, txn("300.25", "Whole Foods", "Groceries"))

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 30.0, alert.RiskScore)
	assert.Equal(t, SeverityLow, alert.RiskLevel)
	assert.Equal(t, "Low Risk Alert", alert.FraudType)
	assert.Equal(t, "Low Risk Alert: Amount exceeds 5x the user's average", alert.Description)
	assert.Equal(t, []string{"Amount exceeds 5x the user's average"}, alert.Indicators)
	assert.InDelta(t, 0.3, alert.Confidence, 1e-9)
	assert.Equal(t, AlertStatusActive, alert.Status)
	assert.Equal(t, userID, alert.UserID)
	assert.Equal(t, "txn-300.25", alert.TransactionID)
	f.repo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestService_SideEffectFailuresDoNotFailAnalysis(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.withHistory(userID, groceryHistory("50", 10))
	f.withSameDayCount(userID, 2)
	f.repo.On("CreateAlert", mock.Anything, mock.Anything).Return(errors.New("insert failed")).Once()
	f.publisher.On("PublishFraudDetected", mock.Anything, mock.Anything).Return(errors.New("nats down")).Once()

	alert, err := f.svc.AnalyzeTransaction(context.Background(), userID, txn("300.25", "Whole Foods", "Groceries"))

	require.NoError(t, err)
	assert.NotNil(t, alert)
	f.repo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestService_DegradedPatternStillScores(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.repo.On("GetRecentTransactions", mock.Anything, userID, 100).Return(nil, errors.New("connection refused")).Once()
	f.withSameDayCount(userID, 2)

	a, err := f.svc.Assess(context.Background(), userID, txn("57.25", "Whole Foods", "Groceries"))

	require.NoError(t, err)
	assert.True(t, a.PatternDegraded)
	assert.Equal(t, PatternSourceEmpty, a.PatternSource)
	// zero average, unknown merchant and category
	assert.Equal(t, 50, a.TotalPoints)
	assert.Equal(t, 3, a.FactorCount)
}

func TestService_VelocityFailureContributesNothing(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.withHistory(userID, groceryHistory("50", 10))
	f.repo.On("CountTransactionsBetween", mock.Anything, userID, mock.Anything, mock.Anything).Return(0, errors.New("timeout")).Once()

	a, err := f.svc.Assess(context.Background(), userID, txn("57.25", "Whole Foods", "Groceries"))

	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Score)
}

func TestService_ValidationError(t *testing.T) {
	f := newServiceFixture()

	_, err := f.svc.AnalyzeTransaction(context.Background(), uuid.New(), txn("10.50", "  ", "Groceries"))

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	f.repo.AssertNotCalled(t, "GetRecentTransactions", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CancelledContextFails(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.repo.On("GetRecentTransactions", mock.Anything, userID, 100).Return(nil, context.Canceled).Maybe()
	f.repo.On("CountTransactionsBetween", mock.Anything, userID, mock.Anything, mock.Anything).Return(0, context.Canceled).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	alert, err := f.svc.AnalyzeTransaction(ctx, userID, txn("57.25", "Whole Foods", "Groceries"))

	assert.Nil(t, alert)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, "failed to analyze transaction for fraud", appErr.Message)
	f.repo.AssertNotCalled(t, "CreateAlert", mock.Anything, mock.Anything)
}

func TestService_DefaultsDateToNow(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.withHistory(userID, groceryHistory("50", 10))
	from, to := DayBounds(weekdayAfternoon, time.UTC)
	f.repo.On("CountTransactionsBetween", mock.Anything, userID, from, to).Return(0, nil).Once()

	in := txn("57.25", "Whole Foods", "Groceries")
	in.Date = time.Time{}

	_, err := f.svc.Assess(context.Background(), userID, in)
	require.NoError(t, err)
	assert.True(t, in.Date.IsZero(), "caller's transaction is not modified")
	f.repo.AssertExpectations(t)
}

// ============================================================================
// Alert review
// ============================================================================

func storedAlert(status AlertStatus) *RiskAlert {
	return &RiskAlert{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		RiskScore: 30,
		RiskLevel: SeverityLow,
		Status:    status,
	}
}

func TestService_UpdateAlertStatus(t *testing.T) {
	f := newServiceFixture()
	alert := storedAlert(AlertStatusActive)
	f.repo.On("GetAlertByID", mock.Anything, alert.ID).Return(alert, nil).Once()
	f.repo.On("UpdateAlertStatus", mock.Anything, alert.ID, AlertStatusActive, AlertStatusInvestigating, weekdayAfternoon).Return(nil).Once()
	f.publisher.On("PublishStatusChanged", mock.Anything, mock.Anything, AlertStatusActive).Return(nil).Once()

	updated, err := f.svc.UpdateAlertStatus(context.Background(), alert.ID, AlertStatusInvestigating)

	require.NoError(t, err)
	assert.Equal(t, AlertStatusInvestigating, updated.Status)
	assert.Equal(t, weekdayAfternoon, updated.UpdatedAt)
	f.repo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestService_UpdateAlertStatus_Errors(t *testing.T) {
	tests := []struct {
		name     string
		stored   *RiskAlert
		getErr   error
		to       AlertStatus
		updErr   error
		wantCode int
	}{
		{"unknown status", storedAlert(AlertStatusActive), nil, AlertStatus("closed"), nil, http.StatusBadRequest},
		{"not found", nil, ErrAlertNotFound, AlertStatusResolved, nil, http.StatusNotFound},
		{"terminal is immutable", storedAlert(AlertStatusResolved), nil, AlertStatusActive, nil, http.StatusConflict},
		{"no way back to active", storedAlert(AlertStatusInvestigating), nil, AlertStatusActive, nil, http.StatusConflict},
		{"concurrent change", storedAlert(AlertStatusActive), nil, AlertStatusResolved, ErrStatusChanged, http.StatusConflict},
		{"store failure", storedAlert(AlertStatusActive), nil, AlertStatusResolved, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			id := uuid.New()
			if tt.stored != nil {
				tt.stored.ID = id
				f.repo.On("GetAlertByID", mock.Anything, id).Return(tt.stored, nil).Maybe()
			} else {
				f.repo.On("GetAlertByID", mock.Anything, id).Return(nil, tt.getErr).Maybe()
			}
			f.repo.On("UpdateAlertStatus", mock.Anything, id, mock.Anything, mock.Anything, mock.Anything).Return(tt.updErr).Maybe()

			_, err := f.svc.UpdateAlertStatus(context.Background(), id, tt.to)

			appErr, ok := common.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, appErr.Code)
			f.publisher.AssertNotCalled(t, "PublishStatusChanged", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_GetAlert(t *testing.T) {
	f := newServiceFixture()
	alert := storedAlert(AlertStatusActive)
	f.repo.On("GetAlertByID", mock.Anything, alert.ID).Return(alert, nil).Once()

	got, err := f.svc.GetAlert(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert, got)
}

func TestService_GetUserAlerts(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	alerts := []*RiskAlert{storedAlert(AlertStatusActive)}
	f.repo.On("GetAlertsByUser", mock.Anything, userID, 20, 0).Return(alerts, int64(1), nil).Once()

	got, total, err := f.svc.GetUserAlerts(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, alerts, got)
	assert.Equal(t, int64(1), total)

	f.repo.On("GetAlertsByUser", mock.Anything, userID, 20, 20).Return(nil, int64(0), errors.New("db down")).Once()
	_, _, err = f.svc.GetUserAlerts(context.Background(), userID, 20, 20)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
}

func TestService_GetStatistics(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	stats := &FraudStatistics{UserID: userID, TotalAlerts: 3, ActiveAlerts: 1, ResolvedAlerts: 1, FalsePositives: 1, AverageRiskScore: 30}
	f.repo.On("GetStatistics", mock.Anything, userID).Return(stats, nil).Once()

	got, err := f.svc.GetStatistics(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, stats, got)
}

// ============================================================================
// Patterns
// ============================================================================

func TestService_GetPattern(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.withHistory(userID, groceryHistory("50", 4))

	lookup, err := f.svc.GetPattern(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, PatternSourceHistory, lookup.Source)
	assert.Equal(t, []string{"Whole Foods"}, lookup.Pattern.TypicalMerchants)
}

func TestService_GetPattern_Unavailable(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.repo.On("GetRecentTransactions", mock.Anything, userID, 100).Return(nil, errors.New("db down")).Once()

	_, err := f.svc.GetPattern(context.Background(), userID)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Code)
}

func TestService_HandleTransactionRecordedInvalidatesPattern(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	f.cache.Set(context.Background(), testPattern(userID))

	event, err := eventbus.NewEvent(eventbus.SubjectTransactionRecorded, "expenses", eventbus.TransactionRecordedData{
		TransactionID: "txn-9",
		UserID:        userID,
		Amount:        "12.00",
		Merchant:      "Shell",
		Category:      "Fuel",
		RecordedAt:    weekdayAfternoon,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleTransactionRecorded(context.Background(), event))

	_, ok := f.cache.Get(context.Background(), userID)
	assert.False(t, ok)
}

func TestService_HandleTransactionRecordedDropsMalformedEvents(t *testing.T) {
	f := newServiceFixture()
	event := &eventbus.Event{ID: "evt-1", Type: eventbus.SubjectTransactionRecorded, Data: []byte(`"not an object"`)}

	assert.NoError(t, f.svc.HandleTransactionRecorded(context.Background(), event))
}

func TestService_Rules(t *testing.T) {
	f := newServiceFixture()
	assert.Equal(t, DefaultRules(), f.svc.Rules())
}
