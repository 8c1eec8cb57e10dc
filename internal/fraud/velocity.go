package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/verigrade/verigrade/pkg/logger"
	"go.uber.org/zap"
)

// VelocityChecker scores how many transactions a user made on the same calendar day
type VelocityChecker struct {
	counter VelocityCounter
	loc     *time.Location
}

// NewVelocityChecker creates a checker that uses loc to decide calendar days
func NewVelocityChecker(counter VelocityCounter, loc *time.Location) *VelocityChecker {
	if loc == nil {
		loc = time.UTC
	}
	return &VelocityChecker{counter: counter, loc: loc}
}

// Evaluate counts the user's transactions on the day of at. A failed count contributes nothing.
func (v *VelocityChecker) Evaluate(ctx context.Context, userID uuid.UUID, at time.Time) FactorResult {
	from, to := DayBounds(at, v.loc)

	count, err := v.counter.CountTransactionsBetween(ctx, userID, from, to)
	if err != nil {
		logger.WarnContext(ctx, "velocity count failed, skipping velocity risk",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return FactorResult{Evaluator: EvaluatorVelocity}
	}

	return EvaluateVelocity(count)
}

// DayBounds returns the first and last millisecond of the calendar day containing at
func DayBounds(at time.Time, loc *time.Location) (time.Time, time.Time) {
	local := at.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}
