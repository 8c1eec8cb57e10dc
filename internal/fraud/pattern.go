package fraud

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/verigrade/verigrade/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const (
	defaultHistoryLimit = 100
	topMerchantCount    = 10
	topCategoryCount    = 5
	velocityWindowDays  = 30

	// rebuildTimeout bounds a history rebuild, which outlives the request that started it.
	rebuildTimeout = 5 * time.Second

	generationStripes = 256
)

// PatternAggregator serves transaction patterns from the cache or rebuilds them from history
type PatternAggregator struct {
	history HistoryReader
	cache   PatternCache
	breaker *resilience.CircuitBreaker
	limit   int
	group   singleflight.Group
	now     func() time.Time

	// generations are bumped by Invalidate, striped by the last byte of the
	// user id. A rebuild that sees its stripe move does not cache its result.
	generations [generationStripes]generation
}

type generation struct {
	mu sync.Mutex
	n  uint64
}

func (g *generation) current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func (g *generation) bump() {
	g.mu.Lock()
	g.n++
	g.mu.Unlock()
}

// storeIfCurrent runs store only when no invalidation happened since seen.
// The check and the store are atomic with respect to bump.
func (g *generation) storeIfCurrent(seen uint64, store func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n != seen {
		return false
	}
	store()
	return true
}

// NewPatternAggregator creates an aggregator. breaker may be nil.
func NewPatternAggregator(history HistoryReader, cache PatternCache, breaker *resilience.CircuitBreaker, historyLimit int) *PatternAggregator {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &PatternAggregator{
		history: history,
		cache:   cache,
		breaker: breaker,
		limit:   historyLimit,
		now:     time.Now,
	}
}

// Lookup returns the user's pattern. A cached pattern is returned as is;
// otherwise it is rebuilt from recent history and cached. Users without
// history get a zeroed pattern that is not cached. When history cannot be
// read the zeroed pattern comes back with an error wrapping ErrPatternUnavailable.
func (a *PatternAggregator) Lookup(ctx context.Context, userID uuid.UUID) (PatternLookup, error) {
	if pattern, ok := a.cache.Get(ctx, userID); ok {
		patternLookups.WithLabelValues(string(PatternSourceCache)).Inc()
		return PatternLookup{Pattern: pattern, Source: PatternSourceCache}, nil
	}

	if err := ctx.Err(); err != nil {
		return a.unavailable(userID, err)
	}

	// The rebuild is shared by every caller waiting on this user, so it runs
	// detached from any one caller's cancellation. Each caller still stops
	// waiting when its own context is done.
	rebuildCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(userID.String(), func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(rebuildCtx, rebuildTimeout)
		defer cancel()
		return a.rebuild(rctx, userID)
	})

	select {
	case <-ctx.Done():
		return a.unavailable(userID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return a.unavailable(userID, res.Err)
		}
		lookup := res.Val.(PatternLookup)
		patternLookups.WithLabelValues(string(lookup.Source)).Inc()
		return lookup, nil
	}
}

func (a *PatternAggregator) unavailable(userID uuid.UUID, err error) (PatternLookup, error) {
	patternLookups.WithLabelValues("error").Inc()
	return PatternLookup{Pattern: EmptyPattern(userID, a.now()), Source: PatternSourceEmpty},
		fmt.Errorf("%w: %w", ErrPatternUnavailable, err)
}

// Invalidate drops the user's cached pattern. A rebuild already in flight
// for the user still answers its waiters but does not repopulate the cache,
// and later lookups start a fresh rebuild.
func (a *PatternAggregator) Invalidate(ctx context.Context, userID uuid.UUID) error {
	a.generation(userID).bump()
	a.group.Forget(userID.String())
	return a.cache.Invalidate(ctx, userID)
}

func (a *PatternAggregator) generation(userID uuid.UUID) *generation {
	return &a.generations[int(userID[len(userID)-1])%generationStripes]
}

func (a *PatternAggregator) rebuild(ctx context.Context, userID uuid.UUID) (PatternLookup, error) {
	gen := a.generation(userID).current()

	rows, err := a.readHistory(ctx, userID)
	if err != nil {
		return PatternLookup{}, err
	}

	if len(rows) == 0 {
		return PatternLookup{Pattern: EmptyPattern(userID, a.now()), Source: PatternSourceEmpty}, nil
	}

	pattern := BuildPattern(userID, rows, a.now())
	a.generation(userID).storeIfCurrent(gen, func() { a.cache.Set(ctx, pattern) })
	return PatternLookup{Pattern: pattern, Source: PatternSourceHistory}, nil
}

func (a *PatternAggregator) readHistory(ctx context.Context, userID uuid.UUID) ([]HistoricalTransaction, error) {
	result, err := a.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return a.history.GetRecentTransactions(ctx, userID, a.limit)
	})
	if err != nil {
		return nil, fmt.Errorf("read transaction history: %w", err)
	}
	rows, _ := result.([]HistoricalTransaction)
	return rows, nil
}

// EmptyPattern is the baseline for a user with no usable history
func EmptyPattern(userID uuid.UUID, now time.Time) *TransactionPattern {
	return &TransactionPattern{
		UserID:             userID,
		AverageAmount:      decimal.Zero,
		TypicalMerchants:   []string{},
		UsualTimes:         []string{},
		CommonCategories:   []string{},
		GeographicPatterns: []string{},
		BuiltAt:            now,
	}
}

// BuildPattern aggregates newest-first history rows into a pattern
func BuildPattern(userID uuid.UUID, rows []HistoricalTransaction, now time.Time) *TransactionPattern {
	pattern := EmptyPattern(userID, now)
	if len(rows) == 0 {
		return pattern
	}

	sum := decimal.Zero
	merchants := make([]string, 0, len(rows))
	categories := make([]string, 0, len(rows))
	for _, row := range rows {
		sum = sum.Add(row.Amount)
		merchants = append(merchants, row.Merchant)
		categories = append(categories, row.Category)
	}

	pattern.AverageAmount = sum.Div(decimal.NewFromInt(int64(len(rows))))
	pattern.TypicalMerchants = topByFrequency(merchants, topMerchantCount)
	pattern.CommonCategories = topByFrequency(categories, topCategoryCount)
	pattern.SpendingVelocity = float64(len(rows)) / velocityWindowDays
	pattern.SampleSize = len(rows)
	return pattern
}

// topByFrequency returns the n most frequent values; ties keep first-seen order
func topByFrequency(values []string, n int) []string {
	counts := make(map[string]int, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}
