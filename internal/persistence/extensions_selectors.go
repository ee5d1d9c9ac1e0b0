package persistence

import (
	"context"
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/item"
)

// The functions below bind every metric to the since, until and between
// selectors. An empty serviceID selects the default persistence service.

func (e *Extensions) MaximumSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Maximum(ctx, it, Since(t), serviceID)
}

func (e *Extensions) MaximumUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Maximum(ctx, it, Until(t), serviceID)
}

func (e *Extensions) MaximumBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Maximum(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) MinimumSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Minimum(ctx, it, Since(t), serviceID)
}

func (e *Extensions) MinimumUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Minimum(ctx, it, Until(t), serviceID)
}

func (e *Extensions) MinimumBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Minimum(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) CountSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Count(ctx, it, Since(t), serviceID)
}

func (e *Extensions) CountUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Count(ctx, it, Until(t), serviceID)
}

func (e *Extensions) CountBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Count(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) CountStateChangesSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.CountStateChanges(ctx, it, Since(t), serviceID)
}

func (e *Extensions) CountStateChangesUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.CountStateChanges(ctx, it, Until(t), serviceID)
}

func (e *Extensions) CountStateChangesBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.CountStateChanges(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) SumSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Sum(ctx, it, Since(t), serviceID)
}

func (e *Extensions) SumUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Sum(ctx, it, Until(t), serviceID)
}

func (e *Extensions) SumBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Sum(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) AverageSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Average(ctx, it, Since(t), serviceID)
}

func (e *Extensions) AverageUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Average(ctx, it, Until(t), serviceID)
}

func (e *Extensions) AverageBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Average(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) VarianceSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Variance(ctx, it, Since(t), serviceID)
}

func (e *Extensions) VarianceUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Variance(ctx, it, Until(t), serviceID)
}

func (e *Extensions) VarianceBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Variance(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) DeviationSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Deviation(ctx, it, Since(t), serviceID)
}

func (e *Extensions) DeviationUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Deviation(ctx, it, Until(t), serviceID)
}

func (e *Extensions) DeviationBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Deviation(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) MedianSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Median(ctx, it, Since(t), serviceID)
}

func (e *Extensions) MedianUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Median(ctx, it, Until(t), serviceID)
}

func (e *Extensions) MedianBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Median(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) DeltaSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Delta(ctx, it, Since(t), serviceID)
}

func (e *Extensions) DeltaUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Delta(ctx, it, Until(t), serviceID)
}

func (e *Extensions) DeltaBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Delta(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) EvolutionRateSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.EvolutionRate(ctx, it, Since(t), serviceID)
}

func (e *Extensions) EvolutionRateUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.EvolutionRate(ctx, it, Until(t), serviceID)
}

func (e *Extensions) EvolutionRateBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.EvolutionRate(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) ChangedSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Changed(ctx, it, Since(t), serviceID)
}

func (e *Extensions) ChangedUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Changed(ctx, it, Until(t), serviceID)
}

func (e *Extensions) ChangedBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Changed(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) UpdatedSince(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Updated(ctx, it, Since(t), serviceID)
}

func (e *Extensions) UpdatedUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.Updated(ctx, it, Until(t), serviceID)
}

func (e *Extensions) UpdatedBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) (Result, error) {
	return e.Updated(ctx, it, Between(t0, t1), serviceID)
}

func (e *Extensions) RiemannSumSince(ctx context.Context, it item.Item, t time.Time, rule RiemannType, serviceID string) (Result, error) {
	return e.RiemannSum(ctx, it, Since(t), rule, serviceID)
}

func (e *Extensions) RiemannSumUntil(ctx context.Context, it item.Item, t time.Time, rule RiemannType, serviceID string) (Result, error) {
	return e.RiemannSum(ctx, it, Until(t), rule, serviceID)
}

func (e *Extensions) RiemannSumBetween(ctx context.Context, it item.Item, t0, t1 time.Time, rule RiemannType, serviceID string) (Result, error) {
	return e.RiemannSum(ctx, it, Between(t0, t1), rule, serviceID)
}

func (e *Extensions) RemoveAllStatesSince(ctx context.Context, it item.Item, t time.Time, serviceID string) error {
	return e.RemoveAllStates(ctx, it, Since(t), serviceID)
}

func (e *Extensions) RemoveAllStatesUntil(ctx context.Context, it item.Item, t time.Time, serviceID string) error {
	return e.RemoveAllStates(ctx, it, Until(t), serviceID)
}

func (e *Extensions) RemoveAllStatesBetween(ctx context.Context, it item.Item, t0, t1 time.Time, serviceID string) error {
	return e.RemoveAllStates(ctx, it, Between(t0, t1), serviceID)
}
