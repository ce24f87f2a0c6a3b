package tracker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

// CheckItem runs the pipeline for one item outside the regular cycle.
func (t *Tracker) CheckItem(ctx context.Context, id string) (ItemResult, error) {
	it, err := t.items.GetByID(ctx, id)
	if err != nil {
		return ItemResult{ItemID: id}, fmt.Errorf("get item: %w", err)
	}
	if !it.Eligible() {
		return ItemResult{ItemID: id}, ErrItemNotEligible
	}
	res := t.process(ctx, it)
	t.log.Info("out-of-cycle check", zap.String("item_id", id), zap.String("outcome", string(res.Outcome)))
	return res, nil
}

// CheckUser checks every eligible item of one user, with the cycle's batching rules.
func (t *Tracker) CheckUser(ctx context.Context, userID string) (CycleReport, error) {
	start := t.now()
	list, err := t.items.ListByUser(ctx, userID)
	if err != nil {
		return CycleReport{}, fmt.Errorf("list items: %w", err)
	}
	rep := CycleReport{StartedAt: start}
	eligible := make([]*item.TrackedItem, 0, len(list))
	for _, it := range list {
		if it.Eligible() {
			eligible = append(eligible, it)
		}
	}
	rep.Total = len(eligible)
	t.runBatches(ctx, eligible, &rep)
	rep.Duration = t.now().Sub(start)
	t.log.Info("user check finished", zap.String("user_id", userID),
		zap.Int("total", rep.Total), zap.Int("updated", rep.Updated), zap.Int("errored", rep.Errored))
	return rep, nil
}
