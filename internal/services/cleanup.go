package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"moneyboard/internal/core"
	"moneyboard/internal/log"
	"moneyboard/internal/storage"
)

// DedupeResult counts what DedupeRecurring found and changed.
type DedupeResult struct {
	Templates  int `json:"templates"`
	Unique     int `json:"unique"`
	Deleted    int `json:"deleted"`
	Backfilled int `json:"backfilled"`
	// Tasks is the number of bill tasks removed along with the duplicates.
	Tasks int `json:"tasks"`
}

func (r DedupeResult) Changed() bool {
	return r.Deleted > 0 || r.Backfilled > 0
}

// DedupeRecurring collapses recurring templates of owner that share a
// description and amount into the oldest one. Tasks linked to a removed
// template go with it, and the kept template gets its start month filled in
// from its date when missing. With dryRun set nothing is written.
func (s *TransactionService) DedupeRecurring(ctx context.Context, owner string, dryRun bool) (DedupeResult, error) {
	templates, err := s.store.ListRecurringTemplates(ctx, owner)
	if err != nil {
		return DedupeResult{}, fmt.Errorf("list recurring templates: %w", err)
	}

	groups := make(map[string][]core.Transaction)
	var keys []string
	for _, tx := range templates {
		key := tx.Description + "|" + tx.Amount.String()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], tx)
	}

	res := DedupeResult{Templates: len(templates), Unique: len(groups)}
	var units [][]storage.Op
	for _, key := range keys {
		group := groups[key]
		slices.SortStableFunc(group, func(a, b core.Transaction) int {
			return cmp.Or(a.Date.Compare(b.Date), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
		})

		keep := group[0]
		if keep.RecurringStartMonth.IsZero() {
			start := core.YearMonthOf(keep.Date.In(s.loc))
			units = append(units, []storage.Op{
				storage.UpdateTransaction(owner, keep.ID, storage.TransactionPatch{RecurringStartMonth: &start}),
			})
			res.Backfilled++
		}
		for _, dup := range group[1:] {
			linked, err := s.store.FindTasksByLink(ctx, owner, dup.ID)
			if err != nil {
				return DedupeResult{}, fmt.Errorf("find linked tasks: %w", err)
			}
			unit := []storage.Op{storage.DeleteTransaction(owner, dup.ID)}
			for _, t := range linked {
				unit = append(unit, storage.DeleteTask(owner, t.ID))
			}
			units = append(units, unit)
			res.Deleted++
			res.Tasks += len(linked)
		}
	}

	if dryRun || len(units) == 0 {
		return res, nil
	}
	batches := batchOps(units, maxBatchOps)
	for i, batch := range batches {
		if err := s.store.Apply(ctx, batch...); err != nil {
			if i > 0 {
				s.committed(ctx, owner, s.CurrentMonth(), core.TxRef{})
			}
			return DedupeResult{}, fmt.Errorf("dedupe recurring templates, batch %d of %d: %w", i+1, len(batches), err)
		}
	}
	s.committed(ctx, owner, s.CurrentMonth(), core.TxRef{})
	slog.InfoContext(ctx, "Recurring templates deduplicated",
		log.FieldComponent, log.ComponentTransactions,
		log.FieldOwner, owner,
		"deleted", res.Deleted,
		"backfilled", res.Backfilled,
		"tasks", res.Tasks,
		"batches", len(batches))
	return res, nil
}

// maxBatchOps is the most writes one Firestore transaction accepts.
const maxBatchOps = 500

// batchOps packs units into batches of at most limit ops. A unit stays in one
// batch unless it alone is larger than limit.
func batchOps(units [][]storage.Op, limit int) [][]storage.Op {
	var batches [][]storage.Op
	var cur []storage.Op
	for _, unit := range units {
		if len(cur) > 0 && len(cur)+len(unit) > limit {
			batches = append(batches, cur)
			cur = nil
		}
		cur = append(cur, unit...)
		for len(cur) > limit {
			batches = append(batches, cur[:limit:limit])
			cur = cur[limit:]
		}
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// PurgeRecurring deletes every recurring template of owner together with
// its bill tasks. Returns how many templates were removed.
func (s *TransactionService) PurgeRecurring(ctx context.Context, owner string) (int, error) {
	templates, err := s.store.ListRecurringTemplates(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("list recurring templates: %w", err)
	}
	for i, tx := range templates {
		if err := s.deleteSeries(ctx, owner, tx.ID); err != nil {
			return i, err
		}
	}
	return len(templates), nil
}
