package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"moneyboard/internal/amqp"
	"moneyboard/internal/auth"
	"moneyboard/internal/cache"
	"moneyboard/internal/core"
	"moneyboard/internal/log"
	"moneyboard/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// TransactionServiceConfig holds the month view cache settings and the
// location month boundaries are computed in.
type TransactionServiceConfig struct {
	Location  *time.Location
	CacheSize int
	CacheTTL  time.Duration
}

func DefaultTransactionServiceConfig() TransactionServiceConfig {
	return TransactionServiceConfig{
		Location:  time.UTC,
		CacheSize: 256,
		CacheTTL:  5 * time.Minute,
	}
}

// TransactionInput is a new transaction as submitted by a caller.
type TransactionInput struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Category    string
	IsRecurring bool
}

// TransactionUpdate is a partial edit. Nil fields are left alone.
type TransactionUpdate struct {
	Date        *time.Time
	Description *string
	Amount      *decimal.Decimal
	Category    *string
	IsRecurring *bool
}

func (u TransactionUpdate) empty() bool {
	return u.Date == nil && u.Description == nil && u.Amount == nil && u.Category == nil && u.IsRecurring == nil
}

// TransactionService owns every transaction write and serves month views
// through a cache keyed by owner and month.
type TransactionService struct {
	store     storage.Store
	publisher ChangePublisher
	loc       *time.Location

	views cache.Cache[core.MonthView]
	loads singleflight.Group

	// generation is bumped per owner on every write so a load that raced
	// with the write does not repopulate the cache with stale data.
	genMu      sync.Mutex
	generation map[string]uint64

	now   func() time.Time
	newID func() string
}

func NewTransactionService(store storage.Store, publisher ChangePublisher, cfg TransactionServiceConfig) *TransactionService {
	def := DefaultTransactionServiceConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	return &TransactionService{
		store:      store,
		publisher:  publisher,
		loc:        cfg.Location,
		views:      cache.NewLRUCache[core.MonthView](cfg.CacheSize, cfg.CacheTTL),
		generation: make(map[string]uint64),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Cache exposes the view cache so the caller can register it for expiry
// sweeps.
func (s *TransactionService) Cache() cache.Cleaner {
	if c, ok := s.views.(cache.Cleaner); ok {
		return c
	}
	return nil
}

// CacheStats reports view cache effectiveness.
func (s *TransactionService) CacheStats() cache.Stats {
	if c, ok := s.views.(interface{ Stats() cache.Stats }); ok {
		return c.Stats()
	}
	return cache.Stats{}
}

// Location is where month boundaries and occurrence dates are computed.
func (s *TransactionService) Location() *time.Location { return s.loc }

// CurrentMonth is the month of the service clock.
func (s *TransactionService) CurrentMonth() core.YearMonth {
	return core.YearMonthOf(s.now().In(s.loc))
}

// MonthView returns the caller's materialized ledger for month.
func (s *TransactionService) MonthView(ctx context.Context, month core.YearMonth) (core.MonthView, error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return core.MonthView{}, err
	}
	return s.MonthViewFor(ctx, owner, month)
}

// MonthViewFor is MonthView for an explicit owner, used by background jobs
// that run without a principal.
func (s *TransactionService) MonthViewFor(ctx context.Context, owner string, month core.YearMonth) (core.MonthView, error) {
	key := viewKey(owner, month)
	if v, ok := s.views.Get(key); ok {
		return copyView(v), nil
	}

	gen := s.currentGeneration(owner)
	// Shared loads must not die with whichever request started them.
	loadCtx := context.WithoutCancel(ctx)
	res, err, _ := s.loads.Do(key, func() (any, error) {
		view, err := s.loadView(loadCtx, owner, month)
		if err != nil {
			return nil, err
		}
		if s.currentGeneration(owner) == gen {
			s.views.Set(key, view)
		}
		return view, nil
	})
	if err != nil {
		return core.MonthView{}, err
	}
	return copyView(res.(core.MonthView)), nil
}

func (s *TransactionService) loadView(ctx context.Context, owner string, month core.YearMonth) (core.MonthView, error) {
	var plain, templates []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plain, err = s.store.ListMonthTransactions(gctx, owner, month.Start(s.loc), month.End(s.loc))
		if err != nil {
			return fmt.Errorf("list month transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		templates, err = s.store.ListRecurringTemplates(gctx, owner)
		if err != nil {
			return fmt.Errorf("list recurring templates: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.MonthView{}, err
	}

	s.localize(plain)
	s.localize(templates)
	slog.DebugContext(ctx, "Month view built",
		log.FieldComponent, log.ComponentTransactions,
		log.FieldOperation, log.OpRead,
		log.FieldOwner, owner,
		log.FieldMonth, month.String(),
		"templates", len(templates))
	return Materialize(month, plain, templates), nil
}

// localize moves stored instants into the service location so day of month
// and month boundaries match what the owner sees.
func (s *TransactionService) localize(txs []core.Transaction) {
	for i := range txs {
		txs[i].Date = txs[i].Date.In(s.loc)
	}
}

// Insights summarizes one polarity of the caller's month.
func (s *TransactionService) Insights(ctx context.Context, month core.YearMonth, p core.Polarity) (core.Insights, error) {
	view, err := s.MonthView(ctx, month)
	if err != nil {
		return core.Insights{}, err
	}
	return Insights(view, p), nil
}

// Add validates and stores a new transaction. A recurring one starts in the
// month of its date.
func (s *TransactionService) Add(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if in.Date.IsZero() {
		return core.Transaction{}, &core.ValidationError{Field: "date", Reason: "date is required"}
	}
	desc, err := core.CleanText("description", in.Description, core.MaxDescriptionLen, true)
	if err != nil {
		return core.Transaction{}, err
	}
	amount := in.Amount.Round(2)
	if err := core.ValidateAmount(amount); err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          s.newID(),
		OwnerID:     owner,
		Date:        in.Date.In(s.loc),
		Description: desc,
		Amount:      amount,
		IsRecurring: in.IsRecurring,
	}
	if tx.Category, err = core.ParseCategory(tx.Polarity(), in.Category); err != nil {
		return core.Transaction{}, err
	}
	if tx.IsRecurring {
		tx.RecurringStartMonth = core.YearMonthOf(tx.Date)
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.Apply(ctx, storage.CreateTransaction(tx)); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.committed(ctx, owner, core.YearMonthOf(tx.Date), tx.Ref())

	slog.InfoContext(ctx, "Transaction added",
		log.FieldComponent, log.ComponentTransactions,
		log.FieldOperation, log.OpCreate,
		log.FieldOwner, owner,
		log.FieldRef, tx.Ref().String(),
		log.FieldMonth, core.YearMonthOf(tx.Date).String(),
		"recurring", tx.IsRecurring)
	return tx, nil
}

// Update edits the transaction behind ref. A virtual ref edits its
// template: description and category for every month, amount from the
// ref's month onward.
func (s *TransactionService) Update(ctx context.Context, ref core.TxRef, u TransactionUpdate) error {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	if u.empty() {
		return &core.ValidationError{Field: "body", Reason: "nothing to update"}
	}
	if ref.IsVirtual() {
		if u.Date != nil {
			return &core.ValidationError{Field: "date", Reason: "the date of a single occurrence cannot be changed"}
		}
		if u.IsRecurring != nil {
			return &core.ValidationError{Field: "isRecurring", Reason: "a single occurrence cannot change recurrence"}
		}
	}

	// Validate what can be checked without the stored row first.
	var patch storage.TransactionPatch
	if u.Description != nil {
		desc, err := core.CleanText("description", *u.Description, core.MaxDescriptionLen, true)
		if err != nil {
			return err
		}
		patch.Description = &desc
	}
	if u.Amount != nil {
		amount := u.Amount.Round(2)
		if err := core.ValidateAmount(amount); err != nil {
			return err
		}
		u.Amount = &amount
	}
	if u.Date != nil && u.Date.IsZero() {
		return &core.ValidationError{Field: "date", Reason: "date is required"}
	}

	tx, err := s.store.GetTransaction(ctx, owner, ref.ID)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if ref.IsVirtual() && !tx.IsRecurring {
		return fmt.Errorf("template %s: %w", ref.ID, core.ErrNotFound)
	}
	tx.Date = tx.Date.In(s.loc)

	polarity := tx.Polarity()
	if u.Amount != nil {
		if ref.IsVirtual() {
			if (core.Transaction{Amount: *u.Amount}).Polarity() != polarity {
				return &core.ValidationError{
					Field:  "amount",
					Reason: "an occurrence cannot change the sign of its series",
				}
			}
			start := tx.StartMonth()
			switch {
			case ref.Month == start:
				patch.Amount = u.Amount
			case ref.Month.After(start):
				patch.UpsertAmountChange = &core.AmountChange{Amount: *u.Amount, EffectiveFrom: ref.Month}
			default:
				return &core.ValidationError{
					Field:  "amount",
					Reason: fmt.Sprintf("cannot change the amount before the first month %s", start),
				}
			}
		} else {
			patch.Amount = u.Amount
		}
		if patch.Amount != nil {
			polarity = core.Transaction{Amount: *patch.Amount}.Polarity()
		}
	}
	switch {
	case u.Category != nil:
		cat, err := core.ParseCategory(polarity, *u.Category)
		if err != nil {
			return err
		}
		patch.Category = &cat
	case polarity != tx.Polarity():
		// A sign flip moves the entry to the other table; keep the category
		// only if it exists there.
		cat := core.NormalizeCategory(polarity, string(tx.Category))
		patch.Category = &cat
	}

	ops := []storage.Op{}
	if !ref.IsVirtual() {
		if u.Date != nil {
			d := u.Date.In(s.loc)
			patch.Date = &d
		}
		if u.IsRecurring != nil && *u.IsRecurring != tx.IsRecurring {
			patch.IsRecurring = u.IsRecurring
			if *u.IsRecurring {
				date := tx.Date
				if patch.Date != nil {
					date = *patch.Date
				}
				start := core.YearMonthOf(date.In(s.loc))
				patch.RecurringStartMonth = &start
			} else {
				patch.ClearRecurring = true
				linked, err := s.store.FindTasksByLink(ctx, owner, tx.ID)
				if err != nil {
					return fmt.Errorf("find linked tasks: %w", err)
				}
				for _, t := range linked {
					ops = append(ops, storage.DeleteTask(owner, t.ID))
				}
			}
		}
	}
	ops = append([]storage.Op{storage.UpdateTransaction(owner, tx.ID, patch)}, ops...)

	if err := s.store.Apply(ctx, ops...); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	month := ref.Month
	if !ref.IsVirtual() {
		month = core.YearMonthOf(tx.Date.In(s.loc))
		if patch.Date != nil {
			month = core.YearMonthOf(*patch.Date)
		}
	}
	s.committed(ctx, owner, month, ref)
	slog.InfoContext(ctx, "Transaction updated",
		log.FieldComponent, log.ComponentTransactions,
		log.FieldOperation, log.OpUpdate,
		log.FieldOwner, owner,
		log.FieldRef, ref.String(),
		"ops", len(ops))
	return nil
}

// Delete removes one entry. For a virtual ref only that month is excluded
// from the template; a plain template id deletes the whole series.
func (s *TransactionService) Delete(ctx context.Context, ref core.TxRef) error {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	tx, err := s.store.GetTransaction(ctx, owner, ref.ID)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	switch {
	case ref.IsVirtual():
		if !tx.IsRecurring {
			return fmt.Errorf("template %s: %w", ref.ID, core.ErrNotFound)
		}
		m := ref.Month
		op := storage.UpdateTransaction(owner, ref.ID, storage.TransactionPatch{AddExcludedMonth: &m})
		if err := s.store.Apply(ctx, op); err != nil {
			return fmt.Errorf("exclude month: %w", err)
		}
		s.committed(ctx, owner, ref.Month, ref)
		slog.InfoContext(ctx, "Recurring occurrence excluded",
			log.FieldComponent, log.ComponentTransactions,
			log.FieldOperation, log.OpDelete,
			log.FieldOwner, owner,
			log.FieldRef, ref.String())
		return nil

	case tx.IsRecurring:
		return s.deleteSeries(ctx, owner, tx.ID)
	}

	if err := s.store.Apply(ctx, storage.DeleteTransaction(owner, tx.ID)); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.committed(ctx, owner, core.YearMonthOf(tx.Date.In(s.loc)), ref)
	slog.InfoContext(ctx, "Transaction deleted",
		log.FieldComponent, log.ComponentTransactions,
		log.FieldOperation, log.OpDelete,
		log.FieldOwner, owner,
		log.FieldRef, tx.ID)
	return nil
}

// DeleteAllRecurring deletes the template behind ref and every task linked
// to it in one batch.
func (s *TransactionService) DeleteAllRecurring(ctx context.Context, ref core.TxRef) error {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	tx, err := s.store.GetTransaction(ctx, owner, ref.TemplateID())
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if !tx.IsRecurring {
		return fmt.Errorf("template %s: %w", tx.ID, core.ErrNotFound)
	}
	return s.deleteSeries(ctx, owner, tx.ID)
}

func (s *TransactionService) deleteSeries(ctx context.Context, owner, templateID string) error {
	linked, err := s.store.FindTasksByLink(ctx, owner, templateID)
	if err != nil {
		return fmt.Errorf("find linked tasks: %w", err)
	}
	ops := make([]storage.Op, 0, len(linked)+1)
	ops = append(ops, storage.DeleteTransaction(owner, templateID))
	for _, t := range linked {
		ops = append(ops, storage.DeleteTask(owner, t.ID))
	}
	if err := s.store.Apply(ctx, ops...); err != nil {
		return fmt.Errorf("delete recurring series: %w", err)
	}
	s.committed(ctx, owner, s.CurrentMonth(), core.TxRef{ID: templateID})
	slog.InfoContext(ctx, "Recurring series deleted",
		log.FieldComponent, log.ComponentTransactions,
		log.FieldOperation, log.OpDelete,
		log.FieldOwner, owner,
		log.FieldRef, templateID,
		"linked_tasks", len(linked))
	return nil
}

// Invalidate drops every cached view of owner.
func (s *TransactionService) Invalidate(owner string) {
	s.genMu.Lock()
	s.generation[owner]++
	s.genMu.Unlock()
	s.views.DeletePrefix(owner + "|")
}

func (s *TransactionService) committed(ctx context.Context, owner string, month core.YearMonth, ref core.TxRef) {
	s.Invalidate(owner)
	publishChange(ctx, s.publisher, amqp.NewChangeEvent(owner, month, amqp.ChangeTransactions, ref.String()))
}

func (s *TransactionService) currentGeneration(owner string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generation[owner]
}

func viewKey(owner string, month core.YearMonth) string {
	return owner + "|" + month.String()
}

// copyView gives callers their own slice so the cached one stays intact.
func copyView(v core.MonthView) core.MonthView {
	v.Transactions = slices.Clone(v.Transactions)
	return v
}
