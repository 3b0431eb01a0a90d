package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"moneyboard/internal/amqp"
	"moneyboard/internal/auth"
	"moneyboard/internal/core"
	"moneyboard/internal/storage"
	"moneyboard/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	jan = core.NewYearMonth(2025, time.January)
	feb = core.NewYearMonth(2025, time.February)
	mar = core.NewYearMonth(2025, time.March)
	apr = core.NewYearMonth(2025, time.April)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.ChangeEvent
	err    error
}

func (p *recordingPublisher) PublishChange(_ context.Context, e amqp.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Events() []amqp.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]amqp.ChangeEvent(nil), p.events...)
}

// countingStore counts reads and batches going to the wrapped store.
type countingStore struct {
	storage.Store
	templateReads atomic.Int32
	applies       atomic.Int32
	failApply     error
}

func (c *countingStore) ListRecurringTemplates(ctx context.Context, owner string) ([]core.Transaction, error) {
	c.templateReads.Add(1)
	return c.Store.ListRecurringTemplates(ctx, owner)
}

func (c *countingStore) Apply(ctx context.Context, ops ...storage.Op) error {
	c.applies.Add(1)
	if c.failApply != nil {
		return c.failApply
	}
	return c.Store.Apply(ctx, ops...)
}

type fixture struct {
	store *countingStore
	pub   *recordingPublisher
	txs   *TransactionService
	sync  *TaskSynchronizer
	tasks *TaskService
	ctx   context.Context
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: &countingStore{Store: memory.New()},
		pub:   &recordingPublisher{},
		ctx:   auth.WithPrincipal(context.Background(), "u1"),
		now:   time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	var seq atomic.Int32
	newID := func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }

	f.txs = NewTransactionService(f.store, f.pub, TransactionServiceConfig{Location: time.UTC})
	f.txs.now = func() time.Time { return f.now }
	f.txs.newID = newID
	f.sync = NewTaskSynchronizer(f.store)
	f.tasks = NewTaskService(f.store, f.txs, f.sync, f.pub)
	f.tasks.newID = newID
	return f
}

func (f *fixture) addTx(t *testing.T, desc string, amount int64, date time.Time, recurring bool) core.Transaction {
	t.Helper()
	tx, err := f.txs.Add(f.ctx, TransactionInput{
		Date:        date,
		Description: desc,
		Amount:      decimal.NewFromInt(amount),
		IsRecurring: recurring,
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) seedTask(t *testing.T, task core.Task) core.Task {
	t.Helper()
	if task.OwnerID == "" {
		task.OwnerID = "u1"
	}
	if task.Amount.IsZero() {
		task.Amount = decimal.NewFromInt(10)
	}
	if task.Title == "" {
		task.Title = task.ID
	}
	if task.Category == "" {
		task.Category = core.Misc
	}
	require.NoError(t, f.store.Store.Apply(context.Background(), storage.CreateTask(task)))
	return task
}

func (f *fixture) allTasks(t *testing.T) []core.Task {
	t.Helper()
	tasks, err := f.store.ListTasks(context.Background(), "u1")
	require.NoError(t, err)
	return tasks
}

func (f *fixture) template(t *testing.T, id string) core.Transaction {
	t.Helper()
	tx, err := f.store.GetTransaction(context.Background(), "u1", id)
	require.NoError(t, err)
	return tx
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amt(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

var errBroker = errors.New("broker down")
