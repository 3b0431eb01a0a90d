package worker

import (
	"context"
	"fmt"
	"log/slog"

	"moneyboard/internal/amqp"
	"moneyboard/internal/core"
	"moneyboard/internal/log"
	"moneyboard/internal/services"
	"moneyboard/internal/sheets"
)

// ChangeWorker reacts to transaction change events published by the API.
// It re-runs the bill-task synchronizer for the owner's current month and
// rewrites the changed month in the spreadsheet when an exporter is set.
type ChangeWorker struct {
	txs      *services.TransactionService
	tasks    *services.TaskService
	exporter sheets.LedgerExporter
}

// NewChangeWorker creates a worker. exporter may be nil.
func NewChangeWorker(txs *services.TransactionService, tasks *services.TaskService, exporter sheets.LedgerExporter) *ChangeWorker {
	return &ChangeWorker{txs: txs, tasks: tasks, exporter: exporter}
}

// HandleChange processes a single change event from AMQP.
func (w *ChangeWorker) HandleChange(ctx context.Context, e amqp.ChangeEvent) error {
	slog.InfoContext(ctx, "Processing change event",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOwner, e.OwnerID,
		log.FieldMonth, e.Month.String(),
		log.FieldRef, e.Ref,
		"kind", e.Kind)

	// Writes happened in another process, so this worker's views are stale.
	w.txs.Invalidate(e.OwnerID)

	// Task edits change neither the ledger nor what the synchronizer reads.
	if e.Kind != amqp.ChangeTransactions {
		return nil
	}
	res, err := w.tasks.SyncOwner(ctx, e.OwnerID)
	if err != nil {
		return fmt.Errorf("sync bill tasks: %w", err)
	}
	if res.Changed() {
		slog.InfoContext(ctx, "Bill tasks synchronized",
			log.FieldComponent, log.ComponentWorker,
			log.FieldOperation, log.OpSync,
			log.FieldOwner, e.OwnerID,
			"created", res.Created,
			"updated", res.Updated,
			"removed", res.Removed)
	}

	if w.exporter == nil || e.Month.IsZero() {
		return nil
	}
	return w.Export(ctx, e.OwnerID, e.Month)
}

// Export writes owner's ledger for month through the exporter.
func (w *ChangeWorker) Export(ctx context.Context, owner string, month core.YearMonth) error {
	if w.exporter == nil {
		return fmt.Errorf("no ledger exporter configured")
	}
	view, err := w.txs.MonthViewFor(ctx, owner, month)
	if err != nil {
		return fmt.Errorf("load month view: %w", err)
	}
	ref, err := w.exporter.ExportMonth(ctx, owner, view)
	if err != nil {
		return fmt.Errorf("export month: %w", err)
	}
	slog.InfoContext(ctx, "Successfully exported month",
		log.FieldComponent, log.ComponentSheets,
		log.FieldOperation, log.OpExport,
		log.FieldOwner, owner,
		log.FieldMonth, month.String(),
		"sheets_ref", ref)
	return nil
}

// Consume blocks handling events from client until ctx is cancelled.
func (w *ChangeWorker) Consume(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeChanges(ctx, w.HandleChange)
}
