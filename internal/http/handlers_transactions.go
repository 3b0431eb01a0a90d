package http

import (
	"fmt"
	"net/http"

	"moneyboard/internal/core"
	"moneyboard/internal/services"

	"golang.org/x/sync/errgroup"
)

// handleListTransactions serves the month ledger with the overdue flag of
// every recurring expense.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r.URL.Query(), s.txs.CurrentMonth())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var (
		view  core.MonthView
		tasks []core.Task
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		view, err = s.txs.MonthView(ctx, month)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = s.tasks.List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	overdue := services.OverdueSet(view.Transactions, tasks, s.now())
	NewJSONResponse().Body(toMonthViewJSON(view, overdue)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date, s.txs.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := req.Amount.Decimal()
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := s.txs.Add(r.Context(), services.TransactionInput{
		Date:        date,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Category:    sanitizeInput(req.Category),
		IsRecurring: req.IsRecurring,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/transactions/%s", tx.Ref())).
		Body(toTransactionJSON(tx, false)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ref, err := refParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u := services.TransactionUpdate{
		Description: sanitizePtr(req.Description),
		Category:    sanitizePtr(req.Category),
		IsRecurring: req.IsRecurring,
	}
	if u.Date, err = parseDatePtr("date", req.Date, s.txs.Location()); err != nil {
		writeError(w, r, err)
		return
	}
	if u.Amount, err = req.Amount.DecimalPtr(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.txs.Update(r.Context(), ref, u); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleDeleteTransaction deletes a stored transaction, or hides one month
// of a recurring template when the ref is virtual.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ref, err := refParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.txs.Delete(r.Context(), ref); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	ref, err := refParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.txs.DeleteAllRecurring(r.Context(), ref); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	month, err := ParseMonthParam(query, s.txs.CurrentMonth())
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := ParsePolarityParam(query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.txs.Insights(r.Context(), month, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toInsightsJSON(in)).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePolarityParam(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Header("Cache-Control", "private, max-age=3600").
		Body(map[string]any{"type": p.String(), "categories": core.Categories(p)}).
		Write(w)
}
