package http

import (
	"net/http"

	"moneyboard/internal/services"
)

// handleBoard synchronizes bill tasks for the current month before
// returning the board.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.tasks.Board(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toBoardJSON(b)).Write(w)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := req.Amount.Decimal()
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := services.TaskInput{
		Title:       sanitizeInput(req.Title),
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Category:    sanitizeInput(req.Category),
		Status:      req.Status,
	}
	if req.DueDate != "" {
		if in.DueDate, err = parseDate("dueDate", req.DueDate, s.txs.Location()); err != nil {
			writeError(w, r, err)
			return
		}
	}

	task, err := s.tasks.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/tasks/"+task.ID).
		Body(toTaskJSON(task)).
		Write(w)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u := services.TaskUpdate{
		Title:       sanitizePtr(req.Title),
		Description: sanitizePtr(req.Description),
		Category:    sanitizePtr(req.Category),
		Status:      req.Status,
	}
	var err error
	if u.Amount, err = req.Amount.DecimalPtr(); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := s.tasks.Update(r.Context(), pathParam(r, "id"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toTaskJSON(task)).Write(w)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.Context(), pathParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	var req moveTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tasks.Move(r.Context(), pathParam(r, "id"), req.Status, req.Index); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleAddToCalendar turns a done task into an expense and returns it.
func (s *Server) handleAddToCalendar(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date, s.txs.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.tasks.AddToCalendar(r.Context(), pathParam(r, "id"), date, sanitizeInput(req.Category))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toTransactionJSON(tx, false)).Write(w)
}
