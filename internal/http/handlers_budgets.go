package http

import (
	"net/http"
	"strings"

	"finanzas/internal/core"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.ledger.ListBudgets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(budgets))
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in core.Budget
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.ledger.CreateBudget(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.GetBudget(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var in core.Budget
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.ID = r.PathValue("id")
	b, err := s.ledger.UpdateBudget(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteBudget(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.parseYearMonth(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status, err := s.dashboard.BudgetStatus(r.Context(), year, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(status))
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.parseYearMonth(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ov, err := s.dashboard.Overview(r.Context(), year, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// handleCategories lists the fixed categories, optionally for one type.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	typ := core.TransactionType(strings.TrimSpace(r.URL.Query().Get("type")))
	if typ == "" {
		writeJSON(w, http.StatusOK, map[core.TransactionType][]core.Category{
			core.Expense: core.CategoriesFor(core.Expense),
			core.Income:  core.CategoriesFor(core.Income),
		})
		return
	}
	if !typ.Valid() {
		s.writeError(w, r, badParam("type", "must be expense or income"))
		return
	}
	writeJSON(w, http.StatusOK, core.CategoriesFor(typ))
}
