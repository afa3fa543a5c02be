package http

import (
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txs, err := s.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(txs))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.Transaction
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	tx, err := s.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithTransaction(tx.ID, string(tx.Type), tx.Category, tx.Amount.StringFixed(2)).
			ToSlice()...)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.Transaction
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.ID = r.PathValue("id")
	tx, err := s.ledger.UpdateTransaction(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNextOccurrence(w http.ResponseWriter, r *http.Request) {
	today, err := s.parseToday(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	next, err := s.dashboard.NextOccurrence(r.Context(), r.PathValue("id"), today)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today, err := s.parseToday(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	days, err := parseDays(q, "days", s.cfg.UpcomingHorizonDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	upcoming, err := s.dashboard.Upcoming(r.Context(), today, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(upcoming))
}
