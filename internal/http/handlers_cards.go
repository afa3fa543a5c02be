package http

import (
	"net/http"

	"finanzas/internal/core"
)

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.ledger.ListCards(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cards))
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var in core.Card
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	card, err := s.ledger.CreateCard(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.ledger.GetCard(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var in core.Card
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.ID = r.PathValue("id")
	card, err := s.ledger.UpdateCard(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteCard(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.dashboard.CardSummary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCardWindow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today, err := s.parseToday(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	radius, err := parseDays(q, "radius", s.cfg.WindowRadiusDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	points, err := s.dashboard.CardWindow(r.Context(), r.PathValue("id"), today, radius)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(points))
}

func (s *Server) handleCardCycles(w http.ResponseWriter, r *http.Request) {
	today, err := s.parseToday(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cycles, err := s.dashboard.CardCycles(r.Context(), r.PathValue("id"), today)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cycles))
}

func (s *Server) handleCardSpend(w http.ResponseWriter, r *http.Request) {
	today, err := s.parseToday(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	spend, err := s.dashboard.CardSpend(r.Context(), r.PathValue("id"), today)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spend)
}
