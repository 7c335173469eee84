package http

import (
	"net/http"

	"financefam/internal/core"
	"financefam/internal/services"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, sess core.Session) {
	goals, err := s.svc.Goals.ListGoals(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, goals)
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request, sess core.Session) {
	var in services.GoalInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.UserID = sess.User.ID
	g, err := s.svc.Goals.AddGoal(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, g)
}

func (s *Server) handleGoalBalance(w http.ResponseWriter, r *http.Request, sess core.Session) {
	var in services.BalanceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	g, err := s.svc.Goals.UpdateGoalBalance(r.Context(), sess, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, g)
}

func (s *Server) handleGoalHistory(w http.ResponseWriter, r *http.Request, sess core.Session) {
	history, err := s.svc.Goals.GoalHistory(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, history)
}

type savingsView struct {
	core.Savings
	Recent []core.HistoryEntry `json:"recentHistory"`
}

func (s *Server) handleGetSavings(w http.ResponseWriter, r *http.Request, sess core.Session) {
	sv, err := s.svc.Savings.GetSavings(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recent, err := s.svc.Savings.RecentSavingsHistory(r.Context(), sess.User.ID, services.RecentHistorySize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, savingsView{Savings: sv, Recent: recent})
}

func (s *Server) handleSavingsBalance(w http.ResponseWriter, r *http.Request, sess core.Session) {
	var in services.BalanceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	sv, err := s.svc.Savings.UpdateSavings(r.Context(), sess, sess.User.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sv)
}
