package http

import (
	"net/http"
	"time"

	"financefam/internal/core"
)

// adminView is an admin as the API shows it. Passwords never leave the
// server.
type adminView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewAdmin(a core.Admin) adminView {
	return adminView{ID: a.ID, Username: a.Username, CreatedAt: a.CreatedAt}
}

type sessionView struct {
	Token string     `json:"token"`
	User  *core.User `json:"user,omitempty"`
	Admin *adminView `json:"admin,omitempty"`
}

func (s *Server) handleLoginUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	token, sess, err := s.svc.Auth.LoginUser(r.Context(), body.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, sessionView{Token: token, User: sess.User})
}

func (s *Server) handleLoginAdmin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	token, sess, err := s.svc.Auth.LoginAdmin(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := viewAdmin(*sess.Admin)
	writeData(w, http.StatusCreated, sessionView{Token: token, Admin: &view})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Auth.Logout(bearerToken(r)) {
		writeMessage(w, http.StatusUnauthorized, "Authentication required.")
		return
	}
	writeMessage(w, http.StatusOK, "Logged out.")
}
