package http

import (
	"net/http"

	"financefam/internal/core"
	"financefam/internal/services"
)

// handleListUsers backs the login picker, so it needs no session.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, users)
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request, sess core.Session) {
	var in services.UserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := s.svc.Admin.AddUser(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, sess core.Session) {
	if err := s.svc.Admin.DeleteUser(r.Context(), sess, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted.")
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request, _ core.Session) {
	admins, err := s.svc.Admin.ListAdmins(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]adminView, len(admins))
	for i, a := range admins {
		views[i] = viewAdmin(a)
	}
	writeData(w, http.StatusOK, views)
}

func (s *Server) handleAddAdmin(w http.ResponseWriter, r *http.Request, sess core.Session) {
	var in services.AdminInput
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := s.svc.Admin.AddAdmin(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, viewAdmin(a))
}

func (s *Server) handleDeleteAdmin(w http.ResponseWriter, r *http.Request, sess core.Session) {
	if err := s.svc.Admin.DeleteAdmin(r.Context(), sess, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Admin deleted.")
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request, _ core.Session) {
	logs, err := s.svc.Audit.ListLogs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, logs)
}
