package http

import (
	"net/http"
	"strings"

	"financefam/internal/core"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess core.Session)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func (s *Server) session(r *http.Request) (core.Session, bool) {
	return s.svc.Auth.Session(bearerToken(r))
}

func (s *Server) withSession(allowed func(core.Session) bool, forbidden string, next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		if !allowed(sess) {
			writeMessage(w, http.StatusForbidden, forbidden)
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) requireUser(next sessionHandler) http.HandlerFunc {
	return s.withSession(core.Session.IsUser, "A user session is required.", next)
}

func (s *Server) requireAdmin(next sessionHandler) http.HandlerFunc {
	return s.withSession(core.Session.IsAdmin, "Admin access required.", next)
}

func (s *Server) requireAny(next sessionHandler) http.HandlerFunc {
	return s.withSession(func(sess core.Session) bool { return sess.IsUser() || sess.IsAdmin() }, "", next)
}
