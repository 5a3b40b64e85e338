package web

import (
	"errors"
	"net/http"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobportal/app/auth"
	"github.com/umputun/jobportal/app/web/persistence"
)

// invalidLoginMsg is shown for unknown user and wrong password alike
const invalidLoginMsg = "Invalid username or password"

// handleLoginForm displays the login form
func (s *Server) handleLoginForm(w http.ResponseWriter, _ *http.Request) {
	s.renderLogin(w, http.StatusOK, "")
}

// handleLogin processes the login form submission
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	username, password := r.FormValue("username"), r.FormValue("password")
	if username == "" || password == "" {
		s.renderLogin(w, http.StatusUnauthorized, invalidLoginMsg)
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		log.Printf("[ERROR] failed to load user %q: %v", username, err)
		http.Error(w, "Failed to process login", http.StatusInternalServerError)
		return
	}
	// unknown users pay the same bcrypt cost as a wrong password
	valid := err == nil && user.CheckPassword(password)
	if err != nil {
		auth.RejectPassword(password)
	}
	if !valid {
		log.Printf("[INFO] failed login attempt for %q from %s", username, r.RemoteAddr)
		s.renderLogin(w, http.StatusUnauthorized, invalidLoginMsg)
		return
	}

	if err := s.sessions.Issue(w, r, auth.AuthenticatedUser{ID: user.ID, Username: user.Username}); err != nil {
		log.Printf("[ERROR] failed to issue session for %q: %v", username, err)
		http.Error(w, "Failed to process login", http.StatusInternalServerError)
		return
	}

	log.Printf("[INFO] user %q logged in", username)
	http.Redirect(w, r, adminPrefix+"/", http.StatusSeeOther)
}

// handleLogout clears the session, requests without a session just go to the login page
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if !user.IsAuthenticated() {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	s.sessions.Clear(w, r)
	log.Printf("[INFO] user %q logged out", user.Username)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// adminOnly lets through only requests with an authenticated user, others are sent to the login page
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.isAccessible(r) {
			s.inaccessible(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isAccessible(r *http.Request) bool {
	var current auth.Authenticator = auth.UserFromContext(r.Context())
	return current.IsAuthenticated()
}

func (s *Server) inaccessible(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// renderLogin renders the standalone login page, with error message if set
func (s *Server) renderLogin(w http.ResponseWriter, status int, errorMsg string) {
	tmpl := s.templates["login"]
	if tmpl == nil {
		log.Printf("[ERROR] login template not found in templates map")
		http.Error(w, "Login template not found", http.StatusInternalServerError)
		return
	}

	data := struct{ Error string }{Error: errorMsg}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		log.Printf("[ERROR] failed to render login template: %v", err)
	}
}
