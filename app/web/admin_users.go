package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobportal/app/auth"
	"github.com/umputun/jobportal/app/web/persistence"
)

const maxUsernameLen = 80

type userFormPage struct {
	pageMeta
	ID       int64
	Username string
	IsNew    bool
}

// handleAdminUsers lists users, password hashes are never shown
func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.adminError(w, r, err, "failed to load users")
		return
	}
	s.render(w, http.StatusOK, "users", struct {
		pageMeta
		Users []persistence.User
	}{pageMeta: s.newPageMeta(r, "Users"), Users: users})
}

// handleAdminUserNew renders empty user form
func (s *Server) handleAdminUserNew(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "user_form", userFormPage{pageMeta: s.newPageMeta(r, "New user"), IsNew: true})
}

// handleAdminUserCreate creates a user with hashed password
func (s *Server) handleAdminUserCreate(w http.ResponseWriter, r *http.Request) {
	username, password := strings.TrimSpace(r.FormValue("username")), r.FormValue("password")
	page := userFormPage{pageMeta: s.newPageMeta(r, "New user"), Username: username, IsNew: true}
	if username == "" {
		page.Errors = append(page.Errors, "Username is required")
	}
	if err := checkLength("Username", username, maxUsernameLen); err != "" {
		page.Errors = append(page.Errors, err)
	}
	if password == "" {
		page.Errors = append(page.Errors, "Password is required")
	}
	if len(page.Errors) > 0 {
		s.render(w, http.StatusBadRequest, "user_form", page)
		return
	}

	user := persistence.User{Username: username}
	if err := user.SetPassword(password); err != nil {
		page.Errors = []string{"Password can't be used"}
		s.render(w, http.StatusBadRequest, "user_form", page)
		return
	}

	created, err := s.store.CreateUser(r.Context(), user)
	if errors.Is(err, persistence.ErrDuplicate) {
		page.Errors = []string{fmt.Sprintf("User %q already exists", username)}
		s.render(w, http.StatusConflict, "user_form", page)
		return
	}
	if err != nil {
		s.adminError(w, r, err, "failed to create user")
		return
	}
	log.Printf("[INFO] user %q created by %q", created.Username, auth.UserFromContext(r.Context()).Username)
	s.afterModelChange(r.Context(), ModelChange{Entity: "user", ID: created.ID, Created: true})
	http.Redirect(w, r, adminPrefix+"/users", http.StatusSeeOther)
}

// handleAdminUserEdit renders the form for an existing user
func (s *Server) handleAdminUserEdit(w http.ResponseWriter, r *http.Request) {
	user, ok := s.adminLoadUser(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, "user_form", userFormPage{
		pageMeta: s.newPageMeta(r, "Edit user "+user.Username), ID: user.ID, Username: user.Username})
}

// handleAdminUserUpdate renames a user and replaces the password if a new one is given
func (s *Server) handleAdminUserUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.adminLoadUser(w, r)
	if !ok {
		return
	}

	username, password := strings.TrimSpace(r.FormValue("username")), r.FormValue("password")
	page := userFormPage{pageMeta: s.newPageMeta(r, "Edit user "+user.Username), ID: user.ID, Username: username}
	if username == "" {
		page.Errors = append(page.Errors, "Username is required")
	}
	if err := checkLength("Username", username, maxUsernameLen); err != "" {
		page.Errors = append(page.Errors, err)
	}
	if len(page.Errors) > 0 {
		s.render(w, http.StatusBadRequest, "user_form", page)
		return
	}

	user.Username = username
	if password != "" {
		if err := user.SetPassword(password); err != nil {
			page.Errors = []string{"Password can't be used"}
			s.render(w, http.StatusBadRequest, "user_form", page)
			return
		}
	}

	err := s.store.UpdateUser(r.Context(), user)
	if errors.Is(err, persistence.ErrDuplicate) {
		page.Errors = []string{fmt.Sprintf("User %q already exists", username)}
		s.render(w, http.StatusConflict, "user_form", page)
		return
	}
	if err != nil {
		s.adminError(w, r, err, "failed to update user")
		return
	}
	log.Printf("[INFO] user %d updated by %q", user.ID, auth.UserFromContext(r.Context()).Username)
	s.afterModelChange(r.Context(), ModelChange{Entity: "user", ID: user.ID})
	http.Redirect(w, r, adminPrefix+"/users", http.StatusSeeOther)
}

// handleAdminUserDelete removes a user
func (s *Server) handleAdminUserDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.adminError(w, r, err, "failed to delete user")
		return
	}
	log.Printf("[INFO] user %d deleted by %q", id, auth.UserFromContext(r.Context()).Username)
	http.Redirect(w, r, adminPrefix+"/users", http.StatusSeeOther)
}

func (s *Server) adminLoadUser(w http.ResponseWriter, r *http.Request) (persistence.User, bool) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return persistence.User{}, false
	}
	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.adminError(w, r, err, "failed to load user")
		return persistence.User{}, false
	}
	return user, true
}
