package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iamrohanmehra/task-twin-betax/pkg/gate"
	"github.com/iamrohanmehra/task-twin-betax/pkg/identity"
	"github.com/iamrohanmehra/task-twin-betax/pkg/tasks"
)

type loginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// handleLogin stands in for the OAuth callback: it registers the profile
// and publishes a signed-in event on the hub. Authorization still runs
// through the machine; logging in does not grant access.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	u := s.store.UpsertUser(req.Email, req.Name)
	s.hub.SignIn(&identity.Identity{ID: u.ID, Email: u.Email, Name: u.Name})

	s.logger.Info("login", "email", req.Email)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.machine.SignOut(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type authStateResponse struct {
	SignedIn   bool   `json:"signed_in"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Authorized bool   `json:"authorized"`
	Admin      bool   `json:"admin"`
	Loading    bool   `json:"loading"`
	Mode       string `json:"mode"`
}

func (s *Server) handleAuthState(w http.ResponseWriter, r *http.Request) {
	st := s.machine.State()
	resp := authStateResponse{
		SignedIn:   st.SignedIn(),
		Authorized: st.Authorized(),
		Admin:      st.Admin(),
		Loading:    st.Loading,
		Mode:       gate.Decide(st, gate.RequireCollaborator).String(),
	}
	if st.Identity != nil {
		resp.Email = st.Identity.Email
		resp.Name = st.Identity.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// currentUser resolves the acting user from the machine's state.
func (s *Server) currentUser() (tasks.AppUser, bool) {
	st := s.machine.State()
	if st.Identity == nil {
		return tasks.AppUser{}, false
	}
	return s.store.UserByEmail(st.Identity.Email)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListTasks())
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser()
	if !ok {
		http.Error(w, "no current user", http.StatusUnauthorized)
		return
	}

	var data tasks.CreateTaskData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	t, err := s.store.CreateTask(u.ID, data)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser()
	if !ok {
		http.Error(w, "no current user", http.StatusUnauthorized)
		return
	}

	var data tasks.UpdateTaskData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	t, err := s.store.UpdateTask(u.ID, chi.URLParam(r, "id"), data)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser()
	if !ok {
		http.Error(w, "no current user", http.StatusUnauthorized)
		return
	}

	t, err := s.store.ToggleComplete(u.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser()
	if !ok {
		http.Error(w, "no current user", http.StatusUnauthorized)
		return
	}

	if err := s.store.DeleteTask(u.ID, chi.URLParam(r, "id")); err != nil {
		writeTaskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCollaborators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Collaborators())
}

type replaceCollaboratorsRequest struct {
	Email1 string `json:"email1"`
	Name1  string `json:"name1"`
	Email2 string `json:"email2"`
	Name2  string `json:"name2"`
}

func (s *Server) handleReplaceCollaborators(w http.ResponseWriter, r *http.Request) {
	var req replaceCollaboratorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	pair, err := s.store.ReplaceCollaborators(req.Email1, req.Name1, req.Email2, req.Name2)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, tasks.ErrPermission):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, tasks.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
