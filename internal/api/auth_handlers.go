package api

import (
	"net/http"
	"strings"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
)

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nome     string `json:"nome"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Session *auth.Session         `json:"session"`
	Profile *models.ProfilePublic `json:"profile,omitempty"`
}

func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	session, err := s.provider.SignUp(r.Context(), req.Email, req.Password, req.Nome)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, s.sessionResponse(r, session))
}

func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeServiceError(w, r, appErrors.NewValidationError("Email e senha são obrigatórios.", nil))
		return
	}
	session, err := s.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, s.sessionResponse(r, session))
}

func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	if err := s.provider.SignOut(r.Context(), session.AccessToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.SessionFromContext(r.Context())
	session, err := s.provider.Refresh(r.Context(), current.AccessToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, s.sessionResponse(r, session))
}

// CurrentSession devolve a sessão e o perfil. Perfil ausente é erro bloqueante (409).
func (s *Server) CurrentSession(w http.ResponseWriter, r *http.Request) {
	caller, err := s.ac.ValidatePermissions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	session, _ := auth.SessionFromContext(r.Context())
	WriteJSON(w, http.StatusOK, SessionResponse{Session: session, Profile: models.ToProfilePublic(caller.Profile)})
}

// sessionResponse anexa o perfil quando ele já pode ser lido.
func (s *Server) sessionResponse(r *http.Request, session *auth.Session) SessionResponse {
	resp := SessionResponse{Session: session}
	if caller, err := s.ac.ValidatePermissions(auth.WithSession(r.Context(), session)); err == nil {
		resp.Profile = models.ToProfilePublic(caller.Profile)
	}
	return resp
}
