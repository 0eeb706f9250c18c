package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// StatusFor mapeia a taxonomia de erros para o status HTTP.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, appErrors.ErrNotAuthenticated), errors.Is(err, appErrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, appErrors.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, appErrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, appErrors.ErrValidation), errors.Is(err, appErrors.ErrWeakPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, appErrors.ErrProfileNotFound), errors.Is(err, appErrors.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, appErrors.ErrAIService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError registra o detalhe técnico e responde com a mensagem ao usuário.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	entry := appLogger.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path, "status": status})
	if status >= http.StatusInternalServerError {
		entry.Errorf("Falha na ação: %v", err)
	} else {
		entry.Infof("Ação recusada: %v", err)
	}

	resp := ErrorResponse{Error: appErrors.UserMessage(err)}
	var ve *appErrors.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}
	WriteJSON(w, status, resp)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return appErrors.NewValidationError("Corpo da requisição inválido.", map[string]string{"body": err.Error()})
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, appErrors.NewValidationError("Identificador inválido.", map[string]string{name: raw})
	}
	return id, nil
}

func uintParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, appErrors.NewValidationError("Identificador inválido.", map[string]string{name: raw})
	}
	return id, nil
}

func optionalUUIDQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, appErrors.NewValidationError("Identificador inválido.", map[string]string{name: raw})
	}
	return &id, nil
}

// optionalDateQuery aceita AAAA-MM-DD ou RFC3339. fimDoDia leva AAAA-MM-DD ao último instante do dia.
func optionalDateQuery(r *http.Request, name string, fimDoDia bool) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(utils.DateLayout, raw)
	if err != nil {
		return nil, appErrors.NewValidationError("Data inválida (use AAAA-MM-DD).", map[string]string{name: raw})
	}
	if fimDoDia {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func confirmado(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("confirmado"))
	return v
}
