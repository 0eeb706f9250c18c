package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
)

const maxAuditDescription = 4000

// AuditLogService registra e consulta a trilha de auditoria.
type AuditLogService interface {
	// LogAction registra uma ação. caller pode ser nil para ações do sistema.
	LogAction(ctx context.Context, entry models.AuditLogEntry, caller *auth.Caller) error
	// GetAuditLogs consulta a trilha com paginação. Somente administradores.
	GetAuditLogs(ctx context.Context, filter repositories.AuditLogFilter) (logs []models.AuditLogEntry, totalCount int64, err error)
}

type auditLogServiceImpl struct {
	repo repositories.AuditLogRepository
	ac   *auth.AccessControl
}

// NewAuditLogService cria uma nova instância de AuditLogService.
func NewAuditLogService(repo repositories.AuditLogRepository, ac *auth.AccessControl) AuditLogService {
	if repo == nil || ac == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewAuditLogService")
	}
	return &auditLogServiceImpl{repo: repo, ac: ac}
}

func (s *auditLogServiceImpl) LogAction(ctx context.Context, entry models.AuditLogEntry, caller *auth.Caller) error {
	if strings.TrimSpace(entry.Action) == "" {
		return appErrors.NewValidationError("Ação do log de auditoria não pode ser vazia.", map[string]string{"action": "obrigatório"})
	}
	if strings.TrimSpace(entry.Description) == "" {
		return appErrors.NewValidationError("Descrição do log de auditoria não pode ser vazia.", map[string]string{"description": "obrigatório"})
	}

	severity := strings.ToUpper(strings.TrimSpace(entry.Severity))
	if !models.ValidSeverities[severity] {
		appLogger.Warnf("Severidade inválida '%s' para log de auditoria. Usando 'INFO'. Ação: %s", entry.Severity, entry.Action)
		severity = "INFO"
	}
	entry.Severity = severity

	if caller != nil && caller.Profile != nil {
		if entry.Username == "" {
			entry.Username = caller.Profile.Nome
		}
		if entry.UserID == nil || *entry.UserID == uuid.Nil {
			id := caller.ID()
			entry.UserID = &id
		}
		if entry.Tipo == nil {
			tipo := caller.Profile.Tipo
			entry.Tipo = &tipo
		}
	} else if entry.Username == "" {
		entry.Username = "system"
	}

	if utf8.RuneCountInString(entry.Description) > maxAuditDescription {
		runes := []rune(entry.Description)
		entry.Description = string(runes[:maxAuditDescription-3]) + "..."
		appLogger.Warnf("Descrição do log de auditoria truncada. Ação: %s", entry.Action)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if _, err := s.repo.Create(ctx, entry); err != nil {
		return appErrors.WrapErrorf(err, "falha ao persistir log de auditoria (Ação: %s)", entry.Action)
	}
	return nil
}

func (s *auditLogServiceImpl) GetAuditLogs(ctx context.Context, filter repositories.AuditLogFilter) ([]models.AuditLogEntry, int64, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !caller.IsAdmin() {
		return nil, 0, fmt.Errorf("%w: trilha de auditoria restrita a administradores", appErrors.ErrPermissionDenied)
	}
	if filter.Limit > 1000 {
		appLogger.Warnf("Solicitação de GetAuditLogs com limite > 1000. Reduzido para 1000.")
		filter.Limit = 1000
	}
	if filter.StartDate != nil {
		v := filter.StartDate.UTC()
		filter.StartDate = &v
	}
	if filter.EndDate != nil {
		v := filter.EndDate.UTC()
		filter.EndDate = &v
	}
	logs, total, err := s.repo.GetFiltered(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.WrapErrorf(err, "falha ao buscar logs de auditoria")
	}
	return logs, total, nil
}

// registrarAuditoria grava a entrada sem propagar falhas: auditoria nunca desfaz a ação principal.
func registrarAuditoria(ctx context.Context, audit AuditLogService, entry models.AuditLogEntry, caller *auth.Caller) {
	if audit == nil {
		return
	}
	if err := audit.LogAction(ctx, entry, caller); err != nil {
		appLogger.Warnf("Falha ao registrar auditoria (%s): %v", entry.Action, err)
	}
}
