package repositories

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
)

// AuditLogFilter agrupa os filtros opcionais de consulta da trilha de auditoria.
type AuditLogFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Severity  string
	Username  string
	Action    string
	Limit     int
	Offset    int
}

// AuditLogRepository define a interface para operações no repositório de logs de auditoria.
type AuditLogRepository interface {
	Create(ctx context.Context, entry models.AuditLogEntry) (*models.AuditLogEntry, error)
	// GetFiltered retorna as entradas da página e o total que corresponde aos filtros.
	GetFiltered(ctx context.Context, filter AuditLogFilter) ([]models.AuditLogEntry, int64, error)
}

type gormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository cria uma nova instância de gormAuditLogRepository.
func NewGormAuditLogRepository(db *gorm.DB) AuditLogRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormAuditLogRepository")
	}
	return &gormAuditLogRepository{db: db}
}

// Create insere uma nova entrada de log de auditoria.
func (r *gormAuditLogRepository) Create(ctx context.Context, entry models.AuditLogEntry) (*models.AuditLogEntry, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Severity = strings.ToUpper(entry.Severity)

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		// Metadata pode conter dados pessoais de alunos: fica fora da mensagem.
		appLogger.Errorf("Erro ao criar entrada de log de auditoria (Ação: %s, Usuário: %s, Severidade: %s): %v",
			entry.Action, entry.Username, entry.Severity, err)
		return nil, appErrors.NewBackendError("gravando log de auditoria", err)
	}
	return &entry, nil
}

// GetFiltered busca logs de auditoria com base nos filtros fornecidos, com paginação.
func (r *gormAuditLogRepository) GetFiltered(ctx context.Context, f AuditLogFilter) ([]models.AuditLogEntry, int64, error) {
	var entries []models.AuditLogEntry
	var totalCount int64

	query := r.db.WithContext(ctx).Model(&models.AuditLogEntry{})

	if f.StartDate != nil {
		startOfDay := time.Date(f.StartDate.Year(), f.StartDate.Month(), f.StartDate.Day(), 0, 0, 0, 0, time.UTC)
		query = query.Where("timestamp >= ?", startOfDay)
	}
	if f.EndDate != nil {
		endOfDay := time.Date(f.EndDate.Year(), f.EndDate.Month(), f.EndDate.Day(), 23, 59, 59, 999999999, time.UTC)
		query = query.Where("timestamp <= ?", endOfDay)
	}
	if f.Severity != "" {
		query = query.Where("UPPER(severity) = UPPER(?)", f.Severity)
	}
	if f.Username != "" {
		query = query.Where("LOWER(username) = LOWER(?)", f.Username)
	}
	if f.Action != "" {
		query = query.Where("LOWER(action) = LOWER(?)", f.Action)
	}

	// Session torna a query reutilizável entre Count e Find.
	query = query.Session(&gorm.Session{})
	if err := query.Count(&totalCount).Error; err != nil {
		appLogger.Errorf("Erro ao contar logs de auditoria filtrados: %v", err)
		return nil, 0, appErrors.NewBackendError("contando logs de auditoria", err)
	}
	if totalCount == 0 {
		return []models.AuditLogEntry{}, 0, nil
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	} else if limit > 1000 {
		limit = 1000
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	if err := query.Order("timestamp DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		appLogger.Errorf("Erro ao buscar logs de auditoria filtrados: %v", err)
		return nil, 0, appErrors.NewBackendError("buscando logs de auditoria", err)
	}
	return entries, totalCount, nil
}
