package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
)

// RelatorioFiltro agrupa os filtros opcionais de listagem de relatórios.
type RelatorioFiltro struct {
	AlunoID *uuid.UUID
	TurmaID *uuid.UUID
	Status  string
}

// RelatorioRepository define as operações de acesso à tabela relatorios.
type RelatorioRepository interface {
	ListByProfessor(ctx context.Context, professorID uuid.UUID, filtro RelatorioFiltro) ([]models.DBRelatorio, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.DBRelatorio, error)
	Create(ctx context.Context, data models.RelatorioCreate, professorID uuid.UUID) (*models.DBRelatorio, error)
	Update(ctx context.Context, id uuid.UUID, data models.RelatorioUpdate) (*models.DBRelatorio, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type gormRelatorioRepository struct {
	db *gorm.DB
}

// NewGormRelatorioRepository cria uma nova instância de gormRelatorioRepository.
func NewGormRelatorioRepository(db *gorm.DB) RelatorioRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormRelatorioRepository")
	}
	return &gormRelatorioRepository{db: db}
}

// ListByProfessor lista os relatórios do professor, mais recentes primeiro.
func (r *gormRelatorioRepository) ListByProfessor(ctx context.Context, professorID uuid.UUID, f RelatorioFiltro) ([]models.DBRelatorio, error) {
	query := r.db.WithContext(ctx).Where("relatorios.professor_id = ?", professorID)
	if f.AlunoID != nil {
		query = query.Where("relatorios.aluno_id = ?", *f.AlunoID)
	}
	if f.TurmaID != nil {
		query = query.Where("relatorios.aluno_id IN (?)",
			r.db.Model(&models.DBAluno{}).Select("id").Where("turma_id = ?", *f.TurmaID))
	}
	if status := strings.TrimSpace(f.Status); status != "" {
		query = query.Where("relatorios.status = ?", strings.ToLower(status))
	}

	var relatorios []models.DBRelatorio
	if err := query.Order("relatorios.created_at DESC").Find(&relatorios).Error; err != nil {
		appLogger.Errorf("Erro ao listar relatórios do professor %s: %v", professorID, err)
		return nil, appErrors.NewBackendError("listando relatórios", err)
	}
	return relatorios, nil
}

func (r *gormRelatorioRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DBRelatorio, error) {
	var relatorio models.DBRelatorio
	if err := r.db.WithContext(ctx).First(&relatorio, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: relatório %s não encontrado", appErrors.ErrNotFound, id)
		}
		appLogger.Errorf("Erro ao buscar relatório %s: %v", id, err)
		return nil, appErrors.NewBackendError("buscando relatório", err)
	}
	return &relatorio, nil
}

func (r *gormRelatorioRepository) Create(ctx context.Context, data models.RelatorioCreate, professorID uuid.UUID) (*models.DBRelatorio, error) {
	relatorio := models.DBRelatorio{
		AlunoID:     data.AlunoID,
		Titulo:      data.Titulo,
		Periodo:     data.Periodo,
		Conteudo:    data.Conteudo,
		Observacoes: data.Observacoes,
		Status:      data.Status,
		GeradoPorIA: data.GeradoPorIA,
		ProfessorID: professorID,
	}
	if err := r.db.WithContext(ctx).Omit("Aluno").Create(&relatorio).Error; err != nil {
		appLogger.Errorf("Erro ao criar relatório '%s': %v", data.Titulo, err)
		return nil, appErrors.NewBackendError("criando relatório", err)
	}
	appLogger.Infof("Relatório criado: '%s' (ID: %s, aluno: %s, IA: %t)", relatorio.Titulo, relatorio.ID, relatorio.AlunoID, relatorio.GeradoPorIA)
	return &relatorio, nil
}

func (r *gormRelatorioRepository) Update(ctx context.Context, id uuid.UUID, data models.RelatorioUpdate) (*models.DBRelatorio, error) {
	relatorio, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := data.Changes()
	if len(updates) == 0 {
		return relatorio, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.DBRelatorio{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		appLogger.Errorf("Erro ao atualizar relatório %s: %v", id, err)
		return nil, appErrors.NewBackendError("atualizando relatório", err)
	}
	appLogger.Infof("Relatório %s atualizado. Campos: %v", id, keysOf(updates))
	return r.GetByID(ctx, id)
}

func (r *gormRelatorioRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DBRelatorio{}, "id = ?", id)
	if result.Error != nil {
		appLogger.Errorf("Erro ao apagar relatório %s: %v", id, result.Error)
		return appErrors.NewBackendError("apagando relatório", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: relatório %s não encontrado para exclusão", appErrors.ErrNotFound, id)
	}
	appLogger.Infof("Relatório %s apagado.", id)
	return nil
}
