package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
)

// TurmaRepository define as operações de acesso à tabela turmas.
// Não faz verificação de permissão: isso é responsabilidade do serviço.
type TurmaRepository interface {
	ListByProfessor(ctx context.Context, professorID uuid.UUID) ([]models.DBTurma, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.DBTurma, error)
	Create(ctx context.Context, data models.TurmaCreate, professorID uuid.UUID) (*models.DBTurma, error)
	Update(ctx context.Context, id uuid.UUID, data models.TurmaUpdate) (*models.DBTurma, error)
	// Delete apaga a turma; o banco apaga em cascata alunos, observações e relatórios.
	Delete(ctx context.Context, id uuid.UUID) error
	CountAlunos(ctx context.Context, turmaID uuid.UUID) (int64, error)
	// RecontarAlunos recalcula alunos_count a partir das linhas de alunos.
	RecontarAlunos(ctx context.Context, turmaID uuid.UUID) error
}

type gormTurmaRepository struct {
	db *gorm.DB
}

// NewGormTurmaRepository cria uma nova instância de gormTurmaRepository.
func NewGormTurmaRepository(db *gorm.DB) TurmaRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormTurmaRepository")
	}
	return &gormTurmaRepository{db: db}
}

// ListByProfessor lista as turmas de um professor, mais recentes primeiro.
func (r *gormTurmaRepository) ListByProfessor(ctx context.Context, professorID uuid.UUID) ([]models.DBTurma, error) {
	var turmas []models.DBTurma
	err := r.db.WithContext(ctx).
		Where("professor_id = ?", professorID).
		Order("created_at DESC").
		Find(&turmas).Error
	if err != nil {
		appLogger.Errorf("Erro ao listar turmas do professor %s: %v", professorID, err)
		return nil, appErrors.NewBackendError("listando turmas", err)
	}
	return turmas, nil
}

func (r *gormTurmaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DBTurma, error) {
	var turma models.DBTurma
	if err := r.db.WithContext(ctx).First(&turma, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: turma %s não encontrada", appErrors.ErrNotFound, id)
		}
		appLogger.Errorf("Erro ao buscar turma %s: %v", id, err)
		return nil, appErrors.NewBackendError("buscando turma", err)
	}
	return &turma, nil
}

// Create insere a turma. Espera dados já validados pelo serviço.
func (r *gormTurmaRepository) Create(ctx context.Context, data models.TurmaCreate, professorID uuid.UUID) (*models.DBTurma, error) {
	turma := models.DBTurma{
		Nome:        data.Nome,
		FaixaEtaria: data.FaixaEtaria,
		Cor:         data.Cor,
		ProfessorID: professorID,
	}
	if err := r.db.WithContext(ctx).Create(&turma).Error; err != nil {
		appLogger.Errorf("Erro ao criar turma '%s': %v", data.Nome, err)
		return nil, appErrors.NewBackendError("criando turma", err)
	}
	appLogger.Infof("Turma criada: '%s' (ID: %s, professor: %s)", turma.Nome, turma.ID, professorID)
	return &turma, nil
}

// Update aplica somente os campos fornecidos e devolve a linha atualizada.
func (r *gormTurmaRepository) Update(ctx context.Context, id uuid.UUID, data models.TurmaUpdate) (*models.DBTurma, error) {
	turma, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := data.Changes()
	if len(updates) == 0 {
		appLogger.Debugf("Nenhuma alteração para turma %s.", id)
		return turma, nil
	}
	if err := r.db.WithContext(ctx).Model(turma).Updates(updates).Error; err != nil {
		appLogger.Errorf("Erro ao atualizar turma %s: %v", id, err)
		return nil, appErrors.NewBackendError("atualizando turma", err)
	}
	appLogger.Infof("Turma %s atualizada. Campos: %v", id, keysOf(updates))
	return r.GetByID(ctx, id)
}

func (r *gormTurmaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DBTurma{}, "id = ?", id)
	if result.Error != nil {
		appLogger.Errorf("Erro ao apagar turma %s: %v", id, result.Error)
		return appErrors.NewBackendError("apagando turma", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: turma %s não encontrada para exclusão", appErrors.ErrNotFound, id)
	}
	appLogger.Infof("Turma %s apagada.", id)
	return nil
}

func (r *gormTurmaRepository) CountAlunos(ctx context.Context, turmaID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.DBAluno{}).Where("turma_id = ?", turmaID).Count(&total).Error; err != nil {
		appLogger.Errorf("Erro ao contar alunos da turma %s: %v", turmaID, err)
		return 0, appErrors.NewBackendError("contando alunos da turma", err)
	}
	return total, nil
}

func (r *gormTurmaRepository) RecontarAlunos(ctx context.Context, turmaID uuid.UUID) error {
	err := r.db.WithContext(ctx).Exec(
		`UPDATE turmas SET alunos_count = (SELECT COUNT(*) FROM alunos WHERE alunos.turma_id = turmas.id) WHERE id = ?`,
		turmaID,
	).Error
	if err != nil {
		appLogger.Errorf("Erro ao recontar alunos da turma %s: %v", turmaID, err)
		return appErrors.NewBackendError("recontando alunos da turma", err)
	}
	return nil
}

// keysOf devolve as chaves do mapa de updates para log.
func keysOf(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
