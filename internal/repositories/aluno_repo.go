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

// AlunoRepository define as operações de acesso à tabela alunos.
// As leituras trazem o join raso com a turma (Turma preenchida).
type AlunoRepository interface {
	ListByProfessor(ctx context.Context, professorID uuid.UUID) ([]models.DBAluno, error)
	ListByTurma(ctx context.Context, turmaID uuid.UUID) ([]models.DBAluno, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.DBAluno, error)
	Create(ctx context.Context, data models.AlunoCreate, professorID uuid.UUID) (*models.DBAluno, error)
	Update(ctx context.Context, id uuid.UUID, data models.AlunoUpdate) (*models.DBAluno, error)
	// Delete apaga o aluno; o banco apaga em cascata observações e relatórios.
	Delete(ctx context.Context, id uuid.UUID) error
	CountObservacoes(ctx context.Context, alunoID uuid.UUID) (int64, error)
	CountRelatorios(ctx context.Context, alunoID uuid.UUID) (int64, error)
	// RecontarContadores recalcula relatorios_count e observacoes_count do aluno.
	RecontarContadores(ctx context.Context, alunoID uuid.UUID) error
}

type gormAlunoRepository struct {
	db *gorm.DB
}

// NewGormAlunoRepository cria uma nova instância de gormAlunoRepository.
func NewGormAlunoRepository(db *gorm.DB) AlunoRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormAlunoRepository")
	}
	return &gormAlunoRepository{db: db}
}

// ListByProfessor lista os alunos de um professor em ordem alfabética.
func (r *gormAlunoRepository) ListByProfessor(ctx context.Context, professorID uuid.UUID) ([]models.DBAluno, error) {
	var alunos []models.DBAluno
	err := r.db.WithContext(ctx).
		Preload("Turma").
		Where("professor_id = ?", professorID).
		Order("nome ASC").
		Find(&alunos).Error
	if err != nil {
		appLogger.Errorf("Erro ao listar alunos do professor %s: %v", professorID, err)
		return nil, appErrors.NewBackendError("listando alunos", err)
	}
	return alunos, nil
}

func (r *gormAlunoRepository) ListByTurma(ctx context.Context, turmaID uuid.UUID) ([]models.DBAluno, error) {
	var alunos []models.DBAluno
	err := r.db.WithContext(ctx).
		Preload("Turma").
		Where("turma_id = ?", turmaID).
		Order("nome ASC").
		Find(&alunos).Error
	if err != nil {
		appLogger.Errorf("Erro ao listar alunos da turma %s: %v", turmaID, err)
		return nil, appErrors.NewBackendError("listando alunos da turma", err)
	}
	return alunos, nil
}

func (r *gormAlunoRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DBAluno, error) {
	var aluno models.DBAluno
	if err := r.db.WithContext(ctx).Preload("Turma").First(&aluno, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: aluno %s não encontrado", appErrors.ErrNotFound, id)
		}
		appLogger.Errorf("Erro ao buscar aluno %s: %v", id, err)
		return nil, appErrors.NewBackendError("buscando aluno", err)
	}
	return &aluno, nil
}

// Create insere o aluno. Espera dados já validados (CleanAndValidate) pelo serviço.
func (r *gormAlunoRepository) Create(ctx context.Context, data models.AlunoCreate, professorID uuid.UUID) (*models.DBAluno, error) {
	aluno := models.DBAluno{
		Nome:           data.Nome,
		TurmaID:        data.TurmaID,
		DataNascimento: data.Nascimento(),
		Responsavel:    data.Responsavel,
		Telefone:       data.Telefone,
		Observacoes:    data.Observacoes,
		ProfessorID:    professorID,
	}
	if err := r.db.WithContext(ctx).Omit("Turma").Create(&aluno).Error; err != nil {
		appLogger.Errorf("Erro ao criar aluno '%s': %v", data.Nome, err)
		return nil, appErrors.NewBackendError("criando aluno", err)
	}
	appLogger.Infof("Aluno criado: '%s' (ID: %s, turma: %s)", aluno.Nome, aluno.ID, aluno.TurmaID)
	return r.GetByID(ctx, aluno.ID)
}

func (r *gormAlunoRepository) Update(ctx context.Context, id uuid.UUID, data models.AlunoUpdate) (*models.DBAluno, error) {
	aluno, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := data.Changes()
	if len(updates) == 0 {
		appLogger.Debugf("Nenhuma alteração para aluno %s.", id)
		return aluno, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.DBAluno{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		appLogger.Errorf("Erro ao atualizar aluno %s: %v", id, err)
		return nil, appErrors.NewBackendError("atualizando aluno", err)
	}
	appLogger.Infof("Aluno %s atualizado. Campos: %v", id, keysOf(updates))
	return r.GetByID(ctx, id)
}

func (r *gormAlunoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DBAluno{}, "id = ?", id)
	if result.Error != nil {
		appLogger.Errorf("Erro ao apagar aluno %s: %v", id, result.Error)
		return appErrors.NewBackendError("apagando aluno", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: aluno %s não encontrado para exclusão", appErrors.ErrNotFound, id)
	}
	appLogger.Infof("Aluno %s apagado.", id)
	return nil
}

func (r *gormAlunoRepository) CountObservacoes(ctx context.Context, alunoID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.DBObservacao{}).Where("id_aluno = ?", alunoID).Count(&total).Error; err != nil {
		appLogger.Errorf("Erro ao contar observações do aluno %s: %v", alunoID, err)
		return 0, appErrors.NewBackendError("contando observações do aluno", err)
	}
	return total, nil
}

func (r *gormAlunoRepository) CountRelatorios(ctx context.Context, alunoID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.DBRelatorio{}).Where("aluno_id = ?", alunoID).Count(&total).Error; err != nil {
		appLogger.Errorf("Erro ao contar relatórios do aluno %s: %v", alunoID, err)
		return 0, appErrors.NewBackendError("contando relatórios do aluno", err)
	}
	return total, nil
}

func (r *gormAlunoRepository) RecontarContadores(ctx context.Context, alunoID uuid.UUID) error {
	err := r.db.WithContext(ctx).Exec(
		`UPDATE alunos SET
			relatorios_count = (SELECT COUNT(*) FROM relatorios WHERE relatorios.aluno_id = alunos.id),
			observacoes_count = (SELECT COUNT(*) FROM observacoes_aluno WHERE observacoes_aluno.id_aluno = alunos.id)
		WHERE id = ?`,
		alunoID,
	).Error
	if err != nil {
		appLogger.Errorf("Erro ao recontar contadores do aluno %s: %v", alunoID, err)
		return appErrors.NewBackendError("recontando contadores do aluno", err)
	}
	return nil
}
