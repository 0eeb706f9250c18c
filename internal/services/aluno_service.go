package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
)

// AlunoService é o acesso a alunos com verificação de permissão.
// Toda escrita que muda a composição de uma turma recalcula alunos_count.
type AlunoService interface {
	List(ctx context.Context) ([]models.DBAluno, error)
	ListByTurma(ctx context.Context, turmaID uuid.UUID) ([]models.DBAluno, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DBAluno, error)
	Create(ctx context.Context, data models.AlunoCreate, forProfessorID *uuid.UUID) (*models.DBAluno, error)
	Update(ctx context.Context, id uuid.UUID, data models.AlunoUpdate) (*models.DBAluno, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteWithValidation conta observações e relatórios antes de apagar o aluno.
	DeleteWithValidation(ctx context.Context, id uuid.UUID) (*DeleteResult, error)
}

type alunoServiceImpl struct {
	repo     repositories.AlunoRepository
	turmas   repositories.TurmaRepository
	profiles repositories.ProfileRepository
	ac       *auth.AccessControl
	audit    AuditLogService
	now      Clock
}

// NewAlunoService cria uma nova instância de AlunoService.
func NewAlunoService(
	repo repositories.AlunoRepository,
	turmas repositories.TurmaRepository,
	profiles repositories.ProfileRepository,
	ac *auth.AccessControl,
	audit AuditLogService,
) AlunoService {
	if repo == nil || turmas == nil || profiles == nil || ac == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewAlunoService")
	}
	return &alunoServiceImpl{repo: repo, turmas: turmas, profiles: profiles, ac: ac, audit: audit, now: utcNow}
}

func (s *alunoServiceImpl) List(ctx context.Context) ([]models.DBAluno, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByProfessor(ctx, caller.ID())
}

func (s *alunoServiceImpl) ListByTurma(ctx context.Context, turmaID uuid.UUID) ([]models.DBAluno, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	turma, err := s.turmas.GetByID(ctx, turmaID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(caller, turma.ProfessorID, "turma", turmaID); err != nil {
		return nil, err
	}
	return s.repo.ListByTurma(ctx, turmaID)
}

func (s *alunoServiceImpl) Get(ctx context.Context, id uuid.UUID) (*models.DBAluno, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, caller, id)
}

func (s *alunoServiceImpl) Create(ctx context.Context, data models.AlunoCreate, forProfessorID *uuid.UUID) (*models.DBAluno, error) {
	if err := data.CleanAndValidate(s.now()); err != nil {
		appLogger.Warnf("Dados de cadastro de aluno inválidos para '%s': %v", data.Nome, err)
		return nil, err
	}
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := caller.ResolveOwner(forProfessorID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTurmaDoDono(ctx, data.TurmaID, owner); err != nil {
		return nil, err
	}

	aluno, err := s.repo.Create(ctx, data, owner)
	if err != nil {
		return nil, err
	}
	if err := s.turmas.RecontarAlunos(ctx, aluno.TurmaID); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, aluno.ID)
}

// Update altera só os campos informados. Mudança de turma recalcula as duas turmas.
func (s *alunoServiceImpl) Update(ctx context.Context, id uuid.UUID, data models.AlunoUpdate) (*models.DBAluno, error) {
	if err := data.CleanAndValidate(s.now()); err != nil {
		appLogger.Warnf("Dados de atualização de aluno inválidos para ID %s: %v", id, err)
		return nil, err
	}
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	atual, err := s.visible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	moveu := data.TurmaID != nil && *data.TurmaID != atual.TurmaID
	if moveu {
		if err := s.checkTurmaDoDono(ctx, *data.TurmaID, atual.ProfessorID); err != nil {
			return nil, err
		}
	}

	aluno, err := s.repo.Update(ctx, id, data)
	if err != nil {
		return nil, err
	}
	if moveu {
		if err := s.turmas.RecontarAlunos(ctx, atual.TurmaID); err != nil {
			return nil, err
		}
		if err := s.turmas.RecontarAlunos(ctx, aluno.TurmaID); err != nil {
			return nil, err
		}
	}
	return aluno, nil
}

func (s *alunoServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return err
	}
	aluno, err := s.visible(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.turmas.RecontarAlunos(ctx, aluno.TurmaID)
}

func (s *alunoServiceImpl) DeleteWithValidation(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	aluno, err := s.visible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	nome, err := ownerName(ctx, s.profiles, aluno.ProfessorID)
	if err != nil {
		return nil, err
	}

	var counts RemovedCounts
	if counts.Observacoes, err = s.repo.CountObservacoes(ctx, id); err != nil {
		return nil, err
	}
	if counts.Relatorios, err = s.repo.CountRelatorios(ctx, id); err != nil {
		return nil, err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	if err := s.turmas.RecontarAlunos(ctx, aluno.TurmaID); err != nil {
		return nil, err
	}

	registrarAuditoria(ctx, s.audit, models.AuditLogEntry{
		Action:      "ALUNO_DELETE",
		Description: fmt.Sprintf("Aluno '%s' excluído com %d observações e %d relatórios.", aluno.Nome, counts.Observacoes, counts.Relatorios),
		Severity:    "WARNING",
		Metadata: models.JSONMetadata{
			"aluno_id":     aluno.ID.String(),
			"turma_id":     aluno.TurmaID.String(),
			"professor_id": aluno.ProfessorID.String(),
			"observacoes":  counts.Observacoes,
			"relatorios":   counts.Relatorios,
		},
	}, caller)

	return &DeleteResult{Success: true, OwnerName: nome, RemovedCounts: counts}, nil
}

func (s *alunoServiceImpl) visible(ctx context.Context, caller *auth.Caller, id uuid.UUID) (*models.DBAluno, error) {
	aluno, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(caller, aluno.ProfessorID, "aluno", id); err != nil {
		return nil, err
	}
	return aluno, nil
}

// checkTurmaDoDono exige que a turma exista e pertença ao professor dono do aluno.
func (s *alunoServiceImpl) checkTurmaDoDono(ctx context.Context, turmaID, owner uuid.UUID) error {
	turma, err := s.turmas.GetByID(ctx, turmaID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return appErrors.NewValidationError("Turma selecionada não existe.", map[string]string{"turmaId": "não encontrada"})
		}
		return err
	}
	if turma.ProfessorID != owner {
		return appErrors.NewValidationError("A turma selecionada pertence a outro professor.", map[string]string{"turmaId": "de outro professor"})
	}
	return nil
}
