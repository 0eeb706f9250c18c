package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
)

// TurmaService é o acesso a turmas com verificação de permissão.
type TurmaService interface {
	// List devolve somente as turmas do chamador, inclusive para admin.
	List(ctx context.Context) ([]models.DBTurma, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DBTurma, error)
	// Create grava a turma para forProfessorID (somente admin) ou para o próprio chamador.
	Create(ctx context.Context, data models.TurmaCreate, forProfessorID *uuid.UUID) (*models.DBTurma, error)
	Update(ctx context.Context, id uuid.UUID, data models.TurmaUpdate) (*models.DBTurma, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteWithValidation conta alunos, observações e relatórios antes de apagar a turma.
	DeleteWithValidation(ctx context.Context, id uuid.UUID) (*DeleteResult, error)
}

type turmaServiceImpl struct {
	repo     repositories.TurmaRepository
	alunos   repositories.AlunoRepository
	profiles repositories.ProfileRepository
	ac       *auth.AccessControl
	audit    AuditLogService
}

// NewTurmaService cria uma nova instância de TurmaService.
func NewTurmaService(
	repo repositories.TurmaRepository,
	alunos repositories.AlunoRepository,
	profiles repositories.ProfileRepository,
	ac *auth.AccessControl,
	audit AuditLogService,
) TurmaService {
	if repo == nil || alunos == nil || profiles == nil || ac == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewTurmaService")
	}
	return &turmaServiceImpl{repo: repo, alunos: alunos, profiles: profiles, ac: ac, audit: audit}
}

func (s *turmaServiceImpl) List(ctx context.Context) ([]models.DBTurma, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByProfessor(ctx, caller.ID())
}

func (s *turmaServiceImpl) Get(ctx context.Context, id uuid.UUID) (*models.DBTurma, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, caller, id)
}

func (s *turmaServiceImpl) Create(ctx context.Context, data models.TurmaCreate, forProfessorID *uuid.UUID) (*models.DBTurma, error) {
	if err := data.CleanAndValidate(); err != nil {
		appLogger.Warnf("Dados de criação de turma inválidos para '%s': %v", data.Nome, err)
		return nil, err
	}
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	if !auth.CanManageTurmas(caller.Profile) {
		return nil, fmt.Errorf("%w: perfil '%s' não gerencia turmas", appErrors.ErrPermissionDenied, caller.Profile.Tipo)
	}
	owner, err := caller.ResolveOwner(forProfessorID)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, data, owner)
}

// Update altera só os campos informados; campos vazios são ignorados.
func (s *turmaServiceImpl) Update(ctx context.Context, id uuid.UUID, data models.TurmaUpdate) (*models.DBTurma, error) {
	if err := data.CleanAndValidate(); err != nil {
		appLogger.Warnf("Dados de atualização de turma inválidos para ID %s: %v", id, err)
		return nil, err
	}
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, data)
}

func (s *turmaServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return err
	}
	if _, err := s.visible(ctx, caller, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *turmaServiceImpl) DeleteWithValidation(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	turma, err := s.visible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	nome, err := ownerName(ctx, s.profiles, turma.ProfessorID)
	if err != nil {
		return nil, err
	}

	var counts RemovedCounts
	if counts.Alunos, err = s.repo.CountAlunos(ctx, id); err != nil {
		return nil, err
	}
	alunos, err := s.alunos.ListByTurma(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, aluno := range alunos {
		nObs, err := s.alunos.CountObservacoes(ctx, aluno.ID)
		if err != nil {
			return nil, err
		}
		nRel, err := s.alunos.CountRelatorios(ctx, aluno.ID)
		if err != nil {
			return nil, err
		}
		counts.Observacoes += nObs
		counts.Relatorios += nRel
	}

	// Uma única exclusão da turma: o banco apaga alunos, observações e relatórios em cascata.
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	registrarAuditoria(ctx, s.audit, models.AuditLogEntry{
		Action:      "TURMA_DELETE",
		Description: fmt.Sprintf("Turma '%s' excluída com %d alunos, %d observações e %d relatórios.", turma.Nome, counts.Alunos, counts.Observacoes, counts.Relatorios),
		Severity:    "WARNING",
		Metadata: models.JSONMetadata{
			"turma_id":     turma.ID.String(),
			"professor_id": turma.ProfessorID.String(),
			"alunos":       counts.Alunos,
			"observacoes":  counts.Observacoes,
			"relatorios":   counts.Relatorios,
		},
	}, caller)

	return &DeleteResult{Success: true, OwnerName: nome, RemovedCounts: counts}, nil
}

func (s *turmaServiceImpl) visible(ctx context.Context, caller *auth.Caller, id uuid.UUID) (*models.DBTurma, error) {
	turma, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(caller, turma.ProfessorID, "turma", id); err != nil {
		return nil, err
	}
	return turma, nil
}
