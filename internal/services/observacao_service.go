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

// ObservacaoService é o acesso a observações com verificação de permissão.
// Toda escrita recalcula observacoes_count do aluno.
type ObservacaoService interface {
	List(ctx context.Context, filtro repositories.ObservacaoFiltro) ([]models.DBObservacao, error)
	ListByAluno(ctx context.Context, alunoID uuid.UUID) ([]models.DBObservacao, error)
	// Search busca no texto da observação, ignorando acentos.
	Search(ctx context.Context, texto string) ([]models.DBObservacao, error)
	Get(ctx context.Context, id uint64) (*models.DBObservacao, error)
	Create(ctx context.Context, data models.ObservacaoCreate, forProfessorID *uuid.UUID) (*models.DBObservacao, error)
	Update(ctx context.Context, id uint64, data models.ObservacaoUpdate) (*models.DBObservacao, error)
	Delete(ctx context.Context, id uint64) error
	DeleteWithValidation(ctx context.Context, id uint64) (*DeleteResult, error)
}

type observacaoServiceImpl struct {
	repo     repositories.ObservacaoRepository
	alunos   repositories.AlunoRepository
	profiles repositories.ProfileRepository
	ac       *auth.AccessControl
	audit    AuditLogService
}

// NewObservacaoService cria uma nova instância de ObservacaoService.
func NewObservacaoService(
	repo repositories.ObservacaoRepository,
	alunos repositories.AlunoRepository,
	profiles repositories.ProfileRepository,
	ac *auth.AccessControl,
	audit AuditLogService,
) ObservacaoService {
	if repo == nil || alunos == nil || profiles == nil || ac == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewObservacaoService")
	}
	return &observacaoServiceImpl{repo: repo, alunos: alunos, profiles: profiles, ac: ac, audit: audit}
}

func (s *observacaoServiceImpl) List(ctx context.Context, filtro repositories.ObservacaoFiltro) ([]models.DBObservacao, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByProfessor(ctx, caller.ID(), filtro)
}

func (s *observacaoServiceImpl) ListByAluno(ctx context.Context, alunoID uuid.UUID) ([]models.DBObservacao, error) {
	return s.List(ctx, repositories.ObservacaoFiltro{AlunoID: &alunoID})
}

func (s *observacaoServiceImpl) Search(ctx context.Context, texto string) ([]models.DBObservacao, error) {
	return s.List(ctx, repositories.ObservacaoFiltro{Texto: texto})
}

func (s *observacaoServiceImpl) Get(ctx context.Context, id uint64) (*models.DBObservacao, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, caller, id)
}

// Create valida a nota (1 a 5) e o texto antes de qualquer acesso ao backend.
func (s *observacaoServiceImpl) Create(ctx context.Context, data models.ObservacaoCreate, forProfessorID *uuid.UUID) (*models.DBObservacao, error) {
	if err := data.CleanAndValidate(); err != nil {
		appLogger.Warnf("Observação inválida para aluno %s: %v", data.IDAluno, err)
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
	if err := s.checkAlunoDoDono(ctx, data.IDAluno, owner); err != nil {
		return nil, err
	}

	obs, err := s.repo.Create(ctx, data, owner)
	if err != nil {
		return nil, err
	}
	if err := s.alunos.RecontarContadores(ctx, obs.IDAluno); err != nil {
		return nil, err
	}
	return obs, nil
}

func (s *observacaoServiceImpl) Update(ctx context.Context, id uint64, data models.ObservacaoUpdate) (*models.DBObservacao, error) {
	if err := data.CleanAndValidate(); err != nil {
		appLogger.Warnf("Atualização de observação %d inválida: %v", id, err)
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

func (s *observacaoServiceImpl) Delete(ctx context.Context, id uint64) error {
	_, obs, err := s.alvoExclusao(ctx, id)
	if err != nil {
		return err
	}
	return s.remover(ctx, obs)
}

func (s *observacaoServiceImpl) DeleteWithValidation(ctx context.Context, id uint64) (*DeleteResult, error) {
	caller, obs, err := s.alvoExclusao(ctx, id)
	if err != nil {
		return nil, err
	}
	nome, err := ownerName(ctx, s.profiles, obs.ProfessorID)
	if err != nil {
		appLogger.Warnf("Observação %d: nome do dono não foi lido: %v", id, err)
		nome = DonoDesconhecido
	}
	if err := s.remover(ctx, obs); err != nil {
		return nil, err
	}
	registrarAuditoria(ctx, s.audit, models.AuditLogEntry{
		Action:      "OBSERVACAO_DELETE",
		Description: fmt.Sprintf("Observação %d (%s) excluída.", obs.ID, models.LabelTipoObs(obs.TipoObs)),
		Severity:    "INFO",
		Metadata: models.JSONMetadata{
			"observacao_id": obs.ID,
			"aluno_id":      obs.IDAluno.String(),
			"professor_id":  obs.ProfessorID.String(),
		},
	}, caller)
	return &DeleteResult{Success: true, OwnerName: nome}, nil
}

// alvoExclusao valida a permissão e devolve o registro visível ao chamador.
func (s *observacaoServiceImpl) alvoExclusao(ctx context.Context, id uint64) (*auth.Caller, *models.DBObservacao, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, nil, err
	}
	obs, err := s.visible(ctx, caller, id)
	if err != nil {
		return nil, nil, err
	}
	return caller, obs, nil
}

func (s *observacaoServiceImpl) remover(ctx context.Context, obs *models.DBObservacao) error {
	if err := s.repo.Delete(ctx, obs.ID); err != nil {
		return err
	}
	return s.alunos.RecontarContadores(ctx, obs.IDAluno)
}

func (s *observacaoServiceImpl) visible(ctx context.Context, caller *auth.Caller, id uint64) (*models.DBObservacao, error) {
	obs, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(caller, obs.ProfessorID, "observação", id); err != nil {
		return nil, err
	}
	return obs, nil
}

func (s *observacaoServiceImpl) checkAlunoDoDono(ctx context.Context, alunoID, owner uuid.UUID) error {
	return checkAlunoDoDono(ctx, s.alunos, alunoID, owner, "idAluno")
}

// checkAlunoDoDono exige que o aluno exista e pertença ao professor dono da escrita.
func checkAlunoDoDono(ctx context.Context, alunos repositories.AlunoRepository, alunoID, owner uuid.UUID, campo string) error {
	aluno, err := alunos.GetByID(ctx, alunoID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return appErrors.NewValidationError("Aluno selecionado não existe.", map[string]string{campo: "não encontrado"})
		}
		return err
	}
	if aluno.ProfessorID != owner {
		return appErrors.NewValidationError("O aluno selecionado pertence a outro professor.", map[string]string{campo: "de outro professor"})
	}
	return nil
}
