package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
)

// RelatorioService é o acesso a relatórios com verificação de permissão.
// Toda escrita recalcula relatorios_count do aluno.
type RelatorioService interface {
	List(ctx context.Context, filtro repositories.RelatorioFiltro) ([]models.DBRelatorio, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DBRelatorio, error)
	Create(ctx context.Context, data models.RelatorioCreate, forProfessorID *uuid.UUID) (*models.DBRelatorio, error)
	Update(ctx context.Context, id uuid.UUID, data models.RelatorioUpdate) (*models.DBRelatorio, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteWithValidation(ctx context.Context, id uuid.UUID) (*DeleteResult, error)
}

type relatorioServiceImpl struct {
	repo     repositories.RelatorioRepository
	alunos   repositories.AlunoRepository
	profiles repositories.ProfileRepository
	ac       *auth.AccessControl
	audit    AuditLogService
}

// NewRelatorioService cria uma nova instância de RelatorioService.
func NewRelatorioService(
	repo repositories.RelatorioRepository,
	alunos repositories.AlunoRepository,
	profiles repositories.ProfileRepository,
	ac *auth.AccessControl,
	audit AuditLogService,
) RelatorioService {
	if repo == nil || alunos == nil || profiles == nil || ac == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewRelatorioService")
	}
	return &relatorioServiceImpl{repo: repo, alunos: alunos, profiles: profiles, ac: ac, audit: audit}
}

func (s *relatorioServiceImpl) List(ctx context.Context, filtro repositories.RelatorioFiltro) ([]models.DBRelatorio, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByProfessor(ctx, caller.ID(), filtro)
}

func (s *relatorioServiceImpl) Get(ctx context.Context, id uuid.UUID) (*models.DBRelatorio, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, caller, id)
}

func (s *relatorioServiceImpl) Create(ctx context.Context, data models.RelatorioCreate, forProfessorID *uuid.UUID) (*models.DBRelatorio, error) {
	if err := data.CleanAndValidate(); err != nil {
		appLogger.Warnf("Dados de relatório inválidos ('%s'): %v", data.Titulo, err)
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
	if err := checkAlunoDoDono(ctx, s.alunos, data.AlunoID, owner, "alunoId"); err != nil {
		return nil, err
	}

	relatorio, err := s.repo.Create(ctx, data, owner)
	if err != nil {
		return nil, err
	}
	if err := s.alunos.RecontarContadores(ctx, relatorio.AlunoID); err != nil {
		return nil, err
	}
	return relatorio, nil
}

func (s *relatorioServiceImpl) Update(ctx context.Context, id uuid.UUID, data models.RelatorioUpdate) (*models.DBRelatorio, error) {
	if err := data.CleanAndValidate(); err != nil {
		appLogger.Warnf("Atualização de relatório %s inválida: %v", id, err)
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

func (s *relatorioServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	_, relatorio, err := s.alvoExclusao(ctx, id)
	if err != nil {
		return err
	}
	return s.remover(ctx, relatorio)
}

func (s *relatorioServiceImpl) DeleteWithValidation(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	caller, relatorio, err := s.alvoExclusao(ctx, id)
	if err != nil {
		return nil, err
	}
	nome, err := ownerName(ctx, s.profiles, relatorio.ProfessorID)
	if err != nil {
		appLogger.Warnf("Relatório %s: nome do dono não foi lido: %v", id, err)
		nome = DonoDesconhecido
	}
	if err := s.remover(ctx, relatorio); err != nil {
		return nil, err
	}
	registrarAuditoria(ctx, s.audit, models.AuditLogEntry{
		Action:      "RELATORIO_DELETE",
		Description: fmt.Sprintf("Relatório '%s' (%s) excluído.", relatorio.Titulo, relatorio.Periodo),
		Severity:    "INFO",
		Metadata: models.JSONMetadata{
			"relatorio_id":  relatorio.ID.String(),
			"aluno_id":      relatorio.AlunoID.String(),
			"professor_id":  relatorio.ProfessorID.String(),
			"gerado_por_ia": relatorio.GeradoPorIA,
		},
	}, caller)
	return &DeleteResult{Success: true, OwnerName: nome}, nil
}

// alvoExclusao valida a permissão e devolve o registro visível ao chamador.
func (s *relatorioServiceImpl) alvoExclusao(ctx context.Context, id uuid.UUID) (*auth.Caller, *models.DBRelatorio, error) {
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, nil, err
	}
	relatorio, err := s.visible(ctx, caller, id)
	if err != nil {
		return nil, nil, err
	}
	return caller, relatorio, nil
}

func (s *relatorioServiceImpl) remover(ctx context.Context, relatorio *models.DBRelatorio) error {
	if err := s.repo.Delete(ctx, relatorio.ID); err != nil {
		return err
	}
	return s.alunos.RecontarContadores(ctx, relatorio.AlunoID)
}

func (s *relatorioServiceImpl) visible(ctx context.Context, caller *auth.Caller, id uuid.UUID) (*models.DBRelatorio, error) {
	relatorio, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(caller, relatorio.ProfessorID, "relatório", id); err != nil {
		return nil, err
	}
	return relatorio, nil
}
