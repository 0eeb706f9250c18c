package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
)

// EstatisticasAluno junta o progresso mensal e as médias por tipo de um aluno.
type EstatisticasAluno struct {
	AlunoID      uuid.UUID                      `json:"alunoId"`
	Progresso    []repositories.ProgressoMensal `json:"progresso"`
	MediaPorTipo []repositories.MediaPorTipo    `json:"mediaPorTipo"`
}

// EstatisticasService expõe as consultas agregadas apenas sobre registros visíveis ao chamador.
type EstatisticasService interface {
	ProgressoAluno(ctx context.Context, alunoID uuid.UUID) ([]repositories.ProgressoMensal, error)
	MediaAvaliacaoAluno(ctx context.Context, alunoID uuid.UUID) ([]repositories.MediaPorTipo, error)
	EstatisticasAluno(ctx context.Context, alunoID uuid.UUID) (*EstatisticasAluno, error)
	ObservacoesPeriodo(ctx context.Context, inicio, fim time.Time) ([]repositories.ObservacaoPeriodo, error)
	EstatisticasTurma(ctx context.Context, turmaID uuid.UUID) (*repositories.EstatisticasTurma, error)
}

type estatisticasServiceImpl struct {
	repo   repositories.EstatisticasRepository
	alunos AlunoService
	turmas TurmaService
	ac     *auth.AccessControl
}

func NewEstatisticasService(repo repositories.EstatisticasRepository, alunos AlunoService, turmas TurmaService, ac *auth.AccessControl) EstatisticasService {
	if repo == nil || alunos == nil || turmas == nil || ac == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewEstatisticasService")
	}
	return &estatisticasServiceImpl{repo: repo, alunos: alunos, turmas: turmas, ac: ac}
}

func (s *estatisticasServiceImpl) ProgressoAluno(ctx context.Context, alunoID uuid.UUID) ([]repositories.ProgressoMensal, error) {
	if _, err := s.alunos.Get(ctx, alunoID); err != nil {
		return nil, err
	}
	return s.repo.ProgressoAluno(ctx, alunoID)
}

func (s *estatisticasServiceImpl) MediaAvaliacaoAluno(ctx context.Context, alunoID uuid.UUID) ([]repositories.MediaPorTipo, error) {
	if _, err := s.alunos.Get(ctx, alunoID); err != nil {
		return nil, err
	}
	return s.repo.MediaAvaliacaoAluno(ctx, alunoID)
}

func (s *estatisticasServiceImpl) EstatisticasAluno(ctx context.Context, alunoID uuid.UUID) (*EstatisticasAluno, error) {
	progresso, err := s.ProgressoAluno(ctx, alunoID)
	if err != nil {
		return nil, err
	}
	medias, err := s.repo.MediaAvaliacaoAluno(ctx, alunoID)
	if err != nil {
		return nil, err
	}
	return &EstatisticasAluno{AlunoID: alunoID, Progresso: progresso, MediaPorTipo: medias}, nil
}

// ObservacoesPeriodo lista as observações do chamador com data_registro em [inicio, fim].
func (s *estatisticasServiceImpl) ObservacoesPeriodo(ctx context.Context, inicio, fim time.Time) ([]repositories.ObservacaoPeriodo, error) {
	if fim.Before(inicio) {
		return nil, appErrors.NewValidationError("A data final deve ser posterior à inicial.", map[string]string{"fim": "anterior ao início"})
	}
	caller, err := s.ac.ValidatePermissions(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ObservacoesPeriodo(ctx, caller.ID(), inicio.UTC(), fim.UTC())
}

func (s *estatisticasServiceImpl) EstatisticasTurma(ctx context.Context, turmaID uuid.UUID) (*repositories.EstatisticasTurma, error) {
	if _, err := s.turmas.Get(ctx, turmaID); err != nil {
		return nil, err
	}
	return s.repo.EstatisticasTurma(ctx, turmaID)
}
