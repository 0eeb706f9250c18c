// Package store guarda as coleções carregadas para a sessão (turmas, alunos, relatórios).
//
// As coleções só mudam por Load, Refresh* ou On*Change; leituras devolvem cópias.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/services"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/transform"
)

// Snapshot é o estado completo num instante.
type Snapshot struct {
	Turmas     []transform.Turma     `json:"turmas"`
	Alunos     []transform.Aluno     `json:"alunos"`
	Relatorios []transform.Relatorio `json:"relatorios"`
	Loading    bool                  `json:"loading"`
}

// Resumo alimenta o painel inicial.
type Resumo struct {
	TotalTurmas          int      `json:"totalTurmas"`
	NomesTurmas          []string `json:"nomesTurmas"`
	TotalAlunos          int      `json:"totalAlunos"`
	TotalRelatorios      int      `json:"totalRelatorios"`
	RelatoriosConcluidos int      `json:"relatoriosConcluidos"`
	RelatoriosIA         int      `json:"relatoriosIA"`
}

// AppStore é o dono das coleções em memória. Seguro para uso concorrente.
type AppStore struct {
	turmasSvc     services.TurmaService
	alunosSvc     services.AlunoService
	relatoriosSvc services.RelatorioService
	now           func() time.Time

	mu         sync.RWMutex
	turmas     []transform.Turma
	alunos     []transform.Aluno
	relatorios []transform.Relatorio
	loading    bool
}

// New cria o store em estado de carregamento; chame Load em seguida.
func New(turmas services.TurmaService, alunos services.AlunoService, relatorios services.RelatorioService) *AppStore {
	if turmas == nil || alunos == nil || relatorios == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para store.New")
	}
	return &AppStore{
		turmasSvc:     turmas,
		alunosSvc:     alunos,
		relatoriosSvc: relatorios,
		now:           func() time.Time { return time.Now().UTC() },
		loading:       true,
	}
}

// Load faz a carga coordenada: turmas, depois alunos (que precisam das turmas),
// depois relatórios (que precisam dos alunos). Em caso de falha as coleções ficam vazias.
func (s *AppStore) Load(ctx context.Context) error {
	turmas, alunos, err := s.fetchTurmasAlunos(ctx)
	if err != nil {
		s.fail("carga inicial", err)
		return err
	}
	rows, err := s.relatoriosSvc.List(ctx, repositories.RelatorioFiltro{})
	if err != nil {
		s.fail("carga de relatórios", err)
		return err
	}
	relatorios := transform.Relatorios(rows, transform.IndexAlunos(alunos))

	s.mu.Lock()
	s.turmas, s.alunos, s.relatorios = turmas, alunos, relatorios
	s.loading = false
	s.mu.Unlock()
	appLogger.Debugf("Store carregado: %d turmas, %d alunos, %d relatórios", len(turmas), len(alunos), len(relatorios))
	return nil
}

// RefreshAlunos recarrega turmas e alunos (não relatórios) para refletir os contadores do banco.
func (s *AppStore) RefreshAlunos(ctx context.Context) error {
	turmas, alunos, err := s.fetchTurmasAlunos(ctx)
	if err != nil {
		appLogger.Errorf("Erro ao recarregar alunos: %v", err)
		return err
	}
	s.mu.Lock()
	s.turmas, s.alunos = turmas, alunos
	s.mu.Unlock()
	return nil
}

// RefreshRelatorios recarrega os relatórios usando os alunos já carregados.
func (s *AppStore) RefreshRelatorios(ctx context.Context) error {
	rows, err := s.relatoriosSvc.List(ctx, repositories.RelatorioFiltro{})
	if err != nil {
		appLogger.Errorf("Erro ao recarregar relatórios: %v", err)
		return err
	}
	s.mu.Lock()
	s.relatorios = transform.Relatorios(rows, transform.IndexAlunos(s.alunos))
	s.mu.Unlock()
	return nil
}

// OnTurmasChange substitui as turmas por uma cópia da coleção dada.
func (s *AppStore) OnTurmasChange(turmas []transform.Turma) {
	s.mu.Lock()
	s.turmas = append([]transform.Turma(nil), turmas...)
	s.mu.Unlock()
}

// OnAlunosChange substitui os alunos por uma cópia da coleção dada.
func (s *AppStore) OnAlunosChange(alunos []transform.Aluno) {
	s.mu.Lock()
	s.alunos = append([]transform.Aluno(nil), alunos...)
	s.mu.Unlock()
}

// OnRelatoriosChange substitui os relatórios por uma cópia da coleção dada.
func (s *AppStore) OnRelatoriosChange(relatorios []transform.Relatorio) {
	s.mu.Lock()
	s.relatorios = append([]transform.Relatorio(nil), relatorios...)
	s.mu.Unlock()
}

// Loading é verdadeiro até a primeira carga terminar.
func (s *AppStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Turmas devolve uma cópia das turmas carregadas.
func (s *AppStore) Turmas() []transform.Turma {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]transform.Turma{}, s.turmas...)
}

// Alunos devolve uma cópia dos alunos carregados.
func (s *AppStore) Alunos() []transform.Aluno {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]transform.Aluno{}, s.alunos...)
}

// Relatorios devolve uma cópia dos relatórios carregados.
func (s *AppStore) Relatorios() []transform.Relatorio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]transform.Relatorio{}, s.relatorios...)
}

// AlunoByID procura nos alunos carregados.
func (s *AppStore) AlunoByID(id uuid.UUID) (transform.Aluno, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alunos {
		if a.ID == id {
			return a, true
		}
	}
	return transform.Aluno{}, false
}

// Snapshot devolve cópias de todas as coleções e o flag de carregamento.
func (s *AppStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Turmas:     append([]transform.Turma{}, s.turmas...),
		Alunos:     append([]transform.Aluno{}, s.alunos...),
		Relatorios: append([]transform.Relatorio{}, s.relatorios...),
		Loading:    s.loading,
	}
}

// Resumo calcula os totais do painel a partir das coleções carregadas.
func (s *AppStore) Resumo() Resumo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := Resumo{
		TotalTurmas:     len(s.turmas),
		NomesTurmas:     make([]string, 0, len(s.turmas)),
		TotalAlunos:     len(s.alunos),
		TotalRelatorios: len(s.relatorios),
	}
	for _, t := range s.turmas {
		r.NomesTurmas = append(r.NomesTurmas, t.Nome)
	}
	for _, rel := range s.relatorios {
		if rel.Status == models.StatusConcluido {
			r.RelatoriosConcluidos++
		}
		if rel.GeradoPorIA {
			r.RelatoriosIA++
		}
	}
	return r
}

func (s *AppStore) fetchTurmasAlunos(ctx context.Context) ([]transform.Turma, []transform.Aluno, error) {
	turmaRows, err := s.turmasSvc.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	alunoRows, err := s.alunosSvc.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	turmas := transform.Turmas(turmaRows)
	alunos := transform.Alunos(alunoRows, transform.IndexTurmas(turmas), s.now())
	return turmas, alunos, nil
}

func (s *AppStore) fail(etapa string, err error) {
	appLogger.Errorf("Erro na %s do store: %v", etapa, err)
	s.mu.Lock()
	s.turmas = []transform.Turma{}
	s.alunos = []transform.Aluno{}
	s.relatorios = []transform.Relatorio{}
	s.loading = false
	s.mu.Unlock()
}
