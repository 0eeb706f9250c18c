package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
)

// testEnv monta a pilha completa sobre um SQLite em memória, com três perfis:
// dois professores e um administrador.
type testEnv struct {
	db          *gorm.DB
	ac          *auth.AccessControl
	profiles    repositories.ProfileRepository
	audit       AuditLogService
	turmas      TurmaService
	alunos      AlunoService
	observacoes ObservacaoService
	relatorios  RelatorioService
	estatistica EstatisticasService

	prof, outro, admin uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	db, err := data.InitializeDB(&appErrors.Config{DBEngine: "sqlite_puro", DBName: data.MemoryDBName})
	require.NoError(t, err)
	t.Cleanup(func() { _ = data.CloseDB(db) })

	profiles := repositories.NewGormProfileRepository(db)
	turmaRepo := repositories.NewGormTurmaRepository(db)
	alunoRepo := repositories.NewGormAlunoRepository(db)
	ac := auth.NewAccessControl(auth.ContextSessionSource{}, profiles)
	audit := NewAuditLogService(repositories.NewGormAuditLogRepository(db), ac)

	e := &testEnv{
		db:          db,
		ac:          ac,
		profiles:    profiles,
		audit:       audit,
		turmas:      NewTurmaService(turmaRepo, alunoRepo, profiles, ac, audit),
		alunos:      NewAlunoService(alunoRepo, turmaRepo, profiles, ac, audit),
		observacoes: NewObservacaoService(repositories.NewGormObservacaoRepository(db), alunoRepo, profiles, ac, audit),
		relatorios:  NewRelatorioService(repositories.NewGormRelatorioRepository(db), alunoRepo, profiles, ac, audit),
		prof:        uuid.New(),
		outro:       uuid.New(),
		admin:       uuid.New(),
	}
	e.estatistica = NewEstatisticasService(repositories.NewSqlxEstatisticasRepository(db), e.alunos, e.turmas, ac)

	ctx := context.Background()
	require.NoError(t, profiles.Create(ctx, &models.DBProfile{ID: e.prof, Nome: "Carla Mendes", Tipo: models.TipoProfessor}))
	require.NoError(t, profiles.Create(ctx, &models.DBProfile{ID: e.outro, Nome: "Bruno Alves", Tipo: models.TipoProfessor}))
	require.NoError(t, profiles.Create(ctx, &models.DBProfile{ID: e.admin, Nome: "Diretora Ana", Tipo: models.TipoAdmin}))
	return e
}

func ctxDe(id uuid.UUID) context.Context {
	return auth.WithSession(context.Background(), &auth.Session{AccessToken: "tok-" + id.String(), User: auth.User{ID: id}})
}

func (e *testEnv) novaTurma(t *testing.T, dono uuid.UUID, nome string) *models.DBTurma {
	t.Helper()
	turma, err := e.turmas.Create(ctxDe(dono), models.TurmaCreate{Nome: nome, FaixaEtaria: "3-4 anos"}, nil)
	require.NoError(t, err)
	return turma
}

func (e *testEnv) novoAluno(t *testing.T, dono uuid.UUID, turmaID uuid.UUID, nome string) *models.DBAluno {
	t.Helper()
	aluno, err := e.alunos.Create(ctxDe(dono), models.AlunoCreate{
		Nome:           nome,
		TurmaID:        turmaID,
		DataNascimento: "2020-08-15",
		Responsavel:    "Paula Reis",
	}, nil)
	require.NoError(t, err)
	return aluno
}

func (e *testEnv) novaObservacao(t *testing.T, dono uuid.UUID, alunoID uuid.UUID, texto string) *models.DBObservacao {
	t.Helper()
	obs, err := e.observacoes.Create(ctxDe(dono), models.ObservacaoCreate{IDAluno: alunoID, RangeAvaliacao: 4, Obs: texto}, nil)
	require.NoError(t, err)
	return obs
}

func (e *testEnv) novoRelatorio(t *testing.T, dono uuid.UUID, alunoID uuid.UUID, titulo string) *models.DBRelatorio {
	t.Helper()
	rel, err := e.relatorios.Create(ctxDe(dono), models.RelatorioCreate{
		AlunoID:  alunoID,
		Titulo:   titulo,
		Periodo:  "1º bimestre",
		Conteudo: "A criança participou das atividades.",
	}, nil)
	require.NoError(t, err)
	return rel
}

func TestTurmaService_IsolamentoEntreProfessores(t *testing.T) {
	e := newTestEnv(t)
	turma := e.novaTurma(t, e.prof, "Maternal II")

	minhas, err := e.turmas.List(ctxDe(e.prof))
	require.NoError(t, err)
	require.Len(t, minhas, 1)

	deOutro, err := e.turmas.List(ctxDe(e.outro))
	require.NoError(t, err)
	assert.Empty(t, deOutro)

	_, err = e.turmas.Get(ctxDe(e.outro), turma.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	nome := "Invadida"
	_, err = e.turmas.Update(ctxDe(e.outro), turma.ID, models.TurmaUpdate{Nome: &nome})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.ErrorIs(t, e.turmas.Delete(ctxDe(e.outro), turma.ID), appErrors.ErrNotFound)

	atual, err := e.turmas.Get(ctxDe(e.prof), turma.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maternal II", atual.Nome)
}

func TestTurmaService_DonoDaEscrita(t *testing.T) {
	e := newTestEnv(t)
	dados := models.TurmaCreate{Nome: "Jardim I", FaixaEtaria: "4-5 anos"}

	_, err := e.turmas.Create(ctxDe(e.prof), dados, &e.outro)
	assert.ErrorIs(t, err, appErrors.ErrCrossTenantWrite)
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)
	for _, id := range []uuid.UUID{e.prof, e.outro} {
		lista, err := e.turmas.List(ctxDe(id))
		require.NoError(t, err)
		assert.Empty(t, lista, "escrita recusada não grava nada")
	}

	delegada, err := e.turmas.Create(ctxDe(e.admin), dados, &e.prof)
	require.NoError(t, err)
	assert.Equal(t, e.prof, delegada.ProfessorID)

	t.Run("listagem do admin só traz as próprias turmas", func(t *testing.T) {
		lista, err := e.turmas.List(ctxDe(e.admin))
		require.NoError(t, err)
		assert.Empty(t, lista)
	})
	t.Run("admin lê e altera turma de qualquer professor", func(t *testing.T) {
		_, err := e.turmas.Get(ctxDe(e.admin), delegada.ID)
		require.NoError(t, err)
		cor := "bg-gradient-success"
		atualizada, err := e.turmas.Update(ctxDe(e.admin), delegada.ID, models.TurmaUpdate{Cor: &cor})
		require.NoError(t, err)
		assert.Equal(t, e.prof, atualizada.ProfessorID)
	})
}

func TestServicos_ValidacaoAntesDePermissao(t *testing.T) {
	e := newTestEnv(t)
	semSessao := context.Background()

	_, err := e.turmas.Create(semSessao, models.TurmaCreate{Nome: "  ", FaixaEtaria: "2 anos"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = e.turmas.Create(semSessao, models.TurmaCreate{Nome: "Berçário", FaixaEtaria: "1 ano"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrNotAuthenticated)

	_, err = e.observacoes.Create(semSessao, models.ObservacaoCreate{IDAluno: uuid.New(), RangeAvaliacao: 9, Obs: "texto"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = e.turmas.List(semSessao)
	assert.ErrorIs(t, err, appErrors.ErrNotAuthenticated)

	_, err = e.turmas.List(ctxDe(uuid.New()))
	assert.ErrorIs(t, err, appErrors.ErrProfileNotFound)
}

func TestAlunoService_ContadoresETrocaDeTurma(t *testing.T) {
	e := newTestEnv(t)
	ctx := ctxDe(e.prof)
	turmaA := e.novaTurma(t, e.prof, "Turma A")
	turmaB := e.novaTurma(t, e.prof, "Turma B")

	aluno := e.novoAluno(t, e.prof, turmaA.ID, "lia martins")
	assert.Equal(t, "Lia Martins", aluno.Nome)

	a, err := e.turmas.Get(ctx, turmaA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.AlunosCount)

	_, err = e.alunos.Update(ctx, aluno.ID, models.AlunoUpdate{TurmaID: &turmaB.ID})
	require.NoError(t, err)

	a, err = e.turmas.Get(ctx, turmaA.ID)
	require.NoError(t, err)
	b, err := e.turmas.Get(ctx, turmaB.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, a.AlunosCount)
	assert.Equal(t, 1, b.AlunosCount)

	porTurma, err := e.alunos.ListByTurma(ctx, turmaB.ID)
	require.NoError(t, err)
	require.Len(t, porTurma, 1)

	require.NoError(t, e.alunos.Delete(ctx, aluno.ID))
	b, err = e.turmas.Get(ctx, turmaB.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, b.AlunosCount)
}

func TestAlunoService_TurmaDeveSerDoDono(t *testing.T) {
	e := newTestEnv(t)
	turmaOutro := e.novaTurma(t, e.outro, "Turma do Bruno")
	dados := models.AlunoCreate{Nome: "Rui Lopes", DataNascimento: "2021-01-01", Responsavel: "Sara Lopes"}

	dados.TurmaID = turmaOutro.ID
	_, err := e.alunos.Create(ctxDe(e.prof), dados, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	dados.TurmaID = uuid.New()
	_, err = e.alunos.Create(ctxDe(e.prof), dados, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	dados.TurmaID = turmaOutro.ID
	aluno, err := e.alunos.Create(ctxDe(e.admin), dados, &e.outro)
	require.NoError(t, err)
	assert.Equal(t, e.outro, aluno.ProfessorID)

	_, err = e.alunos.ListByTurma(ctxDe(e.prof), turmaOutro.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = e.alunos.Create(ctxDe(e.prof), models.AlunoCreate{
		Nome: "Rui Lopes", TurmaID: turmaOutro.ID, DataNascimento: "2999-01-01", Responsavel: "Sara Lopes",
	}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation, "nascimento no futuro")
}

func TestObservacaoService(t *testing.T) {
	e := newTestEnv(t)
	ctx := ctxDe(e.prof)
	turma := e.novaTurma(t, e.prof, "Maternal I")
	aluno := e.novoAluno(t, e.prof, turma.ID, "Nina Prado")

	for _, nota := range []int{0, 6} {
		_, err := e.observacoes.Create(ctx, models.ObservacaoCreate{IDAluno: aluno.ID, RangeAvaliacao: nota, Obs: "ok"}, nil)
		assert.ErrorIs(t, err, appErrors.ErrValidation, "nota %d", nota)
	}

	obs := e.novaObservacao(t, e.prof, aluno.ID, "Participou da roda de conversa e da alimentação")
	assert.Equal(t, models.TipoObsPadrao, obs.TipoObs)
	e.novaObservacao(t, e.prof, aluno.ID, "Dormiu bem")

	atual, err := e.alunos.Get(ctx, aluno.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, atual.ObservacoesCount)

	encontradas, err := e.observacoes.Search(ctx, "ALIMENTACAO roda")
	require.NoError(t, err)
	require.Len(t, encontradas, 1)
	assert.Equal(t, obs.ID, encontradas[0].ID)

	doAluno, err := e.observacoes.ListByAluno(ctx, aluno.ID)
	require.NoError(t, err)
	assert.Len(t, doAluno, 2)

	_, err = e.observacoes.Create(ctxDe(e.outro), models.ObservacaoCreate{IDAluno: aluno.ID, RangeAvaliacao: 3, Obs: "intrusa"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = e.observacoes.Get(ctxDe(e.outro), obs.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	require.NoError(t, e.observacoes.Delete(ctx, obs.ID))
	atual, err = e.alunos.Get(ctx, aluno.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, atual.ObservacoesCount)
}

func TestRelatorioService(t *testing.T) {
	e := newTestEnv(t)
	ctx := ctxDe(e.prof)
	turmaA := e.novaTurma(t, e.prof, "Turma A")
	turmaB := e.novaTurma(t, e.prof, "Turma B")
	alunoA := e.novoAluno(t, e.prof, turmaA.ID, "Otto Silva")
	alunoB := e.novoAluno(t, e.prof, turmaB.ID, "Pia Silva")

	rel := e.novoRelatorio(t, e.prof, alunoA.ID, "Relatório do semestre")
	assert.Equal(t, models.StatusRascunho, rel.Status)
	e.novoRelatorio(t, e.prof, alunoB.ID, "Adaptação")

	daTurma, err := e.relatorios.List(ctx, repositories.RelatorioFiltro{TurmaID: &turmaA.ID})
	require.NoError(t, err)
	require.Len(t, daTurma, 1)
	assert.Equal(t, rel.ID, daTurma[0].ID)

	concluido := models.StatusConcluido
	atualizado, err := e.relatorios.Update(ctx, rel.ID, models.RelatorioUpdate{Status: &concluido})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConcluido, atualizado.Status)

	invalido := "publicado"
	_, err = e.relatorios.Update(ctx, rel.ID, models.RelatorioUpdate{Status: &invalido})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = e.relatorios.Create(ctx, models.RelatorioCreate{AlunoID: alunoA.ID, Titulo: "X", Periodo: "Y", Conteudo: "Z"}, &e.outro)
	assert.ErrorIs(t, err, appErrors.ErrCrossTenantWrite)

	aluno, err := e.alunos.Get(ctx, alunoA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, aluno.RelatoriosCount)

	vazios, err := e.relatorios.List(ctxDe(e.outro), repositories.RelatorioFiltro{})
	require.NoError(t, err)
	assert.Empty(t, vazios)
}

func TestTurmaService_DeleteWithValidation(t *testing.T) {
	e := newTestEnv(t)
	turma := e.novaTurma(t, e.prof, "Jardim II")
	a1 := e.novoAluno(t, e.prof, turma.ID, "Caio Dias")
	a2 := e.novoAluno(t, e.prof, turma.ID, "Davi Dias")
	e.novaObservacao(t, e.prof, a1.ID, "Obs 1")
	e.novaObservacao(t, e.prof, a1.ID, "Obs 2")
	e.novaObservacao(t, e.prof, a2.ID, "Obs 3")
	e.novoRelatorio(t, e.prof, a2.ID, "Relatório")

	_, err := e.turmas.DeleteWithValidation(ctxDe(e.outro), turma.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	res, err := e.turmas.DeleteWithValidation(ctxDe(e.admin), turma.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Carla Mendes", res.OwnerName)
	assert.Equal(t, RemovedCounts{Alunos: 2, Observacoes: 3, Relatorios: 1}, res.RemovedCounts)

	_, err = e.alunos.Get(ctxDe(e.prof), a1.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	logs, total, err := e.audit.GetAuditLogs(ctxDe(e.admin), repositories.AuditLogFilter{Action: "TURMA_DELETE"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, "Diretora Ana", logs[0].Username)
	assert.Equal(t, "WARNING", logs[0].Severity)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, e.admin, *logs[0].UserID)
}

func TestAlunoService_DeleteWithValidation(t *testing.T) {
	e := newTestEnv(t)
	turma := e.novaTurma(t, e.prof, "Maternal")
	aluno := e.novoAluno(t, e.prof, turma.ID, "Gabi Rocha")
	e.novaObservacao(t, e.prof, aluno.ID, "Obs")
	e.novoRelatorio(t, e.prof, aluno.ID, "Rel 1")
	e.novoRelatorio(t, e.prof, aluno.ID, "Rel 2")

	res, err := e.alunos.DeleteWithValidation(ctxDe(e.prof), aluno.ID)
	require.NoError(t, err)
	assert.Equal(t, RemovedCounts{Observacoes: 1, Relatorios: 2}, res.RemovedCounts)

	atual, err := e.turmas.Get(ctxDe(e.prof), turma.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, atual.AlunosCount)
}

func TestDeleteWithValidation_DonoSemPerfil(t *testing.T) {
	e := newTestEnv(t)
	orfao := uuid.New()
	turma, err := e.turmas.Create(ctxDe(e.admin), models.TurmaCreate{Nome: "Sem dono", FaixaEtaria: "2 anos"}, &orfao)
	require.NoError(t, err)

	res, err := e.turmas.DeleteWithValidation(ctxDe(e.admin), turma.ID)
	require.NoError(t, err)
	assert.Equal(t, DonoDesconhecido, res.OwnerName)
}

func TestAuditLogService(t *testing.T) {
	e := newTestEnv(t)

	_, _, err := e.audit.GetAuditLogs(ctxDe(e.prof), repositories.AuditLogFilter{})
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)

	err = e.audit.LogAction(context.Background(), models.AuditLogEntry{Action: "", Description: "x"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	require.NoError(t, e.audit.LogAction(context.Background(), models.AuditLogEntry{
		Action: "LIMPEZA", Description: "Sessões removidas", Severity: "estranha",
	}, nil))
	logs, _, err := e.audit.GetAuditLogs(ctxDe(e.admin), repositories.AuditLogFilter{Limit: 5000})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "system", logs[0].Username)
	assert.Equal(t, "INFO", logs[0].Severity)
}

func TestEstatisticasService(t *testing.T) {
	e := newTestEnv(t)
	ctx := ctxDe(e.prof)
	turma := e.novaTurma(t, e.prof, "Jardim")
	aluno := e.novoAluno(t, e.prof, turma.ID, "Ivo Lima")
	e.novaObservacao(t, e.prof, aluno.ID, "Primeira")
	e.novaObservacao(t, e.prof, aluno.ID, "Segunda")

	est, err := e.estatistica.EstatisticasAluno(ctx, aluno.ID)
	require.NoError(t, err)
	require.Len(t, est.Progresso, 1)
	assert.EqualValues(t, 2, est.Progresso[0].TotalObservacoes)
	require.Len(t, est.MediaPorTipo, 1)

	_, err = e.estatistica.EstatisticasAluno(ctxDe(e.outro), aluno.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = e.estatistica.EstatisticasTurma(ctxDe(e.outro), turma.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	agora := time.Now().UTC()
	_, err = e.estatistica.ObservacoesPeriodo(ctx, agora, agora.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	periodo, err := e.estatistica.ObservacoesPeriodo(ctx, agora.Add(-time.Hour), agora.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, periodo, 2)

	doOutro, err := e.estatistica.ObservacoesPeriodo(ctxDe(e.outro), agora.Add(-time.Hour), agora.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, doOutro)

	turmaEst, err := e.estatistica.EstatisticasTurma(ctx, turma.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, turmaEst.TotalAlunos)
	assert.EqualValues(t, 2, turmaEst.TotalObservacoes)
}

// perfisEspiao roda antes() a cada leitura de perfil feita pelo serviço.
type perfisEspiao struct {
	repositories.ProfileRepository
	antes func()
}

func (p *perfisEspiao) GetByID(ctx context.Context, id uuid.UUID) (*models.DBProfile, error) {
	if p.antes != nil {
		p.antes()
	}
	return p.ProfileRepository.GetByID(ctx, id)
}

func TestDeleteWithValidation_NomeDoDonoAntesDaExclusao(t *testing.T) {
	e := newTestEnv(t)
	ctx := ctxDe(e.prof)
	turma := e.novaTurma(t, e.prof, "Jardim III")
	aluno := e.novoAluno(t, e.prof, turma.ID, "Lia Moura")
	alunoRepo := repositories.NewGormAlunoRepository(e.db)

	t.Run("observação", func(t *testing.T) {
		obs := e.novaObservacao(t, e.prof, aluno.ID, "Montou o quebra-cabeça")
		existia := false
		espiao := &perfisEspiao{ProfileRepository: e.profiles, antes: func() {
			_, err := e.observacoes.Get(ctx, obs.ID)
			existia = err == nil
		}}
		svc := NewObservacaoService(repositories.NewGormObservacaoRepository(e.db), alunoRepo, espiao, e.ac, e.audit)

		res, err := svc.DeleteWithValidation(ctx, obs.ID)
		require.NoError(t, err)
		assert.Equal(t, "Carla Mendes", res.OwnerName)
		assert.True(t, existia, "o dono é lido com a observação ainda gravada")
		_, err = e.observacoes.Get(ctx, obs.ID)
		assert.ErrorIs(t, err, appErrors.ErrNotFound)
	})

	t.Run("relatório", func(t *testing.T) {
		rel := e.novoRelatorio(t, e.prof, aluno.ID, "Fechamento")
		existia := false
		espiao := &perfisEspiao{ProfileRepository: e.profiles, antes: func() {
			_, err := e.relatorios.Get(ctx, rel.ID)
			existia = err == nil
		}}
		svc := NewRelatorioService(repositories.NewGormRelatorioRepository(e.db), alunoRepo, espiao, e.ac, e.audit)

		res, err := svc.DeleteWithValidation(ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, "Carla Mendes", res.OwnerName)
		assert.True(t, existia, "o dono é lido com o relatório ainda gravado")

		atual, err := e.alunos.Get(ctx, aluno.ID)
		require.NoError(t, err)
		assert.Zero(t, atual.RelatoriosCount)
	})
}
