package store

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/services"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/transform"
)

// Os fakes embutem a interface: só List é exercitado pelo store.
type fakeTurmas struct {
	services.TurmaService
	rows []models.DBTurma
	err  error
}

func (f *fakeTurmas) List(ctx context.Context) ([]models.DBTurma, error) { return f.rows, f.err }

type fakeAlunos struct {
	services.AlunoService
	rows []models.DBAluno
	err  error
}

func (f *fakeAlunos) List(ctx context.Context) ([]models.DBAluno, error) { return f.rows, f.err }

type fakeRelatorios struct {
	services.RelatorioService
	rows []models.DBRelatorio
	err  error
}

func (f *fakeRelatorios) List(ctx context.Context, filtro repositories.RelatorioFiltro) ([]models.DBRelatorio, error) {
	return f.rows, f.err
}

type fixture struct {
	turmas     *fakeTurmas
	alunos     *fakeAlunos
	relatorios *fakeRelatorios
	store      *AppStore
	turmaID    uuid.UUID
	alunoID    uuid.UUID
}

func newFixture() *fixture {
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	turmaID, alunoID := uuid.New(), uuid.New()
	f := &fixture{
		turmaID: turmaID,
		alunoID: alunoID,
		turmas:  &fakeTurmas{rows: []models.DBTurma{{ID: turmaID, Nome: "Maternal I"}, {ID: uuid.New(), Nome: "Jardim II"}}},
		alunos:  &fakeAlunos{rows: []models.DBAluno{{ID: alunoID, Nome: "Ana Lima", TurmaID: turmaID}}},
		relatorios: &fakeRelatorios{rows: []models.DBRelatorio{
			{ID: uuid.New(), AlunoID: alunoID, Titulo: "Semestral", Status: models.StatusConcluido, GeradoPorIA: true},
			{ID: uuid.New(), AlunoID: alunoID, Titulo: "Adaptação", Status: models.StatusRascunho},
		}},
	}
	f.store = New(f.turmas, f.alunos, f.relatorios)
	return f
}

func TestAppStore_Load(t *testing.T) {
	f := newFixture()
	assert.True(t, f.store.Loading())

	require.NoError(t, f.store.Load(context.Background()))
	assert.False(t, f.store.Loading())

	snap := f.store.Snapshot()
	assert.Len(t, snap.Turmas, 2)
	require.Len(t, snap.Alunos, 1)
	assert.Equal(t, "Maternal I", snap.Alunos[0].Turma)
	require.Len(t, snap.Relatorios, 2)
	assert.Equal(t, "Ana Lima", snap.Relatorios[0].AlunoNome)

	aluno, ok := f.store.AlunoByID(f.alunoID)
	assert.True(t, ok)
	assert.Equal(t, "Ana Lima", aluno.Nome)
	_, ok = f.store.AlunoByID(uuid.New())
	assert.False(t, ok)
}

func TestAppStore_LoadComFalhaEsvaziaColecoes(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.store.Load(context.Background()))

	f.relatorios.err = errors.New("backend fora")
	assert.Error(t, f.store.Load(context.Background()))

	snap := f.store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Turmas)
	assert.Empty(t, snap.Alunos)
	assert.Empty(t, snap.Relatorios)
	assert.NotNil(t, snap.Turmas, "vazio, não nil")
}

func TestAppStore_Refresh(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.store.Load(ctx))

	f.alunos.rows = append(f.alunos.rows, models.DBAluno{ID: uuid.New(), Nome: "Bia Lima", TurmaID: f.turmaID})
	f.relatorios.rows = f.relatorios.rows[:1]

	require.NoError(t, f.store.RefreshAlunos(ctx))
	assert.Len(t, f.store.Alunos(), 2)
	assert.Len(t, f.store.Relatorios(), 2, "RefreshAlunos não mexe nos relatórios")

	require.NoError(t, f.store.RefreshRelatorios(ctx))
	assert.Len(t, f.store.Relatorios(), 1)

	f.alunos.err = errors.New("timeout")
	assert.Error(t, f.store.RefreshAlunos(ctx))
	assert.Len(t, f.store.Alunos(), 2, "falha no refresh mantém o estado anterior")
}

func TestAppStore_ResumoEOnChange(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.store.Load(context.Background()))

	r := f.store.Resumo()
	assert.Equal(t, 2, r.TotalTurmas)
	assert.Equal(t, []string{"Maternal I", "Jardim II"}, r.NomesTurmas)
	assert.Equal(t, 1, r.TotalAlunos)
	assert.Equal(t, 2, r.TotalRelatorios)
	assert.Equal(t, 1, r.RelatoriosConcluidos)
	assert.Equal(t, 1, r.RelatoriosIA)

	novas := []transform.Turma{{ID: uuid.New(), Nome: "Berçário"}}
	f.store.OnTurmasChange(novas)
	novas[0].Nome = "alterada fora"
	assert.Equal(t, "Berçário", f.store.Turmas()[0].Nome)

	f.store.OnAlunosChange(nil)
	f.store.OnRelatoriosChange(nil)
	r = f.store.Resumo()
	assert.Equal(t, 1, r.TotalTurmas)
	assert.Zero(t, r.TotalAlunos)
	assert.Zero(t, r.TotalRelatorios)
}
