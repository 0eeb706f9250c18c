package store

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/services"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/transform"
)

type contadores struct {
	turmas map[uuid.UUID]int
	alunos map[uuid.UUID][2]int
}

func lerContadores(s *AppStore) contadores {
	c := contadores{turmas: map[uuid.UUID]int{}, alunos: map[uuid.UUID][2]int{}}
	for _, t := range s.Turmas() {
		c.turmas[t.ID] = t.AlunosCount
	}
	for _, a := range s.Alunos() {
		c.alunos[a.ID] = [2]int{a.RelatoriosCount, a.ObservacoesCount}
	}
	return c
}

func TestAppStore_RefreshAlunosSemEscritaMantemContadores(t *testing.T) {
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	db, err := data.InitializeDB(&core.Config{DBEngine: "sqlite_puro", DBName: data.MemoryDBName})
	require.NoError(t, err)
	t.Cleanup(func() { _ = data.CloseDB(db) })

	profiles := repositories.NewGormProfileRepository(db)
	turmaRepo := repositories.NewGormTurmaRepository(db)
	alunoRepo := repositories.NewGormAlunoRepository(db)
	ac := auth.NewAccessControl(auth.ContextSessionSource{}, profiles)
	audit := services.NewAuditLogService(repositories.NewGormAuditLogRepository(db), ac)
	turmas := services.NewTurmaService(turmaRepo, alunoRepo, profiles, ac, audit)
	alunos := services.NewAlunoService(alunoRepo, turmaRepo, profiles, ac, audit)
	observacoes := services.NewObservacaoService(repositories.NewGormObservacaoRepository(db), alunoRepo, profiles, ac, audit)
	relatorios := services.NewRelatorioService(repositories.NewGormRelatorioRepository(db), alunoRepo, profiles, ac, audit)

	prof := uuid.New()
	require.NoError(t, profiles.Create(context.Background(), &models.DBProfile{ID: prof, Nome: "Carla Mendes", Tipo: models.TipoProfessor}))
	ctx := auth.WithSession(context.Background(), &auth.Session{AccessToken: "tok", User: auth.User{ID: prof}})

	turma, err := turmas.Create(ctx, models.TurmaCreate{Nome: "Maternal I", FaixaEtaria: "2-3 anos"}, nil)
	require.NoError(t, err)
	var alunoIDs []uuid.UUID
	for _, nome := range []string{"Ana Lima", "Bia Lima"} {
		a, err := alunos.Create(ctx, models.AlunoCreate{Nome: nome, TurmaID: turma.ID, DataNascimento: "2021-03-04", Responsavel: "Rita Lima"}, nil)
		require.NoError(t, err)
		alunoIDs = append(alunoIDs, a.ID)
	}
	_, err = observacoes.Create(ctx, models.ObservacaoCreate{IDAluno: alunoIDs[0], RangeAvaliacao: 4, Obs: "Comeu tudo"}, nil)
	require.NoError(t, err)
	_, err = relatorios.Create(ctx, models.RelatorioCreate{AlunoID: alunoIDs[0], Titulo: "Semestral", Periodo: "1º semestre", Conteudo: "Evoluiu bem."}, nil)
	require.NoError(t, err)

	s := New(turmas, alunos, relatorios)
	require.NoError(t, s.Load(ctx))
	carregado := lerContadores(s)
	assert.Equal(t, 2, carregado.turmas[turma.ID])
	assert.Equal(t, [2]int{1, 1}, carregado.alunos[alunoIDs[0]])
	assert.Equal(t, [2]int{0, 0}, carregado.alunos[alunoIDs[1]])

	require.NoError(t, s.RefreshAlunos(ctx))
	primeiro := lerContadores(s)
	require.NoError(t, s.RefreshAlunos(ctx))
	segundo := lerContadores(s)

	assert.Equal(t, carregado, primeiro)
	assert.Equal(t, primeiro, segundo)

	// Uma cópia local alterada é descartada pelo próximo refresh.
	s.OnTurmasChange([]transform.Turma{{ID: turma.ID, Nome: "Maternal I", AlunosCount: 99}})
	require.NoError(t, s.RefreshAlunos(ctx))
	assert.Equal(t, segundo, lerContadores(s))
}
