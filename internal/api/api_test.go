package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/ia"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/services"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	cfg := &core.Config{
		DBEngine:          "sqlite_puro",
		DBName:            data.MemoryDBName,
		JWTSecret:         "segredo-de-teste",
		JWTIssuer:         "diario-infantil",
		SessionTimeout:    time.Hour,
		PasswordMinLength: 6,
		AdminEmails:       []string{"diretora@escola.com"},
		ExportDir:         t.TempDir(),
	}
	db, err := data.InitializeDB(cfg)
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

	server := NewServer(cfg, auth.NewLocalProvider(cfg, db), ac, Services{
		Turmas:       turmas,
		Alunos:       alunos,
		Observacoes:  observacoes,
		Relatorios:   relatorios,
		Estatisticas: services.NewEstatisticasService(repositories.NewSqlxEstatisticasRepository(db), alunos, turmas, ac),
		IA:           services.NewIAService(ia.NewClient("", "assistente-ia", time.Second), alunos, observacoes, ac),
		Export:       services.NewExportService(turmas, alunos, relatorios, ac, cfg.ExportDir),
		Audit:        audit,
	})
	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

// do envia a requisição e decodifica a resposta JSON em out (se não for nil).
func (c *client) do(method, path string, body interface{}, out interface{}) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func signUp(t *testing.T, srv *httptest.Server, email, nome string) *client {
	t.Helper()
	var resp SessionResponse
	c := &client{t: t, base: srv.URL}
	status := c.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: email, Password: "girassol", Nome: nome}, &resp)
	require.Equal(t, http.StatusCreated, status)
	require.NotNil(t, resp.Session)
	c.token = resp.Session.AccessToken
	return c
}

func TestAPI_Autenticacao(t *testing.T) {
	srv := newTestAPI(t)
	anon := &client{t: t, base: srv.URL}

	var erro ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/api/turmas", nil, &erro))
	assert.NotEmpty(t, erro.Error)

	carla := signUp(t, srv, "carla@escola.com", "Carla Mendes")

	var sessao SessionResponse
	require.Equal(t, http.StatusOK, carla.do(http.MethodGet, "/api/auth/session", nil, &sessao))
	require.NotNil(t, sessao.Profile)
	assert.Equal(t, "professor", sessao.Profile.Tipo)

	assert.Equal(t, http.StatusConflict, anon.do(http.MethodPost, "/api/auth/signup",
		SignUpRequest{Email: "carla@escola.com", Password: "girassol", Nome: "Outra"}, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, anon.do(http.MethodPost, "/api/auth/signup",
		SignUpRequest{Email: "nova@escola.com", Password: "123456", Nome: "Nova"}, nil))
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodPost, "/api/auth/signin",
		SignInRequest{Email: "carla@escola.com", Password: "errada"}, nil))

	var login SessionResponse
	require.Equal(t, http.StatusOK, anon.do(http.MethodPost, "/api/auth/signin",
		SignInRequest{Email: "carla@escola.com", Password: "girassol"}, &login))
	novo := &client{t: t, base: srv.URL, token: login.Session.AccessToken}

	assert.Equal(t, http.StatusNoContent, novo.do(http.MethodPost, "/api/auth/signout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, novo.do(http.MethodGet, "/api/turmas", nil, nil))

	admin := signUp(t, srv, "diretora@escola.com", "Diretora Ana")
	require.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/auth/session", nil, &sessao))
	assert.Equal(t, "admin", sessao.Profile.Tipo)
}

func TestAPI_FluxoDeDados(t *testing.T) {
	srv := newTestAPI(t)
	carla := signUp(t, srv, "carla@escola.com", "Carla Mendes")
	bruno := signUp(t, srv, "bruno@escola.com", "Bruno Alves")

	var turma map[string]interface{}
	require.Equal(t, http.StatusCreated, carla.do(http.MethodPost, "/api/turmas",
		map[string]string{"nome": "Maternal II", "faixaEtaria": "2-3 anos"}, &turma))
	turmaID := turma["id"].(string)
	assert.Equal(t, "bg-gradient-primary", turma["cor"])

	var erro ErrorResponse
	require.Equal(t, http.StatusUnprocessableEntity, carla.do(http.MethodPost, "/api/turmas",
		map[string]string{"nome": "", "faixaEtaria": "2-3 anos"}, &erro))
	assert.Contains(t, erro.Fields, "nome")

	var aluno map[string]interface{}
	require.Equal(t, http.StatusCreated, carla.do(http.MethodPost, "/api/alunos", map[string]string{
		"nome": "ana souza", "turmaId": turmaID, "dataNascimento": "2021-05-10", "responsavel": "Maria Souza",
	}, &aluno))
	alunoID := aluno["id"].(string)
	assert.Equal(t, "Ana Souza", aluno["nome"])
	assert.Equal(t, "Maternal II", aluno["turma"])

	var obs map[string]interface{}
	require.Equal(t, http.StatusCreated, carla.do(http.MethodPost, "/api/observacoes", map[string]interface{}{
		"idAluno": alunoID, "tipoObs": "social", "rangeAvaliacao": 5, "obs": "Dividiu os brinquedos",
	}, &obs))
	assert.Equal(t, http.StatusUnprocessableEntity, carla.do(http.MethodPost, "/api/observacoes", map[string]interface{}{
		"idAluno": alunoID, "rangeAvaliacao": 7, "obs": "fora da escala",
	}, nil))

	var turmas []map[string]interface{}
	require.Equal(t, http.StatusOK, carla.do(http.MethodGet, "/api/turmas", nil, &turmas))
	require.Len(t, turmas, 1)
	assert.EqualValues(t, 1, turmas[0]["alunosCount"])

	t.Run("outro professor não vê nem altera", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, bruno.do(http.MethodGet, "/api/turmas/"+turmaID, nil, nil))
		assert.Equal(t, http.StatusNotFound, bruno.do(http.MethodDelete, "/api/alunos/"+alunoID+"?confirmado=true", nil, nil))
		var lista []map[string]interface{}
		require.Equal(t, http.StatusOK, bruno.do(http.MethodGet, "/api/alunos", nil, &lista))
		assert.Empty(t, lista)
		assert.Equal(t, http.StatusForbidden, bruno.do(http.MethodGet, "/api/auditoria", nil, nil))
	})

	t.Run("painel", func(t *testing.T) {
		var painel PainelResponse
		require.Equal(t, http.StatusOK, carla.do(http.MethodGet, "/api/painel", nil, &painel))
		assert.Equal(t, 1, painel.Resumo.TotalTurmas)
		assert.Equal(t, 1, painel.Resumo.TotalAlunos)
		assert.False(t, painel.Loading)
	})

	t.Run("IA sem função configurada", func(t *testing.T) {
		assert.Equal(t, http.StatusBadGateway, carla.do(http.MethodPost, "/api/ia",
			IARequest{Tipo: "conversa_livre", Prompt: "Como estimular a fala?"}, nil))
	})

	t.Run("exclusão exige confirmação", func(t *testing.T) {
		assert.Equal(t, http.StatusPreconditionRequired, carla.do(http.MethodDelete, "/api/turmas/"+turmaID, nil, nil))

		var res services.DeleteResult
		require.Equal(t, http.StatusOK, carla.do(http.MethodDelete, "/api/turmas/"+turmaID+"?confirmado=true", nil, &res))
		assert.True(t, res.Success)
		assert.Equal(t, "Carla Mendes", res.OwnerName)
		assert.Equal(t, services.RemovedCounts{Alunos: 1, Observacoes: 1}, res.RemovedCounts)

		assert.Equal(t, http.StatusNotFound, carla.do(http.MethodGet, "/api/alunos/"+alunoID, nil, nil))
	})

	assert.Equal(t, http.StatusUnprocessableEntity, carla.do(http.MethodGet, "/api/turmas/nao-e-uuid", nil, nil))
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		core.ErrNotAuthenticated:              http.StatusUnauthorized,
		core.ErrInvalidCredentials:            http.StatusUnauthorized,
		core.ErrPermissionDenied:              http.StatusForbidden,
		core.ErrNotFound:                      http.StatusNotFound,
		core.NewValidationError("x", nil):     http.StatusUnprocessableEntity,
		core.ErrWeakPassword:                  http.StatusUnprocessableEntity,
		core.ErrProfileNotFound:               http.StatusConflict,
		core.ErrEmailTaken:                    http.StatusConflict,
		core.ErrAIService:                     http.StatusBadGateway,
		core.NewBackendError("lendo", io.EOF): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}
