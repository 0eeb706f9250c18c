package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/ia"
)

type fakeInvoker struct {
	calls      []ia.Request
	authHeader string
	resposta   string
	err        error
}

func (f *fakeInvoker) Invoke(ctx context.Context, req ia.Request, authHeader string) (*ia.Response, error) {
	f.calls = append(f.calls, req)
	f.authHeader = authHeader
	if f.err != nil {
		return nil, f.err
	}
	return &ia.Response{Success: true, Resposta: f.resposta, Metadata: map[string]interface{}{"modelo": "teste"}}, nil
}

func newIAService(e *testEnv, inv ia.Invoker) *iaServiceImpl {
	s := NewIAService(inv, e.alunos, e.observacoes, e.ac).(*iaServiceImpl)
	s.now = func() time.Time { return time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestIAService_GerarRelatorio(t *testing.T) {
	e := newTestEnv(t)
	inv := &fakeInvoker{resposta: "Relatório gerado"}
	s := newIAService(e, inv)
	turma := e.novaTurma(t, e.prof, "Jardim I")
	aluno := e.novoAluno(t, e.prof, turma.ID, "Lara Campos")

	resp, err := s.GerarRelatorio(ctxDe(e.prof), aluno.ID)
	require.NoError(t, err)
	assert.Equal(t, "Relatório gerado", resp.Resposta)
	assert.Equal(t, "teste", resp.Metadata["modelo"])

	require.Len(t, inv.calls, 1)
	req := inv.calls[0]
	assert.Equal(t, AjudaGerarRelatorio, req.Tipo)
	assert.Equal(t, "Lara Campos", req.AlunoNome)
	assert.Contains(t, req.Prompt, "Lara Campos (4 anos) da turma Jardim I")
	assert.Equal(t, "Bearer tok-"+e.prof.String(), inv.authHeader)
}

func TestIAService_AnaliseEnviaObservacoesNoContexto(t *testing.T) {
	e := newTestEnv(t)
	inv := &fakeInvoker{resposta: "ok"}
	s := newIAService(e, inv)
	aluno := e.novoAluno(t, e.prof, e.novaTurma(t, e.prof, "Turma").ID, "Noa Brito")
	e.novaObservacao(t, e.prof, aluno.ID, "Empilhou blocos")

	_, err := s.AnalisarDesenvolvimento(ctxDe(e.prof), aluno.ID)
	require.NoError(t, err)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, AjudaAnaliseDesenvolvimento, inv.calls[0].Tipo)
	assert.Contains(t, inv.calls[0].Contexto, "[Comportamental] 4/5: Empilhou blocos")
	assert.Contains(t, inv.calls[0].Prompt, "1 observações")
}

func TestIAService_Rejeicoes(t *testing.T) {
	e := newTestEnv(t)
	inv := &fakeInvoker{}
	s := newIAService(e, inv)
	aluno := e.novoAluno(t, e.prof, e.novaTurma(t, e.prof, "Turma").ID, "Rita Maia")

	_, err := s.Solicitar(ctxDe(e.prof), SolicitacaoIA{Prompt: "   "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = s.Solicitar(ctxDe(e.prof), SolicitacaoIA{Prompt: "oi", Tipo: "horoscopo"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = s.ConversaLivre(context.Background(), "Como lidar com mordidas?")
	assert.ErrorIs(t, err, appErrors.ErrNotAuthenticated)

	_, err = s.SugerirAtividades(ctxDe(e.outro), aluno.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = s.GerarConteudoRelatorio(ctxDe(e.prof), RascunhoRelatorio{AlunoID: aluno.ID, Titulo: "Semestral"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Empty(t, inv.calls, "nenhuma chamada à IA depois de falha local")
}

func TestIAService_FalhaDaIA(t *testing.T) {
	e := newTestEnv(t)
	inv := &fakeInvoker{err: fmt.Errorf("%w: status 500", appErrors.ErrAIService)}
	s := newIAService(e, inv)

	_, err := s.RevisarRelatorio(ctxDe(e.prof), "A criança brincou.")
	assert.ErrorIs(t, err, appErrors.ErrAIService)
	require.Len(t, inv.calls, 1, "sem nova tentativa")
	assert.Contains(t, inv.calls[0].Prompt, `"A criança brincou."`)
}

func TestIAService_GerarConteudoRelatorio(t *testing.T) {
	e := newTestEnv(t)
	inv := &fakeInvoker{resposta: "Conteúdo sugerido"}
	s := newIAService(e, inv)
	aluno := e.novoAluno(t, e.prof, e.novaTurma(t, e.prof, "Turma").ID, "Ciro Paz")

	conteudo, err := s.GerarConteudoRelatorio(ctxDe(e.prof), RascunhoRelatorio{
		AlunoID:     aluno.ID,
		Titulo:      "Adaptação",
		Periodo:     "Março",
		Observacoes: "chora na entrada",
	})
	require.NoError(t, err)
	assert.Equal(t, "Conteúdo sugerido", conteudo)
	assert.Contains(t, inv.calls[0].Prompt, "Título: Adaptação\nPeríodo: Março\nObservações específicas: chora na entrada")
}
