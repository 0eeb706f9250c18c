package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/ia"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/transform"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

// Tipos de ajuda do assistente.
const (
	AjudaGerarRelatorio         = "gerar_relatorio"
	AjudaRevisarRelatorio       = "revisar_relatorio"
	AjudaSugestoesAtividades    = "sugestoes_atividades"
	AjudaAnaliseDesenvolvimento = "analise_desenvolvimento"
	AjudaConversaLivre          = "conversa_livre"
)

type TipoAjuda struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// TiposAjuda é o catálogo na ordem de exibição.
var TiposAjuda = []TipoAjuda{
	{AjudaGerarRelatorio, "Gerar relatório completo"},
	{AjudaRevisarRelatorio, "Revisar relatório existente"},
	{AjudaSugestoesAtividades, "Sugestões de atividades"},
	{AjudaAnaliseDesenvolvimento, "Análise de desenvolvimento"},
	{AjudaConversaLivre, "Conversa livre sobre educação"},
}

func isTipoAjuda(tipo string) bool {
	for _, t := range TiposAjuda {
		if t.Value == tipo {
			return true
		}
	}
	return false
}

// SolicitacaoIA é um pedido livre ao assistente.
type SolicitacaoIA struct {
	Prompt    string `json:"prompt"`
	AlunoNome string `json:"alunoNome,omitempty"`
	Tipo      string `json:"tipo"`
	Contexto  string `json:"contexto,omitempty"`
}

type RespostaIA struct {
	Resposta string                 `json:"resposta"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RascunhoRelatorio são os campos já preenchidos do formulário de relatório.
type RascunhoRelatorio struct {
	AlunoID     uuid.UUID `json:"alunoId"`
	Titulo      string    `json:"titulo"`
	Periodo     string    `json:"periodo"`
	Observacoes string    `json:"observacoes,omitempty"`
}

// IAService monta os prompts e chama a função de IA com o token da sessão.
// Falhas voltam como ErrAIService, sem nova tentativa.
type IAService interface {
	Solicitar(ctx context.Context, req SolicitacaoIA) (*RespostaIA, error)
	GerarRelatorio(ctx context.Context, alunoID uuid.UUID) (*RespostaIA, error)
	RevisarRelatorio(ctx context.Context, texto string) (*RespostaIA, error)
	SugerirAtividades(ctx context.Context, alunoID uuid.UUID) (*RespostaIA, error)
	AnalisarDesenvolvimento(ctx context.Context, alunoID uuid.UUID) (*RespostaIA, error)
	ConversaLivre(ctx context.Context, pergunta string) (*RespostaIA, error)
	// GerarConteudoRelatorio devolve o conteúdo sugerido; ao salvar, o relatório leva geradoPorIA=true.
	GerarConteudoRelatorio(ctx context.Context, rascunho RascunhoRelatorio) (string, error)
}

type iaServiceImpl struct {
	invoker     ia.Invoker
	alunos      AlunoService
	observacoes ObservacaoService
	ac          *auth.AccessControl
	now         Clock
}

func NewIAService(invoker ia.Invoker, alunos AlunoService, observacoes ObservacaoService, ac *auth.AccessControl) IAService {
	if invoker == nil || alunos == nil || observacoes == nil || ac == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewIAService")
	}
	return &iaServiceImpl{invoker: invoker, alunos: alunos, observacoes: observacoes, ac: ac, now: utcNow}
}

func (s *iaServiceImpl) Solicitar(ctx context.Context, req SolicitacaoIA) (*RespostaIA, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, appErrors.NewValidationError("Digite sua pergunta.", map[string]string{"prompt": "obrigatório"})
	}
	if req.Tipo == "" {
		req.Tipo = AjudaConversaLivre
	}
	if !isTipoAjuda(req.Tipo) {
		return nil, appErrors.NewValidationError("Tipo de ajuda inválido.", map[string]string{"tipo": "valor não reconhecido"})
	}

	if _, err := s.ac.ValidatePermissions(ctx); err != nil {
		return nil, err
	}
	session, err := s.ac.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.invoker.Invoke(ctx, ia.Request{
		Prompt:    req.Prompt,
		AlunoNome: req.AlunoNome,
		Tipo:      req.Tipo,
		Contexto:  req.Contexto,
	}, session.BearerHeader())
	if err != nil {
		appLogger.Errorf("Falha ao solicitar IA (%s): %v", req.Tipo, err)
		return nil, err
	}
	return &RespostaIA{Resposta: resp.Resposta, Metadata: resp.Metadata}, nil
}

func (s *iaServiceImpl) GerarRelatorio(ctx context.Context, alunoID uuid.UUID) (*RespostaIA, error) {
	aluno, err := s.aluno(ctx, alunoID)
	if err != nil {
		return nil, err
	}
	return s.Solicitar(ctx, SolicitacaoIA{
		Prompt:    PromptGerarRelatorio(aluno),
		AlunoNome: aluno.Nome,
		Tipo:      AjudaGerarRelatorio,
	})
}

func (s *iaServiceImpl) RevisarRelatorio(ctx context.Context, texto string) (*RespostaIA, error) {
	texto = strings.TrimSpace(texto)
	if texto == "" {
		return nil, appErrors.NewValidationError("Cole o texto do relatório para revisão.", map[string]string{"texto": "obrigatório"})
	}
	return s.Solicitar(ctx, SolicitacaoIA{Prompt: PromptRevisarRelatorio(texto), Tipo: AjudaRevisarRelatorio})
}

func (s *iaServiceImpl) SugerirAtividades(ctx context.Context, alunoID uuid.UUID) (*RespostaIA, error) {
	aluno, err := s.aluno(ctx, alunoID)
	if err != nil {
		return nil, err
	}
	return s.Solicitar(ctx, SolicitacaoIA{
		Prompt:    PromptSugestoesAtividades(aluno),
		AlunoNome: aluno.Nome,
		Tipo:      AjudaSugestoesAtividades,
	})
}

// AnalisarDesenvolvimento envia as observações do aluno como contexto.
func (s *iaServiceImpl) AnalisarDesenvolvimento(ctx context.Context, alunoID uuid.UUID) (*RespostaIA, error) {
	aluno, err := s.aluno(ctx, alunoID)
	if err != nil {
		return nil, err
	}
	obs, err := s.observacoes.ListByAluno(ctx, alunoID)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, o := range obs {
		fmt.Fprintf(&b, "- %s [%s] %d/5: %s\n",
			o.DataRegistro.Format(utils.DateLayout), transform.TransformObservacao(o, nil).TipoObsLabel, o.RangeAvaliacao, o.Obs)
	}
	return s.Solicitar(ctx, SolicitacaoIA{
		Prompt:    PromptAnaliseDesenvolvimento(aluno, len(obs)),
		AlunoNome: aluno.Nome,
		Tipo:      AjudaAnaliseDesenvolvimento,
		Contexto:  b.String(),
	})
}

func (s *iaServiceImpl) ConversaLivre(ctx context.Context, pergunta string) (*RespostaIA, error) {
	pergunta = strings.TrimSpace(pergunta)
	if pergunta == "" {
		return nil, appErrors.NewValidationError("Escreva sua pergunta sobre educação infantil.", map[string]string{"pergunta": "obrigatório"})
	}
	return s.Solicitar(ctx, SolicitacaoIA{Prompt: PromptConversaLivre(pergunta), Tipo: AjudaConversaLivre})
}

func (s *iaServiceImpl) GerarConteudoRelatorio(ctx context.Context, r RascunhoRelatorio) (string, error) {
	r.Titulo = strings.TrimSpace(r.Titulo)
	r.Periodo = strings.TrimSpace(r.Periodo)
	if r.AlunoID == uuid.Nil || r.Titulo == "" || r.Periodo == "" {
		return "", appErrors.NewValidationError("Preencha aluno, título e período antes de gerar com IA.", map[string]string{
			"alunoId": "obrigatório", "titulo": "obrigatório", "periodo": "obrigatório",
		})
	}
	aluno, err := s.aluno(ctx, r.AlunoID)
	if err != nil {
		return "", err
	}
	resp, err := s.Solicitar(ctx, SolicitacaoIA{
		Prompt:    PromptConteudoRelatorio(aluno, r),
		AlunoNome: aluno.Nome,
		Tipo:      AjudaGerarRelatorio,
	})
	if err != nil {
		return "", err
	}
	return resp.Resposta, nil
}

func (s *iaServiceImpl) aluno(ctx context.Context, id uuid.UUID) (transform.Aluno, error) {
	row, err := s.alunos.Get(ctx, id)
	if err != nil {
		return transform.Aluno{}, err
	}
	return transform.TransformAluno(*row, nil, s.now()), nil
}

func PromptGerarRelatorio(a transform.Aluno) string {
	return fmt.Sprintf(`Gere um relatório completo de educação infantil para o aluno %s (%d anos) da turma %s.

O relatório deve incluir:
- Desenvolvimento cognitivo (aprendizagem, concentração, curiosidade)
- Desenvolvimento social e emocional (relacionamentos, expressão de sentimentos)
- Desenvolvimento motor (coordenação, habilidades físicas)
- Linguagem e comunicação (expressão oral, compreensão)
- Participação em atividades (interesse, engajamento)
- Relacionamento com colegas e professores
- Sugestões de atividades para casa

Use linguagem positiva, construtiva e adequada para educação infantil. Seja específico mas carinhoso. O relatório deve ter entre 300-500 palavras.`, a.Nome, a.Idade, a.Turma)
}

func PromptRevisarRelatorio(texto string) string {
	return fmt.Sprintf(`Por favor, revise o seguinte relatório de educação infantil e sugira melhorias:

"%s"

Analise e sugira melhorias em:
1. Clareza e estrutura
2. Linguagem adequada para educação infantil
3. Aspectos positivos a destacar
4. Sugestões de desenvolvimento
5. Correções gramaticais se necessário

Mantenha o tom carinhoso e construtivo.`, texto)
}

func PromptSugestoesAtividades(a transform.Aluno) string {
	return fmt.Sprintf(`Crie sugestões de atividades educativas para %s (%d anos) da turma %s.

Inclua:
- 5 atividades para desenvolver coordenação motora
- 5 atividades para estimular linguagem
- 5 atividades criativas (arte, música, etc)
- 3 atividades para fazer em casa com a família

Todas as atividades devem ser adequadas para a idade da criança e divertidas.`, a.Nome, a.Idade, a.Turma)
}

func PromptAnaliseDesenvolvimento(a transform.Aluno, totalObservacoes int) string {
	return fmt.Sprintf(`Analise o desenvolvimento de %s (%d anos) da turma %s a partir das %d observações registradas pelo professor (enviadas no contexto).

Aponte:
- Pontos fortes observados
- Áreas que merecem mais atenção
- Evolução ao longo do período
- Sugestões práticas para a sala e para a família

Use linguagem positiva e adequada para educação infantil.`, a.Nome, a.Idade, a.Turma, totalObservacoes)
}

func PromptConversaLivre(pergunta string) string {
	return fmt.Sprintf(`Como especialista em educação infantil, responda à seguinte pergunta:

"%s"

Forneça uma resposta prática, baseada em pedagogia infantil e adequada para professores de educação infantil. Seja clara e útil.`, pergunta)
}

func PromptConteudoRelatorio(a transform.Aluno, r RascunhoRelatorio) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gere um relatório de educação infantil para o aluno %s (%d anos) da turma %s.\n\n", a.Nome, a.Idade, a.Turma)
	fmt.Fprintf(&b, "Título: %s\nPeríodo: %s\n", r.Titulo, r.Periodo)
	if obs := strings.TrimSpace(r.Observacoes); obs != "" {
		fmt.Fprintf(&b, "Observações específicas: %s\n", obs)
	}
	b.WriteString(`
O relatório deve incluir:
- Desenvolvimento cognitivo
- Desenvolvimento social e emocional
- Desenvolvimento motor
- Linguagem e comunicação
- Participação em atividades
- Relacionamento com colegas e professores

Use linguagem positiva, construtiva e adequada para educação infantil. Seja específico mas carinhoso.`)
	return b.String()
}
