package api

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/services"
)

// --- Estatísticas ---

func (s *Server) EstatisticasAluno(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := s.svc.Estatisticas.EstatisticasAluno(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *Server) EstatisticasTurma(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := s.svc.Estatisticas.EstatisticasTurma(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

// ObservacoesPeriodo usa ?inicio=&fim= (AAAA-MM-DD); sem datas, os últimos 30 dias.
func (s *Server) ObservacoesPeriodo(w http.ResponseWriter, r *http.Request) {
	inicio, err := optionalDateQuery(r, "inicio", false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	fim, err := optionalDateQuery(r, "fim", true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	now := s.now()
	if fim == nil {
		fim = &now
	}
	if inicio == nil {
		i := fim.AddDate(0, 0, -30)
		inicio = &i
	}
	out, err := s.svc.Estatisticas.ObservacoesPeriodo(r.Context(), *inicio, *fim)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

// --- Assistente de IA ---

type IARequest struct {
	Tipo     string     `json:"tipo"`
	Prompt   string     `json:"prompt,omitempty"`
	AlunoID  *uuid.UUID `json:"alunoId,omitempty"`
	Texto    string     `json:"texto,omitempty"`
	Contexto string     `json:"contexto,omitempty"`
}

func (s *Server) TiposAjuda(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, services.TiposAjuda)
}

// SolicitarIA escolhe o prompt pelo tipo de ajuda. Sem aluno, o prompt enviado é usado como está.
func (s *Server) SolicitarIA(w http.ResponseWriter, r *http.Request) {
	var req IARequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ctx := r.Context()

	var (
		resp *services.RespostaIA
		err  error
	)
	switch {
	case req.Tipo == services.AjudaRevisarRelatorio:
		texto := req.Texto
		if texto == "" {
			texto = req.Prompt
		}
		resp, err = s.svc.IA.RevisarRelatorio(ctx, texto)
	case req.Tipo == services.AjudaConversaLivre && req.Prompt != "" && req.Contexto == "":
		resp, err = s.svc.IA.ConversaLivre(ctx, req.Prompt)
	case req.AlunoID != nil && req.Tipo == services.AjudaGerarRelatorio:
		resp, err = s.svc.IA.GerarRelatorio(ctx, *req.AlunoID)
	case req.AlunoID != nil && req.Tipo == services.AjudaSugestoesAtividades:
		resp, err = s.svc.IA.SugerirAtividades(ctx, *req.AlunoID)
	case req.AlunoID != nil && req.Tipo == services.AjudaAnaliseDesenvolvimento:
		resp, err = s.svc.IA.AnalisarDesenvolvimento(ctx, *req.AlunoID)
	default:
		resp, err = s.svc.IA.Solicitar(ctx, services.SolicitacaoIA{Prompt: req.Prompt, Tipo: req.Tipo, Contexto: req.Contexto})
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) GerarConteudoRelatorio(w http.ResponseWriter, r *http.Request) {
	var req services.RascunhoRelatorio
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	conteudo, err := s.svc.IA.GerarConteudoRelatorio(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"conteudo": conteudo, "geradoPorIA": true})
}

// --- Exportação ---

func (s *Server) ExportarRelatorios(w http.ResponseWriter, r *http.Request) {
	turmaID, err := optionalUUIDQuery(r, "turma")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	path, err := s.svc.Export.ExportarRelatorios(r.Context(), turmaID, r.URL.Query().Get("formato"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	serveArquivo(w, r, path)
}

func (s *Server) ExportarTurma(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	path, err := s.svc.Export.ExportarTurma(r.Context(), id, r.URL.Query().Get("formato"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	serveArquivo(w, r, path)
}

func serveArquivo(w http.ResponseWriter, r *http.Request, path string) {
	name := filepath.Base(path)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if strings.HasSuffix(name, ".xlsx") {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	} else {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	}
	http.ServeFile(w, r, path)
}

// --- Auditoria ---

type AuditoriaResponse struct {
	Total   int64                   `json:"total"`
	Entries []models.AuditLogEntry `json:"entries"`
}

// ListAuditoria aceita ?acao=&severidade=&usuario=&inicio=&fim=&limite=&offset= (somente admin).
func (s *Server) ListAuditoria(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repositories.AuditLogFilter{
		Action:   q.Get("acao"),
		Severity: strings.ToUpper(q.Get("severidade")),
		Username: q.Get("usuario"),
		Limit:    50,
	}
	var err error
	if filter.StartDate, err = optionalDateQuery(r, "inicio", false); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if filter.EndDate, err = optionalDateQuery(r, "fim", true); err != nil {
		writeServiceError(w, r, err)
		return
	}
	for name, dst := range map[string]*int{"limite": &filter.Limit, "offset": &filter.Offset} {
		if raw := q.Get(name); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n < 0 {
				writeServiceError(w, r, appErrors.NewValidationError("Paginação inválida.", map[string]string{name: raw}))
				return
			}
			*dst = n
		}
	}

	entries, total, err := s.svc.Audit.GetAuditLogs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, AuditoriaResponse{Total: total, Entries: entries})
}
