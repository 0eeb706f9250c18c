package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/services"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/store"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/transform"
)

type criarTurmaRequest struct {
	models.TurmaCreate
	ProfessorID *uuid.UUID `json:"professorId,omitempty"`
}

type criarAlunoRequest struct {
	models.AlunoCreate
	ProfessorID *uuid.UUID `json:"professorId,omitempty"`
}

type criarObservacaoRequest struct {
	models.ObservacaoCreate
	ProfessorID *uuid.UUID `json:"professorId,omitempty"`
}

type criarRelatorioRequest struct {
	models.RelatorioCreate
	ProfessorID *uuid.UUID `json:"professorId,omitempty"`
}

type PainelResponse struct {
	store.Snapshot
	Resumo store.Resumo `json:"resumo"`
}

// Painel faz a carga coordenada do store e devolve coleções e resumo.
func (s *Server) Painel(w http.ResponseWriter, r *http.Request) {
	st := store.New(s.svc.Turmas, s.svc.Alunos, s.svc.Relatorios)
	if err := st.Load(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, PainelResponse{Snapshot: st.Snapshot(), Resumo: st.Resumo()})
}

// --- Turmas ---

func (s *Server) ListTurmas(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Turmas.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.Turmas(rows))
}

func (s *Server) GetTurma(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Turmas.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.TransformTurma(*row))
}

func (s *Server) CreateTurma(w http.ResponseWriter, r *http.Request) {
	var req criarTurmaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Turmas.Create(r.Context(), req.TurmaCreate, req.ProfessorID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, transform.TransformTurma(*row))
}

func (s *Server) UpdateTurma(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req models.TurmaUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Turmas.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.TransformTurma(*row))
}

func (s *Server) DeleteTurma(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.deleteConfirmado(w, r, func(ctx context.Context) (*services.DeleteResult, error) {
		return s.svc.Turmas.DeleteWithValidation(ctx, id)
	})
}

// --- Alunos ---

func (s *Server) ListAlunos(w http.ResponseWriter, r *http.Request) {
	turmaID, err := optionalUUIDQuery(r, "turma")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var rows []models.DBAluno
	if turmaID != nil {
		rows, err = s.svc.Alunos.ListByTurma(r.Context(), *turmaID)
	} else {
		rows, err = s.svc.Alunos.List(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.Alunos(rows, nil, s.now()))
}

func (s *Server) GetAluno(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Alunos.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.TransformAluno(*row, nil, s.now()))
}

func (s *Server) CreateAluno(w http.ResponseWriter, r *http.Request) {
	var req criarAlunoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Alunos.Create(r.Context(), req.AlunoCreate, req.ProfessorID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, transform.TransformAluno(*row, nil, s.now()))
}

func (s *Server) UpdateAluno(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req models.AlunoUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Alunos.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.TransformAluno(*row, nil, s.now()))
}

func (s *Server) DeleteAluno(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.deleteConfirmado(w, r, func(ctx context.Context) (*services.DeleteResult, error) {
		return s.svc.Alunos.DeleteWithValidation(ctx, id)
	})
}

// --- Observações ---

func (s *Server) TiposObservacao(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, models.TiposObservacao)
}

// ListObservacoes aceita ?aluno=&tipo=&q=&inicio=&fim=.
func (s *Server) ListObservacoes(w http.ResponseWriter, r *http.Request) {
	var filtro repositories.ObservacaoFiltro
	var err error
	if filtro.AlunoID, err = optionalUUIDQuery(r, "aluno"); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if filtro.Inicio, err = optionalDateQuery(r, "inicio", false); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if filtro.Fim, err = optionalDateQuery(r, "fim", true); err != nil {
		writeServiceError(w, r, err)
		return
	}
	filtro.TipoObs = strings.TrimSpace(r.URL.Query().Get("tipo"))
	filtro.Texto = strings.TrimSpace(r.URL.Query().Get("q"))

	rows, err := s.svc.Observacoes.List(r.Context(), filtro)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	alunos, err := s.alunosIndex(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.Observacoes(rows, alunos))
}

func (s *Server) GetObservacao(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Observacoes.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.TransformObservacao(*row, nil))
}

func (s *Server) CreateObservacao(w http.ResponseWriter, r *http.Request) {
	var req criarObservacaoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Observacoes.Create(r.Context(), req.ObservacaoCreate, req.ProfessorID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, transform.TransformObservacao(*row, nil))
}

func (s *Server) UpdateObservacao(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req models.ObservacaoUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Observacoes.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.TransformObservacao(*row, nil))
}

func (s *Server) DeleteObservacao(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.deleteConfirmado(w, r, func(ctx context.Context) (*services.DeleteResult, error) {
		return s.svc.Observacoes.DeleteWithValidation(ctx, id)
	})
}

// --- Relatórios ---

// ListRelatorios aceita ?aluno=&turma=&status=.
func (s *Server) ListRelatorios(w http.ResponseWriter, r *http.Request) {
	var filtro repositories.RelatorioFiltro
	var err error
	if filtro.AlunoID, err = optionalUUIDQuery(r, "aluno"); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if filtro.TurmaID, err = optionalUUIDQuery(r, "turma"); err != nil {
		writeServiceError(w, r, err)
		return
	}
	filtro.Status = strings.TrimSpace(r.URL.Query().Get("status"))

	rows, err := s.svc.Relatorios.List(r.Context(), filtro)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	alunos, err := s.alunosIndex(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, transform.Relatorios(rows, alunos))
}

func (s *Server) GetRelatorio(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Relatorios.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writeRelatorio(w, r, http.StatusOK, row)
}

func (s *Server) CreateRelatorio(w http.ResponseWriter, r *http.Request) {
	var req criarRelatorioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Relatorios.Create(r.Context(), req.RelatorioCreate, req.ProfessorID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writeRelatorio(w, r, http.StatusCreated, row)
}

func (s *Server) UpdateRelatorio(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req models.RelatorioUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	row, err := s.svc.Relatorios.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writeRelatorio(w, r, http.StatusOK, row)
}

func (s *Server) DeleteRelatorio(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.deleteConfirmado(w, r, func(ctx context.Context) (*services.DeleteResult, error) {
		return s.svc.Relatorios.DeleteWithValidation(ctx, id)
	})
}

// writeRelatorio resolve aluno e turma do relatório; aluno não visível vira "Aluno Desconhecido".
func (s *Server) writeRelatorio(w http.ResponseWriter, r *http.Request, status int, row *models.DBRelatorio) {
	alunos := map[uuid.UUID]transform.Aluno{}
	if a, err := s.svc.Alunos.Get(r.Context(), row.AlunoID); err == nil {
		alunos[a.ID] = transform.TransformAluno(*a, nil, s.now())
	}
	WriteJSON(w, status, transform.TransformRelatorio(*row, alunos))
}

// deleteConfirmado só apaga com ?confirmado=true: o diálogo de confirmação roda no navegador.
func (s *Server) deleteConfirmado(w http.ResponseWriter, r *http.Request, del func(ctx context.Context) (*services.DeleteResult, error)) {
	if !confirmado(r) {
		WriteError(w, http.StatusPreconditionRequired, "Confirme a exclusão antes de continuar.")
		return
	}
	result, err := del(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) alunosIndex(ctx context.Context) (map[uuid.UUID]transform.Aluno, error) {
	rows, err := s.svc.Alunos.List(ctx)
	if err != nil {
		return nil, err
	}
	return transform.IndexAlunos(transform.Alunos(rows, nil, s.now())), nil
}
