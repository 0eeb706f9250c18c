// Package transform converte as linhas do banco nas visões usadas pela interface.
// Todas as funções são puras: a data de referência ("hoje") é sempre um parâmetro.
package transform

import (
	"time"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

// Marcadores usados quando o join não encontra o registro referenciado.
const (
	AlunoDesconhecido = "Aluno Desconhecido"
	SemTurma          = "Sem Turma"
)

// Turma é a visão de uma turma, com o contador de alunos.
type Turma struct {
	ID           uuid.UUID `json:"id"`
	Nome         string    `json:"nome"`
	FaixaEtaria  string    `json:"faixaEtaria"`
	Cor          string    `json:"cor"`
	AlunosCount  int       `json:"alunosCount"`
	ProfessorID  uuid.UUID `json:"professorId"`
	CriadoEm     time.Time `json:"criadoEm"`
	AtualizadoEm time.Time `json:"atualizadoEm"`
}

// Aluno é a visão de um aluno, com idade calculada e nome da turma.
type Aluno struct {
	ID               uuid.UUID `json:"id"`
	Nome             string    `json:"nome"`
	Idade            int       `json:"idade"`
	DataNascimento   string    `json:"dataNascimento"`
	TurmaID          uuid.UUID `json:"turmaId"`
	Turma            string    `json:"turma"`
	Responsavel      string    `json:"responsavel"`
	Telefone         string    `json:"telefone"`
	Observacoes      string    `json:"observacoes"`
	RelatoriosCount  int       `json:"relatoriosCount"`
	ObservacoesCount int       `json:"observacoesCount"`
	ProfessorID      uuid.UUID `json:"professorId"`
	CriadoEm         time.Time `json:"criadoEm"`
	AtualizadoEm     time.Time `json:"atualizadoEm"`
}

// Relatorio é a visão de um relatório, com nome do aluno e da turma.
type Relatorio struct {
	ID           uuid.UUID `json:"id"`
	AlunoID      uuid.UUID `json:"alunoId"`
	AlunoNome    string    `json:"alunoNome"`
	Turma        string    `json:"turma"`
	Titulo       string    `json:"titulo"`
	Periodo      string    `json:"periodo"`
	Conteudo     string    `json:"conteudo"`
	Observacoes  string    `json:"observacoes"`
	Status       string    `json:"status"`
	GeradoPorIA  bool      `json:"geradoPorIA"`
	ProfessorID  uuid.UUID `json:"professorId"`
	CriadoEm     time.Time `json:"criadoEm"`
	AtualizadoEm time.Time `json:"atualizadoEm"`
}

// Observacao é a visão de uma observação, com o rótulo do tipo e o nome do aluno.
type Observacao struct {
	ID             uint64    `json:"id"`
	IDAluno        uuid.UUID `json:"idAluno"`
	AlunoNome      string    `json:"alunoNome"`
	DataRegistro   time.Time `json:"dataRegistro"`
	TipoObs        string    `json:"tipoObs"`
	TipoObsLabel   string    `json:"tipoObsLabel"`
	RangeAvaliacao int       `json:"rangeAvaliacao"`
	Obs            string    `json:"obs"`
	ProfessorID    uuid.UUID `json:"professorId"`
	CriadoEm       time.Time `json:"criadoEm"`
}

// CalcularIdade devolve a idade em anos completos na data hoje.
// O aniversário conta a partir do próprio dia; uma data zero resulta em 0.
func CalcularIdade(nascimento, hoje time.Time) int {
	if nascimento.IsZero() {
		return 0
	}
	ny, nm, nd := nascimento.Date()
	hy, hm, hd := hoje.Date()
	idade := hy - ny
	if hm < nm || (hm == nm && hd < nd) {
		idade--
	}
	if idade < 0 {
		return 0
	}
	return idade
}

// TransformTurma renomeia os campos da linha para a visão.
func TransformTurma(row models.DBTurma) Turma {
	return Turma{
		ID:           row.ID,
		Nome:         row.Nome,
		FaixaEtaria:  row.FaixaEtaria,
		Cor:          row.Cor,
		AlunosCount:  row.AlunosCount,
		ProfessorID:  row.ProfessorID,
		CriadoEm:     row.CreatedAt,
		AtualizadoEm: row.UpdatedAt,
	}
}

// TransformAluno calcula a idade e resolve o nome da turma por turmasByID.
// Sem a turma no mapa, usa o join da linha; sem nenhum dos dois, "Sem Turma".
func TransformAluno(row models.DBAluno, turmasByID map[uuid.UUID]Turma, hoje time.Time) Aluno {
	turma := SemTurma
	if t, ok := turmasByID[row.TurmaID]; ok {
		turma = t.Nome
	} else if row.Turma != nil && row.Turma.Nome != "" {
		turma = row.Turma.Nome
	}

	aluno := Aluno{
		ID:               row.ID,
		Nome:             row.Nome,
		Idade:            CalcularIdade(row.DataNascimento, hoje),
		TurmaID:          row.TurmaID,
		Turma:            turma,
		Responsavel:      row.Responsavel,
		Telefone:         deref(row.Telefone),
		Observacoes:      deref(row.Observacoes),
		RelatoriosCount:  row.RelatoriosCount,
		ObservacoesCount: row.ObservacoesCount,
		ProfessorID:      row.ProfessorID,
		CriadoEm:         row.CreatedAt,
		AtualizadoEm:     row.UpdatedAt,
	}
	if !row.DataNascimento.IsZero() {
		aluno.DataNascimento = row.DataNascimento.Format(utils.DateLayout)
	}
	return aluno
}

// TransformRelatorio resolve aluno e turma por alunosByID. Nunca falha:
// aluno fora do conjunto carregado vira "Aluno Desconhecido" / "Sem Turma".
func TransformRelatorio(row models.DBRelatorio, alunosByID map[uuid.UUID]Aluno) Relatorio {
	alunoNome, turma := AlunoDesconhecido, SemTurma
	if a, ok := alunosByID[row.AlunoID]; ok {
		alunoNome = a.Nome
		if a.Turma != "" {
			turma = a.Turma
		}
	}
	return Relatorio{
		ID:           row.ID,
		AlunoID:      row.AlunoID,
		AlunoNome:    alunoNome,
		Turma:        turma,
		Titulo:       row.Titulo,
		Periodo:      row.Periodo,
		Conteudo:     row.Conteudo,
		Observacoes:  deref(row.Observacoes),
		Status:       row.Status,
		GeradoPorIA:  row.GeradoPorIA,
		ProfessorID:  row.ProfessorID,
		CriadoEm:     row.CreatedAt,
		AtualizadoEm: row.UpdatedAt,
	}
}

// TransformObservacao resolve o nome do aluno por alunosByID, com o join da linha como reserva.
func TransformObservacao(row models.DBObservacao, alunosByID map[uuid.UUID]Aluno) Observacao {
	nome := AlunoDesconhecido
	if a, ok := alunosByID[row.IDAluno]; ok {
		nome = a.Nome
	} else if row.Aluno != nil && row.Aluno.Nome != "" {
		nome = row.Aluno.Nome
	}
	return Observacao{
		ID:             row.ID,
		IDAluno:        row.IDAluno,
		AlunoNome:      nome,
		DataRegistro:   row.DataRegistro,
		TipoObs:        row.TipoObs,
		TipoObsLabel:   models.LabelTipoObs(row.TipoObs),
		RangeAvaliacao: row.RangeAvaliacao,
		Obs:            row.Obs,
		ProfessorID:    row.ProfessorID,
		CriadoEm:       row.CreatedAt,
	}
}

// Turmas transforma a lista preservando a ordem.
func Turmas(rows []models.DBTurma) []Turma {
	out := make([]Turma, 0, len(rows))
	for _, r := range rows {
		out = append(out, TransformTurma(r))
	}
	return out
}

// Alunos transforma a lista preservando a ordem.
func Alunos(rows []models.DBAluno, turmasByID map[uuid.UUID]Turma, hoje time.Time) []Aluno {
	out := make([]Aluno, 0, len(rows))
	for _, r := range rows {
		out = append(out, TransformAluno(r, turmasByID, hoje))
	}
	return out
}

// Relatorios transforma a lista preservando a ordem.
func Relatorios(rows []models.DBRelatorio, alunosByID map[uuid.UUID]Aluno) []Relatorio {
	out := make([]Relatorio, 0, len(rows))
	for _, r := range rows {
		out = append(out, TransformRelatorio(r, alunosByID))
	}
	return out
}

// Observacoes transforma a lista preservando a ordem.
func Observacoes(rows []models.DBObservacao, alunosByID map[uuid.UUID]Aluno) []Observacao {
	out := make([]Observacao, 0, len(rows))
	for _, r := range rows {
		out = append(out, TransformObservacao(r, alunosByID))
	}
	return out
}

// IndexTurmas monta a tabela de consulta por ID.
func IndexTurmas(turmas []Turma) map[uuid.UUID]Turma {
	m := make(map[uuid.UUID]Turma, len(turmas))
	for _, t := range turmas {
		m[t.ID] = t
	}
	return m
}

// IndexAlunos monta a tabela de consulta por ID.
func IndexAlunos(alunos []Aluno) map[uuid.UUID]Aluno {
	m := make(map[uuid.UUID]Aluno, len(alunos))
	for _, a := range alunos {
		m[a.ID] = a
	}
	return m
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
