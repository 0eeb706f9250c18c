package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/transform"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

// Formatos de exportação.
const (
	FormatoXLSX = "xlsx"
	FormatoCSV  = "csv"
)

// ExportService gera planilhas com os dados visíveis ao chamador.
// Os métodos devolvem o caminho do arquivo gerado.
type ExportService interface {
	ExportarRelatorios(ctx context.Context, turmaID *uuid.UUID, formato string) (string, error)
	ExportarTurma(ctx context.Context, turmaID uuid.UUID, formato string) (string, error)
}

type exportServiceImpl struct {
	turmas     TurmaService
	alunos     AlunoService
	relatorios RelatorioService
	ac         *auth.AccessControl
	exportDir  string
	now        Clock
}

func NewExportService(turmas TurmaService, alunos AlunoService, relatorios RelatorioService, ac *auth.AccessControl, exportDir string) ExportService {
	if turmas == nil || alunos == nil || relatorios == nil || ac == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewExportService")
	}
	return &exportServiceImpl{turmas: turmas, alunos: alunos, relatorios: relatorios, ac: ac, exportDir: exportDir, now: utcNow}
}

func (s *exportServiceImpl) ExportarRelatorios(ctx context.Context, turmaID *uuid.UUID, formato string) (string, error) {
	formato, err := normalizarFormato(formato)
	if err != nil {
		return "", err
	}
	if turmaID != nil {
		if _, err := s.turmas.Get(ctx, *turmaID); err != nil {
			return "", err
		}
	}
	alunos, err := s.carregarAlunos(ctx)
	if err != nil {
		return "", err
	}
	rows, err := s.relatorios.List(ctx, repositories.RelatorioFiltro{TurmaID: turmaID})
	if err != nil {
		return "", err
	}

	sheet := utils.Sheet{
		Name:    "Relatórios",
		Headers: []string{"Aluno", "Turma", "Título", "Período", "Status", "Gerado por IA", "Criado em", "Atualizado em"},
		Widths:  map[int]float64{0: 28, 2: 32, 3: 20},
	}
	for _, r := range transform.Relatorios(rows, transform.IndexAlunos(alunos)) {
		sheet.Rows = append(sheet.Rows, []interface{}{
			r.AlunoNome, r.Turma, r.Titulo, r.Periodo, r.Status, r.GeradoPorIA, r.CriadoEm, r.AtualizadoEm,
		})
	}
	return s.gravar(sheet, "relatorios", formato, nil)
}

// ExportarTurma gera a lista de alunos da turma com a idade calculada na data da exportação.
func (s *exportServiceImpl) ExportarTurma(ctx context.Context, turmaID uuid.UUID, formato string) (string, error) {
	formato, err := normalizarFormato(formato)
	if err != nil {
		return "", err
	}
	turma, err := s.turmas.Get(ctx, turmaID)
	if err != nil {
		return "", err
	}
	rows, err := s.alunos.ListByTurma(ctx, turmaID)
	if err != nil {
		return "", err
	}

	turmas := transform.IndexTurmas([]transform.Turma{transform.TransformTurma(*turma)})
	sheet := utils.Sheet{
		Name:    nomeAba(turma.Nome),
		Headers: []string{"Nome", "Idade", "Data de nascimento", "Responsável", "Telefone", "Observações", "Relatórios", "Observações pedagógicas"},
		Widths:  map[int]float64{0: 28, 3: 28, 5: 40},
	}
	for _, a := range transform.Alunos(rows, turmas, s.now()) {
		sheet.Rows = append(sheet.Rows, []interface{}{
			a.Nome, a.Idade, a.DataNascimento, a.Responsavel, a.Telefone, a.Observacoes, a.RelatoriosCount, a.ObservacoesCount,
		})
	}
	return s.gravar(sheet, "turma_"+slug(turma.Nome), formato, &utils.ExportOptions{MaskColumns: []string{"Telefone"}})
}

func (s *exportServiceImpl) carregarAlunos(ctx context.Context) ([]transform.Aluno, error) {
	turmas, err := s.turmas.List(ctx)
	if err != nil {
		return nil, err
	}
	alunos, err := s.alunos.List(ctx)
	if err != nil {
		return nil, err
	}
	return transform.Alunos(alunos, transform.IndexTurmas(transform.Turmas(turmas)), s.now()), nil
}

func (s *exportServiceImpl) gravar(sheet utils.Sheet, prefixo, formato string, opts *utils.ExportOptions) (string, error) {
	nome := fmt.Sprintf("%s_%s", prefixo, s.now().Format("20060102_150405"))
	if formato == FormatoCSV {
		return utils.ExportToCSV(sheet, nome+".csv", s.exportDir, opts)
	}
	return utils.ExportToXLSX([]utils.Sheet{sheet}, nome+".xlsx", s.exportDir, opts)
}

func normalizarFormato(formato string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(formato)); f {
	case "", FormatoXLSX:
		return FormatoXLSX, nil
	case FormatoCSV:
		return FormatoCSV, nil
	default:
		return "", appErrors.NewValidationError("Formato de exportação inválido (xlsx ou csv).", map[string]string{"formato": f})
	}
}

// nomeAba respeita o limite de 31 caracteres do Excel e remove caracteres proibidos.
func nomeAba(nome string) string {
	nome = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, nome)
	if r := []rune(nome); len(r) > 31 {
		nome = string(r[:31])
	}
	if nome == "" {
		return "Turma"
	}
	return nome
}

func slug(s string) string {
	s = strings.ToLower(utils.FoldAccents(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	return b.String()
}
