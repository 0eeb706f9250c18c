package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
)

// ProgressoMensal é uma linha de get_progresso_aluno: observações e média por mês.
type ProgressoMensal struct {
	Mes              string          `json:"mes"` // AAAA-MM
	TotalObservacoes int64           `json:"totalObservacoes"`
	MediaAvaliacao   decimal.Decimal `json:"mediaAvaliacao"`
}

// MediaPorTipo é uma linha de get_aluno_media_avaliacao.
type MediaPorTipo struct {
	TipoObs        string          `json:"tipoObs" db:"tipo_obs"`
	Total          int64           `json:"total" db:"total"`
	SomaAvaliacoes int64           `json:"-" db:"soma"`
	MediaAvaliacao decimal.Decimal `json:"mediaAvaliacao" db:"-"`
}

// ObservacaoPeriodo é uma linha de get_observacoes_periodo (observação com nome do aluno).
type ObservacaoPeriodo struct {
	ID             uint64    `json:"id" db:"id"`
	AlunoID        uuid.UUID `json:"alunoId" db:"id_aluno"`
	AlunoNome      string    `json:"alunoNome" db:"aluno_nome"`
	DataRegistro   time.Time `json:"dataRegistro" db:"data_registro"`
	TipoObs        string    `json:"tipoObs" db:"tipo_obs"`
	RangeAvaliacao int       `json:"rangeAvaliacao" db:"range_avaliacao"`
	Obs            string    `json:"obs" db:"obs"`
}

// EstatisticasTurma é o resultado de get_estatisticas_turma.
type EstatisticasTurma struct {
	TurmaID              uuid.UUID       `json:"turmaId" db:"-"`
	TotalAlunos          int64           `json:"totalAlunos" db:"total_alunos"`
	TotalObservacoes     int64           `json:"totalObservacoes" db:"total_observacoes"`
	SomaAvaliacoes       int64           `json:"-" db:"soma_avaliacoes"`
	TotalRelatorios      int64           `json:"totalRelatorios" db:"total_relatorios"`
	RelatoriosConcluidos int64           `json:"relatoriosConcluidos" db:"relatorios_concluidos"`
	MediaAvaliacao       decimal.Decimal `json:"mediaAvaliacao" db:"-"`
}

// EstatisticasRepository executa as consultas agregadas de acompanhamento.
type EstatisticasRepository interface {
	ProgressoAluno(ctx context.Context, alunoID uuid.UUID) ([]ProgressoMensal, error)
	MediaAvaliacaoAluno(ctx context.Context, alunoID uuid.UUID) ([]MediaPorTipo, error)
	ObservacoesPeriodo(ctx context.Context, professorID uuid.UUID, inicio, fim time.Time) ([]ObservacaoPeriodo, error)
	EstatisticasTurma(ctx context.Context, turmaID uuid.UUID) (*EstatisticasTurma, error)
}

type sqlxEstatisticasRepository struct {
	db *sqlx.DB
}

// NewSqlxEstatisticasRepository reaproveita o pool do GORM para as consultas agregadas.
func NewSqlxEstatisticasRepository(db *gorm.DB) EstatisticasRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewSqlxEstatisticasRepository")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Fatalf("Falha ao obter *sql.DB para estatísticas: %v", err)
	}
	return &sqlxEstatisticasRepository{db: sqlx.NewDb(sqlDB, data.DriverName(db))}
}

// ProgressoAluno agrupa as observações do aluno por mês (UTC), do mais antigo ao mais recente.
func (r *sqlxEstatisticasRepository) ProgressoAluno(ctx context.Context, alunoID uuid.UUID) ([]ProgressoMensal, error) {
	type row struct {
		DataRegistro   time.Time `db:"data_registro"`
		RangeAvaliacao int64     `db:"range_avaliacao"`
	}
	rows := []row{}
	query := r.db.Rebind(`
SELECT data_registro, range_avaliacao
FROM observacoes_aluno
WHERE id_aluno = ?
ORDER BY data_registro ASC
`)
	if err := r.db.SelectContext(ctx, &rows, query, alunoID); err != nil {
		appLogger.Errorf("Erro em get_progresso_aluno (%s): %v", alunoID, err)
		return nil, appErrors.NewBackendError("calculando progresso do aluno", err)
	}

	progresso := []ProgressoMensal{}
	var somaMes int64
	for _, rw := range rows {
		mes := rw.DataRegistro.UTC().Format("2006-01")
		n := len(progresso)
		if n == 0 || progresso[n-1].Mes != mes {
			if n > 0 {
				progresso[n-1].MediaAvaliacao = Media(somaMes, progresso[n-1].TotalObservacoes)
			}
			progresso = append(progresso, ProgressoMensal{Mes: mes})
			somaMes = 0
			n++
		}
		progresso[n-1].TotalObservacoes++
		somaMes += rw.RangeAvaliacao
	}
	if n := len(progresso); n > 0 {
		progresso[n-1].MediaAvaliacao = Media(somaMes, progresso[n-1].TotalObservacoes)
	}
	return progresso, nil
}

// MediaAvaliacaoAluno devolve a média de avaliação do aluno por tipo de observação.
func (r *sqlxEstatisticasRepository) MediaAvaliacaoAluno(ctx context.Context, alunoID uuid.UUID) ([]MediaPorTipo, error) {
	medias := []MediaPorTipo{}
	query := r.db.Rebind(`
SELECT tipo_obs, COUNT(*) AS total, SUM(range_avaliacao) AS soma
FROM observacoes_aluno
WHERE id_aluno = ?
GROUP BY tipo_obs
ORDER BY tipo_obs
`)
	if err := r.db.SelectContext(ctx, &medias, query, alunoID); err != nil {
		appLogger.Errorf("Erro em get_aluno_media_avaliacao (%s): %v", alunoID, err)
		return nil, appErrors.NewBackendError("calculando média de avaliação", err)
	}
	for i := range medias {
		medias[i].MediaAvaliacao = Media(medias[i].SomaAvaliacoes, medias[i].Total)
	}
	return medias, nil
}

// ObservacoesPeriodo lista as observações do professor entre inicio e fim (inclusive).
func (r *sqlxEstatisticasRepository) ObservacoesPeriodo(ctx context.Context, professorID uuid.UUID, inicio, fim time.Time) ([]ObservacaoPeriodo, error) {
	obs := []ObservacaoPeriodo{}
	query := r.db.Rebind(`
SELECT o.id, o.id_aluno, a.nome AS aluno_nome, o.data_registro, o.tipo_obs, o.range_avaliacao, o.obs
FROM observacoes_aluno o
JOIN alunos a ON a.id = o.id_aluno
WHERE o.professor_id = ? AND o.data_registro >= ? AND o.data_registro <= ?
ORDER BY o.data_registro DESC, o.id DESC
`)
	if err := r.db.SelectContext(ctx, &obs, query, professorID, inicio.UTC(), fim.UTC()); err != nil {
		appLogger.Errorf("Erro em get_observacoes_periodo (professor %s): %v", professorID, err)
		return nil, appErrors.NewBackendError("listando observações do período", err)
	}
	return obs, nil
}

// EstatisticasTurma consolida alunos, observações e relatórios de uma turma.
func (r *sqlxEstatisticasRepository) EstatisticasTurma(ctx context.Context, turmaID uuid.UUID) (*EstatisticasTurma, error) {
	var est EstatisticasTurma
	query := r.db.Rebind(`
SELECT
  (SELECT COUNT(*) FROM alunos WHERE turma_id = ?) AS total_alunos,
  (SELECT COUNT(*) FROM observacoes_aluno o JOIN alunos a ON a.id = o.id_aluno WHERE a.turma_id = ?) AS total_observacoes,
  (SELECT COALESCE(SUM(o.range_avaliacao), 0) FROM observacoes_aluno o JOIN alunos a ON a.id = o.id_aluno WHERE a.turma_id = ?) AS soma_avaliacoes,
  (SELECT COUNT(*) FROM relatorios r JOIN alunos a ON a.id = r.aluno_id WHERE a.turma_id = ?) AS total_relatorios,
  (SELECT COUNT(*) FROM relatorios r JOIN alunos a ON a.id = r.aluno_id WHERE a.turma_id = ? AND r.status = ?) AS relatorios_concluidos
`)
	err := r.db.GetContext(ctx, &est, query, turmaID, turmaID, turmaID, turmaID, turmaID, models.StatusConcluido)
	if err != nil {
		appLogger.Errorf("Erro em get_estatisticas_turma (%s): %v", turmaID, err)
		return nil, appErrors.NewBackendError("calculando estatísticas da turma", err)
	}
	est.TurmaID = turmaID
	est.MediaAvaliacao = Media(est.SomaAvaliacoes, est.TotalObservacoes)
	return &est, nil
}

// Media devolve soma/total arredondado a duas casas (zero quando total é zero).
func Media(soma, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(soma).Div(decimal.NewFromInt(total)).Round(2)
}
