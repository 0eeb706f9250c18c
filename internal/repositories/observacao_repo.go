package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

// ObservacaoFiltro agrupa os filtros opcionais de listagem de observações.
type ObservacaoFiltro struct {
	AlunoID *uuid.UUID
	TipoObs string
	// Texto é buscado no campo obs (full-text no Postgres, sem acentos nos demais).
	Texto  string
	Inicio *time.Time
	Fim    *time.Time
}

// ObservacaoRepository define as operações de acesso à tabela observacoes_aluno.
type ObservacaoRepository interface {
	ListByProfessor(ctx context.Context, professorID uuid.UUID, filtro ObservacaoFiltro) ([]models.DBObservacao, error)
	GetByID(ctx context.Context, id uint64) (*models.DBObservacao, error)
	Create(ctx context.Context, data models.ObservacaoCreate, professorID uuid.UUID) (*models.DBObservacao, error)
	Update(ctx context.Context, id uint64, data models.ObservacaoUpdate) (*models.DBObservacao, error)
	Delete(ctx context.Context, id uint64) error
}

type gormObservacaoRepository struct {
	db *gorm.DB
}

// NewGormObservacaoRepository cria uma nova instância de gormObservacaoRepository.
func NewGormObservacaoRepository(db *gorm.DB) ObservacaoRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormObservacaoRepository")
	}
	return &gormObservacaoRepository{db: db}
}

// ListByProfessor lista as observações do professor, mais recentes primeiro.
func (r *gormObservacaoRepository) ListByProfessor(ctx context.Context, professorID uuid.UUID, f ObservacaoFiltro) ([]models.DBObservacao, error) {
	query := r.db.WithContext(ctx).Where("professor_id = ?", professorID)
	if f.AlunoID != nil {
		query = query.Where("id_aluno = ?", *f.AlunoID)
	}
	if tipo := strings.TrimSpace(f.TipoObs); tipo != "" {
		query = query.Where("tipo_obs = ?", strings.ToLower(tipo))
	}
	if f.Inicio != nil {
		query = query.Where("data_registro >= ?", f.Inicio.UTC())
	}
	if f.Fim != nil {
		query = query.Where("data_registro <= ?", f.Fim.UTC())
	}

	texto := strings.TrimSpace(f.Texto)
	fullText := texto != "" && data.IsPostgres(r.db)
	if fullText {
		query = query.Where("to_tsvector('portuguese', obs) @@ plainto_tsquery('portuguese', ?)", texto)
	}

	var obs []models.DBObservacao
	if err := query.Order("data_registro DESC").Order("id DESC").Find(&obs).Error; err != nil {
		appLogger.Errorf("Erro ao listar observações do professor %s: %v", professorID, err)
		return nil, appErrors.NewBackendError("listando observações", err)
	}

	if texto != "" && !fullText {
		obs = filtrarPorTexto(obs, texto)
	}
	return obs, nil
}

// filtrarPorTexto mantém as observações cujo texto contém todos os termos, ignorando acentos e caixa.
func filtrarPorTexto(obs []models.DBObservacao, texto string) []models.DBObservacao {
	termos := strings.Fields(utils.FoldAccents(texto))
	filtradas := make([]models.DBObservacao, 0, len(obs))
	for _, o := range obs {
		alvo := utils.FoldAccents(o.Obs)
		ok := true
		for _, termo := range termos {
			if !strings.Contains(alvo, termo) {
				ok = false
				break
			}
		}
		if ok {
			filtradas = append(filtradas, o)
		}
	}
	return filtradas
}

func (r *gormObservacaoRepository) GetByID(ctx context.Context, id uint64) (*models.DBObservacao, error) {
	var obs models.DBObservacao
	if err := r.db.WithContext(ctx).First(&obs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: observação %d não encontrada", appErrors.ErrNotFound, id)
		}
		appLogger.Errorf("Erro ao buscar observação %d: %v", id, err)
		return nil, appErrors.NewBackendError("buscando observação", err)
	}
	return &obs, nil
}

// Create registra a observação. Sem data de registro, vale o momento atual.
func (r *gormObservacaoRepository) Create(ctx context.Context, data models.ObservacaoCreate, professorID uuid.UUID) (*models.DBObservacao, error) {
	registro := time.Now().UTC()
	if data.DataRegistro != nil {
		registro = data.DataRegistro.UTC()
	}
	obs := models.DBObservacao{
		IDAluno:        data.IDAluno,
		DataRegistro:   registro,
		TipoObs:        data.TipoObs,
		RangeAvaliacao: data.RangeAvaliacao,
		Obs:            data.Obs,
		ProfessorID:    professorID,
	}
	if err := r.db.WithContext(ctx).Omit("Aluno").Create(&obs).Error; err != nil {
		appLogger.Errorf("Erro ao registrar observação para aluno %s: %v", data.IDAluno, err)
		return nil, appErrors.NewBackendError("registrando observação", err)
	}
	appLogger.Infof("Observação %d registrada (aluno %s, tipo %s, avaliação %d)", obs.ID, obs.IDAluno, obs.TipoObs, obs.RangeAvaliacao)
	return &obs, nil
}

func (r *gormObservacaoRepository) Update(ctx context.Context, id uint64, data models.ObservacaoUpdate) (*models.DBObservacao, error) {
	obs, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := data.Changes()
	if len(updates) == 0 {
		return obs, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.DBObservacao{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		appLogger.Errorf("Erro ao atualizar observação %d: %v", id, err)
		return nil, appErrors.NewBackendError("atualizando observação", err)
	}
	appLogger.Infof("Observação %d atualizada. Campos: %v", id, keysOf(updates))
	return r.GetByID(ctx, id)
}

func (r *gormObservacaoRepository) Delete(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Delete(&models.DBObservacao{}, "id = ?", id)
	if result.Error != nil {
		appLogger.Errorf("Erro ao apagar observação %d: %v", id, result.Error)
		return appErrors.NewBackendError("apagando observação", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: observação %d não encontrada para exclusão", appErrors.ErrNotFound, id)
	}
	appLogger.Infof("Observação %d apagada.", id)
	return nil
}
