package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
)

// ProfileRepository define as operações sobre a tabela profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.DBProfile, error)
	Create(ctx context.Context, profile *models.DBProfile) error
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.DBProfile, error)
}

type gormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository cria uma nova instância de gormProfileRepository.
func NewGormProfileRepository(db *gorm.DB) ProfileRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormProfileRepository")
	}
	return &gormProfileRepository{db: db}
}

// GetByID busca o perfil de um usuário. Ausência é ErrProfileNotFound, não ErrNotFound:
// um usuário autenticado sem perfil é erro de configuração da conta.
func (r *gormProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DBProfile, error) {
	var profile models.DBProfile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: usuário %s sem perfil", appErrors.ErrProfileNotFound, id)
		}
		appLogger.Errorf("Erro ao buscar perfil %s: %v", id, err)
		return nil, appErrors.NewBackendError("buscando perfil", err)
	}
	return &profile, nil
}

// Create insere um perfil. O ID deve ser o do usuário de autenticação.
func (r *gormProfileRepository) Create(ctx context.Context, profile *models.DBProfile) error {
	if profile.ID == uuid.Nil {
		return appErrors.NewValidationError("Perfil sem ID de usuário.", map[string]string{"id": "obrigatório"})
	}
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		appLogger.Errorf("Erro ao criar perfil %s (%s): %v", profile.ID, profile.Nome, err)
		return appErrors.NewBackendError("criando perfil", err)
	}
	appLogger.Infof("Perfil criado: %s (%s, tipo %s)", profile.Nome, profile.ID, profile.Tipo)
	return nil
}

// ListByIDs busca vários perfis de uma vez (nomes de professores em listagens e exportações).
func (r *gormProfileRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.DBProfile, error) {
	var profiles []models.DBProfile
	if len(ids) == 0 {
		return profiles, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		appLogger.Errorf("Erro ao buscar perfis por IDs: %v", err)
		return nil, appErrors.NewBackendError("buscando perfis", err)
	}
	return profiles, nil
}
