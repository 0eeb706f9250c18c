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
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
)

// AuthRepository persiste usuários e sessões do provedor de autenticação local.
type AuthRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.DBAuthUser, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.DBAuthUser, error)
	CreateUser(ctx context.Context, user *models.DBAuthUser) error
	TouchLastSignIn(ctx context.Context, id uuid.UUID, at time.Time) error

	CreateSession(ctx context.Context, session *models.DBAuthSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.DBAuthSession, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type gormAuthRepository struct {
	db *gorm.DB
}

// NewGormAuthRepository cria uma nova instância de gormAuthRepository.
func NewGormAuthRepository(db *gorm.DB) AuthRepository {
	if db == nil {
		appLogger.Fatalf("gorm.DB não pode ser nil para NewGormAuthRepository")
	}
	return &gormAuthRepository{db: db}
}

func (r *gormAuthRepository) GetUserByEmail(ctx context.Context, email string) (*models.DBAuthUser, error) {
	var user models.DBAuthUser
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", strings.TrimSpace(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: usuário com email '%s'", appErrors.ErrNotFound, email)
		}
		appLogger.Errorf("Erro ao buscar usuário por email '%s': %v", email, err)
		return nil, appErrors.NewBackendError("buscando usuário por email", err)
	}
	return &user, nil
}

func (r *gormAuthRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.DBAuthUser, error) {
	var user models.DBAuthUser
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: usuário %s", appErrors.ErrNotFound, id)
		}
		appLogger.Errorf("Erro ao buscar usuário %s: %v", id, err)
		return nil, appErrors.NewBackendError("buscando usuário", err)
	}
	return &user, nil
}

// CreateUser insere o usuário. Email duplicado vira ErrEmailTaken.
func (r *gormAuthRepository) CreateUser(ctx context.Context, user *models.DBAuthUser) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", appErrors.ErrEmailTaken, user.Email)
		}
		appLogger.Errorf("Erro ao criar usuário '%s': %v", user.Email, err)
		return appErrors.NewBackendError("criando usuário", err)
	}
	return nil
}

func (r *gormAuthRepository) TouchLastSignIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.DBAuthUser{}).Where("id = ?", id).Update("last_sign_in_at", at).Error
	if err != nil {
		appLogger.Warnf("Falha ao atualizar último login do usuário %s: %v", id, err)
		return appErrors.NewBackendError("atualizando último login", err)
	}
	return nil
}

func (r *gormAuthRepository) CreateSession(ctx context.Context, session *models.DBAuthSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		appLogger.Errorf("Erro ao criar sessão para usuário %s: %v", session.UserID, err)
		return appErrors.NewBackendError("criando sessão", err)
	}
	return nil
}

func (r *gormAuthRepository) GetSession(ctx context.Context, id uuid.UUID) (*models.DBAuthSession, error) {
	var session models.DBAuthSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sessão %s", appErrors.ErrNotFound, id)
		}
		appLogger.Errorf("Erro ao buscar sessão %s: %v", id, err)
		return nil, appErrors.NewBackendError("buscando sessão", err)
	}
	return &session, nil
}

func (r *gormAuthRepository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.DBAuthSession{}, "id = ?", id).Error; err != nil {
		appLogger.Errorf("Erro ao remover sessão %s: %v", id, err)
		return appErrors.NewBackendError("removendo sessão", err)
	}
	return nil
}

func (r *gormAuthRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.DBAuthSession{})
	if result.Error != nil {
		appLogger.Errorf("Erro ao limpar sessões expiradas: %v", result.Error)
		return 0, appErrors.NewBackendError("limpando sessões expiradas", result.Error)
	}
	if result.RowsAffected > 0 {
		appLogger.Infof("%d sessões expiradas removidas.", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
