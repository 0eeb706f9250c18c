package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
)

// IsAdmin indica se o perfil é de administrador.
func IsAdmin(profile *models.DBProfile) bool { return profile.IsAdmin() }

// IsProfessor indica se o perfil é de professor.
func IsProfessor(profile *models.DBProfile) bool { return profile.IsProfessor() }

// CanManageTurmas: admin e professor podem gerenciar turmas.
func CanManageTurmas(profile *models.DBProfile) bool {
	return profile.IsAdmin() || profile.IsProfessor()
}

// Caller é o resultado de ValidatePermissions: usuário autenticado e seu perfil.
type Caller struct {
	User    *User
	Profile *models.DBProfile
}

// ID é o id do chamador (igual ao do perfil).
func (c *Caller) ID() uuid.UUID { return c.Profile.ID }

// IsAdmin indica se o chamador é administrador.
func (c *Caller) IsAdmin() bool { return c.Profile.IsAdmin() }

// ResolveOwner define o professor dono de uma escrita.
// Admin: explicit se informado, senão ele mesmo. Professor: sempre ele mesmo,
// e ErrCrossTenantWrite se explicit apontar para outro.
func (c *Caller) ResolveOwner(explicit *uuid.UUID) (uuid.UUID, error) {
	self := c.ID()
	if c.IsAdmin() {
		if explicit != nil && *explicit != uuid.Nil {
			return *explicit, nil
		}
		return self, nil
	}
	if explicit != nil && *explicit != uuid.Nil && *explicit != self {
		appLogger.Warnf("Professor %s tentou escrever em nome de %s.", self, *explicit)
		return uuid.Nil, core.ErrCrossTenantWrite
	}
	return self, nil
}

// CanAccess indica se o chamador pode ler ou alterar uma linha do professor ownerID.
func (c *Caller) CanAccess(ownerID uuid.UUID) bool {
	return c.IsAdmin() || ownerID == c.ID()
}

// AccessControl é o portão central de todas as operações de dados.
type AccessControl struct {
	sessions SessionSource
	profiles repositories.ProfileRepository
}

// NewAccessControl cria o controle de acesso sobre uma fonte de sessão e o repositório de perfis.
func NewAccessControl(sessions SessionSource, profiles repositories.ProfileRepository) *AccessControl {
	if sessions == nil || profiles == nil {
		appLogger.Fatalf("SessionSource e ProfileRepository são obrigatórios para NewAccessControl")
	}
	return &AccessControl{sessions: sessions, profiles: profiles}
}

// CurrentSession devolve a sessão ativa (para anexar o token em chamadas externas).
func (ac *AccessControl) CurrentSession(ctx context.Context) (*Session, error) {
	session, err := ac.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	return session, nil
}

// GetCurrentUser devolve o usuário da sessão ativa ou ErrNotAuthenticated.
func (ac *AccessControl) GetCurrentUser(ctx context.Context) (*User, error) {
	session, err := ac.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.User.ID == uuid.Nil {
		return nil, core.ErrNotAuthenticated
	}
	user := session.User
	return &user, nil
}

// GetProfile busca o perfil do usuário. Ausência é ErrProfileNotFound.
func (ac *AccessControl) GetProfile(ctx context.Context, userID uuid.UUID) (*models.DBProfile, error) {
	profile, err := ac.profiles.GetByID(ctx, userID)
	if err != nil {
		appLogger.Errorf("Perfil do usuário %s indisponível: %v", userID, err)
		return nil, err
	}
	return profile, nil
}

// ValidatePermissions exige sessão, perfil e tipo admin ou professor.
func (ac *AccessControl) ValidatePermissions(ctx context.Context) (*Caller, error) {
	user, err := ac.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := ac.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !models.IsValidTipo(profile.Tipo) {
		appLogger.Warnf("Usuário %s com tipo de perfil não reconhecido: '%s'", user.ID, profile.Tipo)
		return nil, fmt.Errorf("%w: tipo de perfil '%s'", core.ErrPermissionDenied, profile.Tipo)
	}
	return &Caller{User: user, Profile: profile}, nil
}

// DetermineOwner valida as permissões e resolve o dono de uma escrita.
func (ac *AccessControl) DetermineOwner(ctx context.Context, explicit *uuid.UUID) (uuid.UUID, error) {
	caller, err := ac.ValidatePermissions(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return caller.ResolveOwner(explicit)
}
