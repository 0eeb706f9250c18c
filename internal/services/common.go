package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
)

// DonoDesconhecido é o nome usado quando o perfil do dono não pode ser lido.
const DonoDesconhecido = "Professor desconhecido"

// RemovedCounts é o que uma exclusão em cascata removeu além da própria linha.
type RemovedCounts struct {
	Alunos      int64 `json:"alunos"`
	Observacoes int64 `json:"observacoes"`
	Relatorios  int64 `json:"relatorios"`
}

// DeleteResult resume uma exclusão validada para a mensagem ao usuário.
type DeleteResult struct {
	Success       bool          `json:"success"`
	OwnerName     string        `json:"ownerName"`
	RemovedCounts RemovedCounts `json:"removedCounts"`
}

// Clock devolve o instante atual. Trocado nos testes.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// notVisible é o erro para linhas de outro professor: para o chamador, elas não existem.
func notVisible(entidade string, id interface{}) error {
	return fmt.Errorf("%w: %s %v não encontrado(a)", appErrors.ErrNotFound, entidade, id)
}

// checkOwnership devolve ErrNotFound quando o chamador não pode ver a linha.
func checkOwnership(caller *auth.Caller, ownerID uuid.UUID, entidade string, id interface{}) error {
	if !caller.CanAccess(ownerID) {
		appLogger.Warnf("Usuário %s tentou acessar %s %v do professor %s.", caller.ID(), entidade, id, ownerID)
		return notVisible(entidade, id)
	}
	return nil
}

// ownerName lê o nome do professor dono. Perfil ausente não impede a exclusão.
func ownerName(ctx context.Context, profiles repositories.ProfileRepository, ownerID uuid.UUID) (string, error) {
	profile, err := profiles.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, appErrors.ErrProfileNotFound) {
			return DonoDesconhecido, nil
		}
		return "", err
	}
	return profile.Nome, nil
}
