package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Erros sentinela da aplicação. Verifique com errors.Is(err, ErrNotFound).
var (
	// --- Erros Gerais ---
	ErrInternal      = errors.New("erro interno da aplicação")
	ErrConfiguration = errors.New("erro de configuração da aplicação")

	// --- Autenticação e Sessão ---
	ErrNotAuthenticated   = errors.New("não autenticado")
	ErrInvalidCredentials = errors.New("credenciais inválidas (email ou senha)")
	ErrEmailTaken         = errors.New("email já cadastrado")
	ErrWeakPassword       = errors.New("senha fraca")
	ErrProfileNotFound    = errors.New("perfil do usuário não encontrado")

	// --- Autorização ---
	ErrPermissionDenied = errors.New("permissão negada")
	ErrCrossTenantWrite error = &crossTenantError{}

	// --- Banco de Dados ---
	ErrBackend  = errors.New("erro na operação com o backend")
	ErrNotFound = errors.New("registro não encontrado")

	// --- Validação ---
	ErrValidation = errors.New("erro de validação nos dados fornecidos")

	// --- Serviços Externos ---
	ErrAIService = errors.New("falha no serviço de IA")
)

// crossTenantError é uma negação de permissão específica: escrita em nome de outro professor.
type crossTenantError struct{}

func (*crossTenantError) Error() string {
	return "escrita em nome de outro professor não permitida"
}

// Is faz com que errors.Is(ErrCrossTenantWrite, ErrPermissionDenied) seja verdadeiro.
func (*crossTenantError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// ValidationError contém detalhes sobre os campos que falharam na validação.
type ValidationError struct {
	// Message é uma mensagem geral sobre a falha.
	Message string
	// Fields mapeia nomes de campos para a descrição do problema.
	Fields map[string]string
}

// NewValidationError cria uma nova instância de ValidationError.
func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	if ve.Message != "" {
		sb.WriteString(ve.Message)
	} else {
		sb.WriteString("Erro de validação")
	}
	if len(ve.Fields) > 0 {
		keys := make([]string, 0, len(ve.Fields))
		for k := range ve.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, ve.Fields[k]))
		}
		sb.WriteString(" (Detalhes: ")
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString(")")
	}
	return sb.String()
}

// Is permite errors.Is(err, ErrValidation).
func (ve *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// BackendError envolve qualquer falha do armazenamento, preservando a mensagem original.
type BackendError struct {
	// Operation descreve a operação em andamento (ex: "criando turma").
	Operation string
	// Err é o erro original do driver ou do ORM.
	Err error
}

// NewBackendError cria um BackendError. Se err for nil, usa ErrBackend como base.
func NewBackendError(operation string, err error) *BackendError {
	if err == nil {
		err = ErrBackend
	}
	return &BackendError{Operation: operation, Err: err}
}

func (be *BackendError) Error() string {
	return fmt.Sprintf("erro do backend durante %s: %v", be.Operation, be.Err)
}

func (be *BackendError) Unwrap() error {
	return be.Err
}

// Is: um BackendError é sempre um ErrBackend.
func (be *BackendError) Is(target error) bool {
	return target == ErrBackend
}

// WrapErrorf envolve um erro existente com uma mensagem formatada, preservando-o para errors.Is/As.
func WrapErrorf(originalErr error, format string, args ...interface{}) error {
	if originalErr == nil {
		return fmt.Errorf(format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), originalErr)
}

// UserMessage traduz um erro da taxonomia para a mensagem exibida ao usuário.
func UserMessage(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrNotAuthenticated):
		return "Sessão expirada ou inexistente. Faça login novamente."
	case errors.Is(err, ErrInvalidCredentials):
		return "Email ou senha inválidos."
	case errors.Is(err, ErrEmailTaken):
		return "Este email já está cadastrado."
	case errors.Is(err, ErrWeakPassword):
		return "A senha informada é muito fraca."
	case errors.Is(err, ErrProfileNotFound):
		return "Perfil do usuário não encontrado. Contate o administrador."
	case errors.Is(err, ErrCrossTenantWrite):
		return "Você não pode registrar dados em nome de outro professor."
	case errors.Is(err, ErrPermissionDenied):
		return "Você não tem permissão para esta ação."
	case errors.Is(err, ErrNotFound):
		return "Registro não encontrado. Atualize a lista."
	case errors.Is(err, ErrAIService):
		return "Não foi possível obter resposta da IA. Tente novamente."
	case errors.Is(err, ErrBackend):
		var be *BackendError
		if errors.As(err, &be) && be.Err != nil {
			return be.Err.Error()
		}
		return err.Error()
	default:
		return err.Error()
	}
}
