package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/confirmation"
	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
)

// Toast é a notificação exibida ao fim de uma exclusão.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

// Notifier exibe notificações ao usuário.
type Notifier interface {
	Notify(t Toast)
}

// DeleteOptions controla uma exclusão feita pelo DeleteHelper.
// Por padrão a exclusão pede confirmação quando Confirm é informado.
type DeleteOptions struct {
	Confirm              confirmation.ConfirmFunc
	Notifier             Notifier
	OnSuccess            func()
	OnError              func(msg string)
	DispensarConfirmacao bool
}

func (o DeleteOptions) deveConfirmar() bool {
	return !o.DispensarConfirmacao && o.Confirm != nil
}

// DeleteHelper encadeia confirmação, exclusão validada e notificação.
// Todos os métodos devolvem true somente se a exclusão aconteceu.
type DeleteHelper struct {
	turmas      TurmaService
	alunos      AlunoService
	observacoes ObservacaoService
	relatorios  RelatorioService
}

// NewDeleteHelper cria o helper sobre os serviços de dados.
func NewDeleteHelper(turmas TurmaService, alunos AlunoService, observacoes ObservacaoService, relatorios RelatorioService) *DeleteHelper {
	if turmas == nil || alunos == nil || observacoes == nil || relatorios == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para NewDeleteHelper")
	}
	return &DeleteHelper{turmas: turmas, alunos: alunos, observacoes: observacoes, relatorios: relatorios}
}

func (h *DeleteHelper) DeleteAluno(ctx context.Context, alunoID uuid.UUID, alunoNome string, opts DeleteOptions) bool {
	if opts.deveConfirmar() {
		ok := confirmar(ctx, opts.Confirm, confirmation.Options{
			Title:       "Deletar Aluno",
			Message:     fmt.Sprintf("Deseja realmente deletar o aluno \"%s\"?\n\nEsta ação irá remover permanentemente:\n• Todas as observações pedagógicas\n• Todos os relatórios gerados\n• Todo o histórico no sistema\n\nEsta ação não pode ser desfeita.", alunoNome),
			ConfirmText: "Deletar",
			CancelText:  "Cancelar",
			Variant:     confirmation.VariantDestructive,
		})
		if !ok {
			return false
		}
	}

	resultado, err := h.alunos.DeleteWithValidation(ctx, alunoID)
	if err != nil {
		return falhou(opts, "aluno", err)
	}
	notificar(opts, Toast{
		Title: "✅ Aluno deletado com sucesso!",
		Description: fmt.Sprintf("%s foi removido. Dados deletados: %d observações, %d relatórios.",
			alunoNome, resultado.RemovedCounts.Observacoes, resultado.RemovedCounts.Relatorios),
		Variant: confirmation.VariantDefault,
	})
	return sucesso(opts)
}

// DeleteTurma pede duas confirmações: a turma leva junto todos os alunos.
func (h *DeleteHelper) DeleteTurma(ctx context.Context, turmaID uuid.UUID, turmaNome string, opts DeleteOptions) bool {
	if opts.deveConfirmar() {
		ok := confirmar(ctx, opts.Confirm, confirmation.Options{
			Title:       "Deletar Turma",
			Message:     fmt.Sprintf("Deseja realmente deletar a turma \"%s\"?\n\nEsta ação irá deletar a turma E TODOS OS ALUNOS vinculados!", turmaNome),
			ConfirmText: "Continuar",
			CancelText:  "Cancelar",
			Variant:     confirmation.VariantDestructive,
		})
		if !ok {
			return false
		}
		ok = confirmar(ctx, opts.Confirm, confirmation.Options{
			Title:       "⚠️ CONFIRMAÇÃO FINAL",
			Message:     fmt.Sprintf("ATENÇÃO: Você está prestes a deletar a turma \"%s\".\n\nTODOS os alunos, observações e relatórios serão PERDIDOS PARA SEMPRE!\n\nEsta é uma ação IRREVERSÍVEL.", turmaNome),
			ConfirmText: "SIM, DELETAR TUDO",
			CancelText:  "Cancelar",
			Variant:     confirmation.VariantDestructive,
		})
		if !ok {
			return false
		}
	}

	resultado, err := h.turmas.DeleteWithValidation(ctx, turmaID)
	if err != nil {
		return falhou(opts, "turma", err)
	}
	c := resultado.RemovedCounts
	notificar(opts, Toast{
		Title: "✅ Turma deletada com sucesso!",
		Description: fmt.Sprintf("%s foi removida. Dados deletados: %d alunos, %d observações, %d relatórios.",
			turmaNome, c.Alunos, c.Observacoes, c.Relatorios),
		Variant: confirmation.VariantDefault,
	})
	return sucesso(opts)
}

func (h *DeleteHelper) DeleteObservacao(ctx context.Context, observacaoID uint64, opts DeleteOptions) bool {
	if opts.deveConfirmar() {
		ok := confirmar(ctx, opts.Confirm, confirmation.Options{
			Title:       "Deletar Observação",
			Message:     "Deseja realmente deletar esta observação?",
			ConfirmText: "Deletar",
			CancelText:  "Cancelar",
			Variant:     confirmation.VariantDestructive,
		})
		if !ok {
			return false
		}
	}

	if _, err := h.observacoes.DeleteWithValidation(ctx, observacaoID); err != nil {
		return falhou(opts, "observação", err)
	}
	notificar(opts, Toast{
		Title:       "✅ Observação deletada",
		Description: "A observação foi removida com sucesso.",
		Variant:     confirmation.VariantDefault,
	})
	return sucesso(opts)
}

func (h *DeleteHelper) DeleteRelatorio(ctx context.Context, relatorioID uuid.UUID, relatorioTitulo string, opts DeleteOptions) bool {
	if opts.deveConfirmar() {
		ok := confirmar(ctx, opts.Confirm, confirmation.Options{
			Title:       "Deletar Relatório",
			Message:     fmt.Sprintf("Deseja realmente deletar o relatório \"%s\"?", relatorioTitulo),
			ConfirmText: "Deletar",
			CancelText:  "Cancelar",
			Variant:     confirmation.VariantDestructive,
		})
		if !ok {
			return false
		}
	}

	if _, err := h.relatorios.DeleteWithValidation(ctx, relatorioID); err != nil {
		return falhou(opts, "relatório", err)
	}
	notificar(opts, Toast{
		Title:       "✅ Relatório deletado",
		Description: fmt.Sprintf("\"%s\" foi removido com sucesso.", relatorioTitulo),
		Variant:     confirmation.VariantDefault,
	})
	return sucesso(opts)
}

// confirmar trata erro do diálogo (ex.: contexto cancelado) como cancelamento.
func confirmar(ctx context.Context, confirm confirmation.ConfirmFunc, opts confirmation.Options) bool {
	ok, err := confirm(ctx, opts)
	if err != nil {
		appLogger.Infof("Confirmação '%s' interrompida: %v", opts.Title, err)
		return false
	}
	return ok
}

func notificar(opts DeleteOptions, t Toast) {
	if opts.Notifier != nil {
		opts.Notifier.Notify(t)
	}
}

func sucesso(opts DeleteOptions) bool {
	if opts.OnSuccess != nil {
		opts.OnSuccess()
	}
	return true
}

func falhou(opts DeleteOptions, entidade string, err error) bool {
	msg := appErrors.UserMessage(err)
	notificar(opts, Toast{
		Title:       "❌ Erro ao deletar " + entidade,
		Description: msg,
		Variant:     confirmation.VariantDestructive,
	})
	appLogger.Errorf("Erro ao deletar %s: %v", entidade, err)
	if opts.OnError != nil {
		opts.OnError(msg)
	}
	return false
}
