// Package confirmation implementa o pedido de confirmação usado antes de ações destrutivas.
//
// Cada chamada a Confirm entra numa fila FIFO; a interface mostra sempre o primeiro
// pedido (Current) e o resolve com Resolve. Um segundo pedido nunca sobrescreve o primeiro.
package confirmation

import (
	"context"
	"sync"

	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
)

// Variantes de exibição.
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Options descreve o diálogo de confirmação.
type Options struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	ConfirmText string `json:"confirmText,omitempty"`
	CancelText  string `json:"cancelText,omitempty"`
	Variant     string `json:"variant,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.ConfirmText == "" {
		o.ConfirmText = "Confirmar"
	}
	if o.CancelText == "" {
		o.CancelText = "Cancelar"
	}
	if o.Variant == "" {
		o.Variant = VariantDefault
	}
	return o
}

// ConfirmFunc pede confirmação e devolve true somente se o usuário confirmar.
type ConfirmFunc func(ctx context.Context, opts Options) (bool, error)

type request struct {
	opts   Options
	result chan bool
}

// Queue guarda os pedidos pendentes em ordem de chegada.
type Queue struct {
	mu       sync.Mutex
	pending  []*request
	onChange func(current *Options)
}

// NewQueue cria uma fila. onChange (opcional) é chamado com o pedido exibido (nil se nenhum).
func NewQueue(onChange func(current *Options)) *Queue {
	return &Queue{onChange: onChange}
}

// Confirm enfileira o pedido e bloqueia até ele ser resolvido.
// Se ctx terminar antes, o pedido sai da fila e o resultado é false com ctx.Err().
func (q *Queue) Confirm(ctx context.Context, opts Options) (bool, error) {
	req := &request{opts: opts.withDefaults(), result: make(chan bool, 1)}

	q.mu.Lock()
	q.pending = append(q.pending, req)
	first := len(q.pending) == 1
	q.mu.Unlock()
	if first {
		q.notify()
	}

	select {
	case ok := <-req.result:
		return ok, nil
	case <-ctx.Done():
		if q.remove(req) {
			appLogger.Debugf("Pedido de confirmação '%s' abandonado: %v", req.opts.Title, ctx.Err())
		}
		// Resolvido concorrentemente: o resultado já está no canal.
		select {
		case ok := <-req.result:
			return ok, nil
		default:
		}
		return false, ctx.Err()
	}
}

// Current devolve o pedido exibido no momento.
func (q *Queue) Current() (Options, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Options{}, false
	}
	return q.pending[0].opts, true
}

// IsOpen indica se há um pedido aguardando resposta.
func (q *Queue) IsOpen() bool {
	_, ok := q.Current()
	return ok
}

// Pending devolve quantos pedidos aguardam resposta.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Resolve responde o pedido exibido. Devolve false se não havia pedido.
func (q *Queue) Resolve(confirmed bool) bool {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return false
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	q.mu.Unlock()

	req.result <- confirmed
	q.notify()
	return true
}

// HandleConfirm confirma o pedido exibido.
func (q *Queue) HandleConfirm() bool { return q.Resolve(true) }

// HandleCancel cancela o pedido exibido. Fechar o diálogo sem escolher também cancela.
func (q *Queue) HandleCancel() bool { return q.Resolve(false) }

func (q *Queue) remove(req *request) bool {
	q.mu.Lock()
	removed := false
	wasFirst := false
	for i, r := range q.pending {
		if r == req {
			wasFirst = i == 0
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			removed = true
			break
		}
	}
	q.mu.Unlock()
	if wasFirst {
		q.notify()
	}
	return removed
}

func (q *Queue) notify() {
	if q.onChange == nil {
		return
	}
	if opts, ok := q.Current(); ok {
		q.onChange(&opts)
		return
	}
	q.onChange(nil)
}
