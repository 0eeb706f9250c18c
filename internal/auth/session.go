package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
)

// AuthEvent identifica a mudança de estado notificada aos assinantes.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthListener recebe o evento e a sessão resultante (nil após logout).
type AuthListener func(event AuthEvent, session *Session)

// SessionSource fornece a sessão ativa para o controle de acesso.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*Session, error)
}

// SessionProvider mantém a sessão do cliente: {user, session, loading} e os assinantes.
// loading fica true até Init resolver a primeira verificação de sessão.
type SessionProvider struct {
	provider Provider

	mu        sync.RWMutex
	session   *Session
	loading   bool
	listeners map[int]AuthListener
	nextID    int
}

// NewSessionProvider cria o provedor de sessão em estado loading.
func NewSessionProvider(provider Provider) *SessionProvider {
	if provider == nil {
		appLogger.Fatalf("Provider não pode ser nil para NewSessionProvider")
	}
	return &SessionProvider{
		provider:  provider,
		loading:   true,
		listeners: make(map[int]AuthListener),
	}
}

// Init faz a primeira verificação de sessão a partir de um token salvo (pode ser vazio).
// Token inválido ou expirado resulta em estado deslogado, não em erro.
func (sp *SessionProvider) Init(ctx context.Context, accessToken string) {
	var session *Session
	if accessToken != "" {
		s, err := sp.provider.GetSession(ctx, accessToken)
		if err != nil {
			appLogger.Infof("Sessão salva descartada: %v", err)
		} else {
			session = s
		}
	}
	sp.set(EventInitialSession, session)
}

// State devolve o usuário, a sessão e o flag loading. Enquanto loading, user e session são nil.
func (sp *SessionProvider) State() (*User, *Session, bool) {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	if sp.loading || sp.session == nil {
		return nil, nil, sp.loading
	}
	s := *sp.session
	u := s.User
	return &u, &s, false
}

// Loading indica se a primeira verificação de sessão ainda não terminou.
func (sp *SessionProvider) Loading() bool {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.loading
}

// Subscribe registra um assinante. A função devolvida cancela a assinatura.
func (sp *SessionProvider) Subscribe(fn AuthListener) (unsubscribe func()) {
	sp.mu.Lock()
	id := sp.nextID
	sp.nextID++
	sp.listeners[id] = fn
	sp.mu.Unlock()

	return func() {
		sp.mu.Lock()
		delete(sp.listeners, id)
		sp.mu.Unlock()
	}
}

func (sp *SessionProvider) SignIn(ctx context.Context, email, password string) error {
	session, err := sp.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	sp.set(EventSignedIn, session)
	return nil
}

func (sp *SessionProvider) SignUp(ctx context.Context, email, password, nome string) error {
	session, err := sp.provider.SignUp(ctx, email, password, nome)
	if err != nil {
		return err
	}
	sp.set(EventSignedIn, session)
	return nil
}

// SignOut encerra a sessão no provedor e limpa o estado local mesmo se o provedor falhar.
func (sp *SessionProvider) SignOut(ctx context.Context) error {
	sp.mu.RLock()
	current := sp.session
	sp.mu.RUnlock()

	var err error
	if current != nil {
		err = sp.provider.SignOut(ctx, current.AccessToken)
		if err != nil {
			appLogger.Warnf("Falha ao encerrar sessão no provedor: %v", err)
		}
	}
	sp.set(EventSignedOut, nil)
	return err
}

// Refresh renova o token da sessão ativa.
func (sp *SessionProvider) Refresh(ctx context.Context) error {
	sp.mu.RLock()
	current := sp.session
	sp.mu.RUnlock()
	if current == nil {
		return fmt.Errorf("%w: nenhuma sessão para renovar", core.ErrNotAuthenticated)
	}
	session, err := sp.provider.Refresh(ctx, current.AccessToken)
	if err != nil {
		return err
	}
	sp.set(EventTokenRefreshed, session)
	return nil
}

// CurrentSession implementa SessionSource para o cliente.
func (sp *SessionProvider) CurrentSession(ctx context.Context) (*Session, error) {
	_, session, loading := sp.State()
	if loading {
		return nil, fmt.Errorf("%w: verificação de sessão em andamento", core.ErrNotAuthenticated)
	}
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	return session, nil
}

func (sp *SessionProvider) set(event AuthEvent, session *Session) {
	sp.mu.Lock()
	sp.session = session
	sp.loading = false
	listeners := make([]AuthListener, 0, len(sp.listeners))
	for _, fn := range sp.listeners {
		listeners = append(listeners, fn)
	}
	sp.mu.Unlock()

	appLogger.Debugf("Evento de autenticação: %s", event)
	for _, fn := range listeners {
		fn(event, session)
	}
}

type sessionCtxKey struct{}

// WithSession devolve um contexto que carrega a sessão (usado por requisição na API).
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, session)
}

// SessionFromContext extrai a sessão colocada por WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionCtxKey{}).(*Session)
	return session, ok && session != nil
}

// ContextSessionSource lê a sessão do contexto da requisição.
type ContextSessionSource struct{}

func (ContextSessionSource) CurrentSession(ctx context.Context) (*Session, error) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return nil, core.ErrNotAuthenticated
	}
	return session, nil
}
