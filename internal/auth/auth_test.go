package auth

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
)

var base = time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)

func newTestProvider(t *testing.T) (*LocalProvider, repositories.ProfileRepository) {
	t.Helper()
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	cfg := &core.Config{
		DBEngine:          "sqlite_puro",
		DBName:            data.MemoryDBName,
		JWTSecret:         "segredo-de-teste",
		JWTIssuer:         "diario-infantil",
		SessionTimeout:    time.Hour,
		PasswordMinLength: 6,
		AdminEmails:       []string{"Diretora@Escola.com"},
	}
	db, err := data.InitializeDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = data.CloseDB(db) })

	p := NewLocalProvider(cfg, db)
	p.now = func() time.Time { return base }
	return p, repositories.NewGormProfileRepository(db)
}

func TestLocalProvider_CicloDeSessao(t *testing.T) {
	p, profiles := newTestProvider(t)
	ctx := context.Background()

	cadastro, err := p.SignUp(ctx, " Carla@Escola.com ", "girassol", "carla mendes")
	require.NoError(t, err)
	assert.Equal(t, "carla@escola.com", cadastro.User.Email)
	assert.Equal(t, base.Add(time.Hour), cadastro.ExpiresAt)

	perfil, err := profiles.GetByID(ctx, cadastro.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carla Mendes", perfil.Nome)
	assert.Equal(t, models.TipoProfessor, perfil.Tipo)

	login, err := p.SignIn(ctx, "CARLA@escola.com", "girassol")
	require.NoError(t, err)
	require.NotNil(t, login.User.LastSignInAt)
	assert.NotEqual(t, cadastro.AccessToken, login.AccessToken)

	sessao, err := p.GetSession(ctx, login.BearerHeader())
	require.NoError(t, err)
	assert.Equal(t, cadastro.User.ID, sessao.User.ID)

	renovada, err := p.Refresh(ctx, login.AccessToken)
	require.NoError(t, err)
	_, err = p.GetSession(ctx, login.AccessToken)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated, "token anterior deixa de valer após refresh")
	_, err = p.GetSession(ctx, renovada.AccessToken)
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx, renovada.AccessToken))
	_, err = p.GetSession(ctx, renovada.AccessToken)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestLocalProvider_EmailAdmin(t *testing.T) {
	p, profiles := newTestProvider(t)
	ctx := context.Background()

	s, err := p.SignUp(ctx, "diretora@escola.com", "girassol", "Ana Diretora")
	require.NoError(t, err)
	perfil, err := profiles.GetByID(ctx, s.User.ID)
	require.NoError(t, err)
	assert.True(t, perfil.IsAdmin())
}

func TestLocalProvider_SignUpRejeitado(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	t.Run("senha curta", func(t *testing.T) {
		_, err := p.SignUp(ctx, "a@escola.com", "abc", "Ana Lima")
		assert.ErrorIs(t, err, core.ErrWeakPassword)
	})
	t.Run("senha comum", func(t *testing.T) {
		_, err := p.SignUp(ctx, "a@escola.com", "Senha123", "Ana Lima")
		assert.ErrorIs(t, err, core.ErrWeakPassword)
	})
	t.Run("email inválido", func(t *testing.T) {
		_, err := p.SignUp(ctx, "sem-arroba", "girassol", "Ana Lima")
		assert.ErrorIs(t, err, core.ErrValidation)
	})
	t.Run("nome inválido", func(t *testing.T) {
		_, err := p.SignUp(ctx, "a@escola.com", "girassol", "A")
		assert.ErrorIs(t, err, core.ErrValidation)
	})
	t.Run("email duplicado", func(t *testing.T) {
		_, err := p.SignUp(ctx, "dup@escola.com", "girassol", "Bia Lima")
		require.NoError(t, err)
		_, err = p.SignUp(ctx, "DUP@escola.com", "girassol", "Bia Lima")
		assert.ErrorIs(t, err, core.ErrEmailTaken)
	})
}

func TestLocalProvider_CredenciaisInvalidas(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	_, err := p.SignUp(ctx, "carla@escola.com", "girassol", "Carla Mendes")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "carla@escola.com", "errada")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "ninguem@escola.com", "girassol")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "", "")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestLocalProvider_Expiracao(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	s, err := p.SignUp(ctx, "carla@escola.com", "girassol", "Carla Mendes")
	require.NoError(t, err)

	p.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = p.GetSession(ctx, s.AccessToken)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	// Token expirado ainda identifica a sessão para logout.
	require.NoError(t, p.SignOut(ctx, s.AccessToken))

	_, err = p.GetSession(ctx, "lixo")
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
	_, err = p.GetSession(ctx, "")
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestLocalProvider_DeleteExpiredSessions(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "carla@escola.com", "girassol", "Carla Mendes")
	require.NoError(t, err)
	n, err := p.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	p.now = func() time.Time { return base.Add(2 * time.Hour) }
	n, err = p.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("girassol")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("girassol", hash))
	assert.False(t, VerifyPassword("Girassol", hash))
	assert.False(t, VerifyPassword("", hash))

	_, err = HashPassword("")
	assert.Error(t, err)
}

// fakeProvider devolve sessões fixas e registra os tokens encerrados.
type fakeProvider struct {
	mu        sync.Mutex
	session   *Session
	err       error
	signedOut []string
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return f.session, f.err
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password, nome string) (*Session, error) {
	return f.session, f.err
}

func (f *fakeProvider) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut = append(f.signedOut, accessToken)
	return f.err
}

func (f *fakeProvider) GetSession(ctx context.Context, accessToken string) (*Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeProvider) Refresh(ctx context.Context, accessToken string) (*Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Session{AccessToken: accessToken + "-novo", User: f.session.User}, nil
}

func TestSessionProvider_EstadoEEventos(t *testing.T) {
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	ctx := context.Background()
	fake := &fakeProvider{session: &Session{AccessToken: "tok", User: User{ID: uuid.New(), Email: "c@e.com"}}}
	sp := NewSessionProvider(fake)

	assert.True(t, sp.Loading())
	user, session, loading := sp.State()
	assert.Nil(t, user)
	assert.Nil(t, session)
	assert.True(t, loading)
	_, err := sp.CurrentSession(ctx)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	var eventos []AuthEvent
	unsubscribe := sp.Subscribe(func(event AuthEvent, s *Session) { eventos = append(eventos, event) })

	sp.Init(ctx, "")
	assert.False(t, sp.Loading())
	_, err = sp.CurrentSession(ctx)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	require.NoError(t, sp.SignIn(ctx, "c@e.com", "girassol"))
	user, session, _ = sp.State()
	require.NotNil(t, user)
	assert.Equal(t, fake.session.User.ID, user.ID)
	assert.Equal(t, "tok", session.AccessToken)

	require.NoError(t, sp.Refresh(ctx))
	_, session, _ = sp.State()
	assert.Equal(t, "tok-novo", session.AccessToken)

	require.NoError(t, sp.SignOut(ctx))
	assert.Equal(t, []string{"tok-novo"}, fake.signedOut)
	user, session, loading = sp.State()
	assert.Nil(t, user)
	assert.Nil(t, session)
	assert.False(t, loading)

	unsubscribe()
	require.NoError(t, sp.SignIn(ctx, "c@e.com", "girassol"))
	assert.Equal(t, []AuthEvent{EventInitialSession, EventSignedIn, EventTokenRefreshed, EventSignedOut}, eventos)
}

func TestSessionProvider_InitComTokenInvalido(t *testing.T) {
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	fake := &fakeProvider{err: core.ErrNotAuthenticated}
	sp := NewSessionProvider(fake)

	var recebida *Session
	chamado := false
	sp.Subscribe(func(event AuthEvent, s *Session) {
		chamado = true
		recebida = s
		assert.Equal(t, EventInitialSession, event)
	})
	sp.Init(context.Background(), "expirado")

	assert.True(t, chamado)
	assert.Nil(t, recebida)
	assert.False(t, sp.Loading())
	assert.ErrorIs(t, sp.Refresh(context.Background()), core.ErrNotAuthenticated)
}

func TestSessionProvider_SignOutLimpaMesmoComFalha(t *testing.T) {
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	ctx := context.Background()
	fake := &fakeProvider{session: &Session{AccessToken: "tok", User: User{ID: uuid.New()}}}
	sp := NewSessionProvider(fake)
	require.NoError(t, sp.SignIn(ctx, "c@e.com", "girassol"))

	fake.err = errors.New("rede indisponível")
	assert.Error(t, sp.SignOut(ctx))
	_, session, _ := sp.State()
	assert.Nil(t, session)
}

type stubProfiles struct {
	profiles map[uuid.UUID]*models.DBProfile
}

func (s *stubProfiles) GetByID(ctx context.Context, id uuid.UUID) (*models.DBProfile, error) {
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return nil, core.ErrProfileNotFound
}

func (s *stubProfiles) Create(ctx context.Context, profile *models.DBProfile) error {
	s.profiles[profile.ID] = profile
	return nil
}

func (s *stubProfiles) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.DBProfile, error) {
	var out []models.DBProfile
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func TestAccessControl_ValidatePermissions(t *testing.T) {
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	prof := &models.DBProfile{ID: uuid.New(), Nome: "Carla", Tipo: models.TipoProfessor}
	estranho := &models.DBProfile{ID: uuid.New(), Nome: "Zé", Tipo: "responsavel"}
	ac := NewAccessControl(ContextSessionSource{}, &stubProfiles{profiles: map[uuid.UUID]*models.DBProfile{
		prof.ID:     prof,
		estranho.ID: estranho,
	}})
	comSessao := func(id uuid.UUID) context.Context {
		return WithSession(context.Background(), &Session{AccessToken: "tok", User: User{ID: id}})
	}

	_, err := ac.ValidatePermissions(context.Background())
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	_, err = ac.ValidatePermissions(comSessao(uuid.New()))
	assert.ErrorIs(t, err, core.ErrProfileNotFound)

	_, err = ac.ValidatePermissions(comSessao(estranho.ID))
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	caller, err := ac.ValidatePermissions(comSessao(prof.ID))
	require.NoError(t, err)
	assert.Equal(t, prof.ID, caller.ID())
	assert.False(t, caller.IsAdmin())

	session, err := ac.CurrentSession(comSessao(prof.ID))
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", session.BearerHeader())

	owner, err := ac.DetermineOwner(comSessao(prof.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, prof.ID, owner)
}

func TestCaller_ResolveOwner(t *testing.T) {
	appLogger.SetOutput(io.Discard, logrus.PanicLevel)
	outro := uuid.New()
	admin := &Caller{Profile: &models.DBProfile{ID: uuid.New(), Tipo: models.TipoAdmin}}
	prof := &Caller{Profile: &models.DBProfile{ID: uuid.New(), Tipo: models.TipoProfessor}}

	owner, err := admin.ResolveOwner(&outro)
	require.NoError(t, err)
	assert.Equal(t, outro, owner)

	owner, err = admin.ResolveOwner(nil)
	require.NoError(t, err)
	assert.Equal(t, admin.ID(), owner)

	self := prof.ID()
	owner, err = prof.ResolveOwner(&self)
	require.NoError(t, err)
	assert.Equal(t, self, owner)

	_, err = prof.ResolveOwner(&outro)
	assert.ErrorIs(t, err, core.ErrCrossTenantWrite)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	assert.True(t, admin.CanAccess(outro))
	assert.False(t, prof.CanAccess(outro))
	assert.True(t, prof.CanAccess(self))
}
