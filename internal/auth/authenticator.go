package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

// User é o usuário autenticado, como devolvido pelo provedor.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	LastSignInAt *time.Time `json:"lastSignInAt,omitempty"`
}

// Session carrega o token bearer usado para autorizar o backend e a função de IA.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// BearerHeader devolve o valor do cabeçalho Authorization para esta sessão.
func (s *Session) BearerHeader() string {
	return "Bearer " + s.AccessToken
}

// Provider é o provedor de autenticação consumido pela aplicação.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password, nome string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	// GetSession valida o token e devolve a sessão correspondente.
	GetSession(ctx context.Context, accessToken string) (*Session, error)
	// Refresh troca um token válido por um novo, encerrando o anterior.
	Refresh(ctx context.Context, accessToken string) (*Session, error)
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// LocalProvider autentica contra as tabelas auth_users/auth_sessions com bcrypt e JWT HS256.
type LocalProvider struct {
	cfg      *core.Config
	db       *gorm.DB
	authRepo repositories.AuthRepository
	now      func() time.Time
}

// NewLocalProvider cria o provedor local.
func NewLocalProvider(cfg *core.Config, db *gorm.DB) *LocalProvider {
	if cfg == nil || db == nil {
		appLogger.Fatalf("Config e gorm.DB são obrigatórios para NewLocalProvider")
	}
	return &LocalProvider{
		cfg:      cfg,
		db:       db,
		authRepo: repositories.NewGormAuthRepository(db),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HashPassword gera um hash bcrypt de uma senha.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("senha não pode estar vazia")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		appLogger.Errorf("Erro ao gerar hash da senha: %v", err)
		return "", fmt.Errorf("%w: falha ao processar senha", core.ErrInternal)
	}
	return string(hashedBytes), nil
}

// VerifyPassword compara uma senha em texto plano com um hash bcrypt.
func VerifyPassword(plainPassword, hashedPassword string) bool {
	if plainPassword == "" || hashedPassword == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		appLogger.Warnf("Erro inesperado ao verificar senha: %v", err)
	}
	return err == nil
}

// SignUp cria o usuário e seu perfil na mesma transação e já abre uma sessão.
// Emails listados em APP_ADMIN_EMAILS recebem perfil admin.
func (p *LocalProvider) SignUp(ctx context.Context, email, password, nome string) (*Session, error) {
	email, err := utils.ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	strength := utils.ValidatePasswordStrength(password, p.cfg.PasswordMinLength)
	if !strength.IsValid {
		return nil, fmt.Errorf("%w: %s", core.ErrWeakPassword, strings.Join(strength.GetErrorDetailsList(), "; "))
	}
	nome = utils.TitleCase(nome)
	if !utils.IsValidPersonName(nome, 2, 150) {
		return nil, core.NewValidationError("Nome inválido.", map[string]string{"nome": "use de 2 a 150 letras"})
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	tipo := models.TipoProfessor
	if p.cfg.IsAdminEmail(email) {
		tipo = models.TipoAdmin
	}

	user := &models.DBAuthUser{Email: email, PasswordHash: hash}
	err = data.WithTransaction(p.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := repositories.NewGormAuthRepository(tx).CreateUser(ctx, user); err != nil {
			return err
		}
		return repositories.NewGormProfileRepository(tx).Create(ctx, &models.DBProfile{ID: user.ID, Nome: nome, Tipo: tipo})
	})
	if err != nil {
		if !errors.Is(err, core.ErrEmailTaken) {
			appLogger.Errorf("Falha no cadastro de '%s': %v", email, err)
		}
		return nil, err
	}
	appLogger.WithFields(logrus.Fields{"userID": user.ID, "tipo": tipo}).Infof("Usuário cadastrado: %s", email)
	return p.issue(ctx, user)
}

// SignIn autentica por email e senha. Usuário inexistente e senha errada dão o mesmo erro.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	logCtx := appLogger.WithFields(logrus.Fields{"email": normalized})
	if normalized == "" || password == "" {
		return nil, core.ErrInvalidCredentials
	}

	user, err := p.authRepo.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			logCtx.Warn("Tentativa de login para email não cadastrado.")
			return nil, core.ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		logCtx.Warn("Senha inválida.")
		return nil, core.ErrInvalidCredentials
	}

	now := p.now()
	if err := p.authRepo.TouchLastSignIn(ctx, user.ID, now); err == nil {
		user.LastSignInAt = &now
	}
	logCtx.WithField("userID", user.ID).Info("Login efetuado.")
	return p.issue(ctx, user)
}

// SignOut encerra a sessão do token. Token expirado ainda identifica a sessão a remover.
func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.parse(accessToken, jwt.WithoutClaimsValidation())
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return fmt.Errorf("%w: token sem identificador de sessão", core.ErrNotAuthenticated)
	}
	if err := p.authRepo.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	appLogger.Infof("Sessão %s encerrada (usuário %s).", sessionID, claims.Subject)
	return nil
}

func (p *LocalProvider) GetSession(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := p.parse(accessToken)
	if err != nil {
		return nil, err
	}
	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: token sem identificador de sessão", core.ErrNotAuthenticated)
	}
	row, err := p.authRepo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: sessão encerrada", core.ErrNotAuthenticated)
		}
		return nil, err
	}
	if !p.now().Before(row.ExpiresAt) {
		return nil, fmt.Errorf("%w: sessão expirada", core.ErrNotAuthenticated)
	}
	user, err := p.authRepo.GetUserByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: usuário da sessão removido", core.ErrNotAuthenticated)
		}
		return nil, err
	}
	return &Session{
		AccessToken: accessToken,
		ExpiresAt:   row.ExpiresAt,
		User:        toUser(user),
	}, nil
}

func (p *LocalProvider) Refresh(ctx context.Context, accessToken string) (*Session, error) {
	current, err := p.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user, err := p.authRepo.GetUserByID(ctx, current.User.ID)
	if err != nil {
		return nil, err
	}
	next, err := p.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := p.SignOut(ctx, accessToken); err != nil {
		appLogger.Warnf("Sessão anterior do usuário %s não foi removida no refresh: %v", user.ID, err)
	}
	return next, nil
}

// DeleteExpiredSessions remove sessões vencidas do banco.
func (p *LocalProvider) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return p.authRepo.DeleteExpiredSessions(ctx, p.now())
}

func (p *LocalProvider) issue(ctx context.Context, user *models.DBAuthUser) (*Session, error) {
	now := p.now()
	row := &models.DBAuthSession{
		UserID:    user.ID,
		ExpiresAt: now.Add(p.cfg.SessionTimeout),
	}
	if err := p.authRepo.CreateSession(ctx, row); err != nil {
		return nil, err
	}

	claims := accessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        row.ID.String(),
			Subject:   user.ID.String(),
			Issuer:    p.cfg.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(row.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.cfg.JWTSecret))
	if err != nil {
		appLogger.Errorf("Falha ao assinar token para usuário %s: %v", user.ID, err)
		return nil, fmt.Errorf("%w: falha ao emitir token", core.ErrInternal)
	}
	return &Session{AccessToken: token, ExpiresAt: row.ExpiresAt, User: toUser(user)}, nil
}

func (p *LocalProvider) parse(accessToken string, extra ...jwt.ParserOption) (*accessClaims, error) {
	accessToken = strings.TrimSpace(strings.TrimPrefix(accessToken, "Bearer "))
	if accessToken == "" {
		return nil, fmt.Errorf("%w: token ausente", core.ErrNotAuthenticated)
	}
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.cfg.JWTIssuer),
		jwt.WithTimeFunc(p.now),
	}, extra...)

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(p.cfg.JWTSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		appLogger.Debugf("Token rejeitado: %v", err)
		return nil, fmt.Errorf("%w: token inválido ou expirado", core.ErrNotAuthenticated)
	}
	return claims, nil
}

func toUser(u *models.DBAuthUser) User {
	return User{ID: u.ID, Email: u.Email, LastSignInAt: u.LastSignInAt}
}
