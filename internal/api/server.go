// Package api expõe as ações da interface como uma API JSON.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/services"
)

// Services agrupa os serviços usados pelos handlers.
type Services struct {
	Turmas       services.TurmaService
	Alunos       services.AlunoService
	Observacoes  services.ObservacaoService
	Relatorios   services.RelatorioService
	Estatisticas services.EstatisticasService
	IA           services.IAService
	Export       services.ExportService
	Audit        services.AuditLogService
}

type Server struct {
	cfg      *core.Config
	provider auth.Provider
	ac       *auth.AccessControl
	svc      Services
	now      func() time.Time
}

// NewServer cria o servidor. ac deve ler a sessão do contexto da requisição (auth.ContextSessionSource).
func NewServer(cfg *core.Config, provider auth.Provider, ac *auth.AccessControl, svc Services) *Server {
	if cfg == nil || provider == nil || ac == nil {
		appLogger.Fatalf("Dependências nulas fornecidas para api.NewServer")
	}
	return &Server{cfg: cfg, provider: provider, ac: ac, svc: svc, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/signup", s.SignUp)
		api.Post("/auth/signin", s.SignIn)

		api.Group(func(p chi.Router) {
			p.Use(WithSession(s.provider))

			p.Post("/auth/signout", s.SignOut)
			p.Post("/auth/refresh", s.Refresh)
			p.Get("/auth/session", s.CurrentSession)

			p.Get("/painel", s.Painel)

			p.Route("/turmas", func(t chi.Router) {
				t.Get("/", s.ListTurmas)
				t.Post("/", s.CreateTurma)
				t.Get("/{id}", s.GetTurma)
				t.Patch("/{id}", s.UpdateTurma)
				t.Delete("/{id}", s.DeleteTurma)
			})
			p.Route("/alunos", func(a chi.Router) {
				a.Get("/", s.ListAlunos)
				a.Post("/", s.CreateAluno)
				a.Get("/{id}", s.GetAluno)
				a.Patch("/{id}", s.UpdateAluno)
				a.Delete("/{id}", s.DeleteAluno)
			})
			p.Route("/observacoes", func(o chi.Router) {
				o.Get("/", s.ListObservacoes)
				o.Get("/tipos", s.TiposObservacao)
				o.Post("/", s.CreateObservacao)
				o.Get("/{id}", s.GetObservacao)
				o.Patch("/{id}", s.UpdateObservacao)
				o.Delete("/{id}", s.DeleteObservacao)
			})
			p.Route("/relatorios", func(rel chi.Router) {
				rel.Get("/", s.ListRelatorios)
				rel.Post("/", s.CreateRelatorio)
				rel.Get("/{id}", s.GetRelatorio)
				rel.Patch("/{id}", s.UpdateRelatorio)
				rel.Delete("/{id}", s.DeleteRelatorio)
			})

			p.Get("/estatisticas/alunos/{id}", s.EstatisticasAluno)
			p.Get("/estatisticas/turmas/{id}", s.EstatisticasTurma)
			p.Get("/estatisticas/observacoes", s.ObservacoesPeriodo)

			p.Get("/ia/tipos", s.TiposAjuda)
			p.Post("/ia", s.SolicitarIA)
			p.Post("/ia/relatorio", s.GerarConteudoRelatorio)

			p.Get("/export/relatorios", s.ExportarRelatorios)
			p.Get("/export/turmas/{id}", s.ExportarTurma)

			p.Get("/auditoria", s.ListAuditoria)
		})
	})
	return r
}
