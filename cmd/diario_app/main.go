package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/api"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/auth"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/ia"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/repositories"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/services"
)

const intervaloLimpezaSessoes = 15 * time.Minute

func main() {
	// --- 1. Carregar Configurações ---
	cfg, err := core.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Erro CRÍTICO ao carregar configuração: %v", err)
	}

	// --- 2. Configurar Logger ---
	if err := appLogger.SetupLogger(cfg); err != nil {
		log.Fatalf("Erro CRÍTICO ao configurar logger: %v", err)
	}
	appLogger.Info("=====================================================")
	appLogger.Infof("Iniciando %s v%s...", cfg.AppName, cfg.AppVersion)
	appLogger.Debugf("Modo Debug: %t", cfg.AppDebug)
	appLogger.Info("=====================================================")

	// --- 3. Inicializar Banco de Dados ---
	db, err := data.InitializeDB(cfg)
	if err != nil {
		appLogger.Fatalf("Erro CRÍTICO ao inicializar banco de dados: %v", err)
	}
	defer func() {
		if err := data.CloseDB(db); err != nil {
			appLogger.Errorf("Erro ao fechar conexão com banco de dados: %v", err)
		} else {
			appLogger.Info("Conexão com banco de dados fechada.")
		}
	}()
	appLogger.Info("Banco de dados inicializado com sucesso.")

	// --- 4. Repositórios ---
	profileRepo := repositories.NewGormProfileRepository(db)
	auditRepo := repositories.NewGormAuditLogRepository(db)
	turmaRepo := repositories.NewGormTurmaRepository(db)
	alunoRepo := repositories.NewGormAlunoRepository(db)
	observacaoRepo := repositories.NewGormObservacaoRepository(db)
	relatorioRepo := repositories.NewGormRelatorioRepository(db)
	estatisticasRepo := repositories.NewSqlxEstatisticasRepository(db)

	// --- 5. Autenticação e controle de acesso ---
	provider := auth.NewLocalProvider(cfg, db)
	ac := auth.NewAccessControl(auth.ContextSessionSource{}, profileRepo)

	// --- 6. Serviços ---
	auditSvc := services.NewAuditLogService(auditRepo, ac)
	turmaSvc := services.NewTurmaService(turmaRepo, alunoRepo, profileRepo, ac, auditSvc)
	alunoSvc := services.NewAlunoService(alunoRepo, turmaRepo, profileRepo, ac, auditSvc)
	observacaoSvc := services.NewObservacaoService(observacaoRepo, alunoRepo, profileRepo, ac, auditSvc)
	relatorioSvc := services.NewRelatorioService(relatorioRepo, alunoRepo, profileRepo, ac, auditSvc)
	iaClient := ia.NewClient(cfg.IAFunctionsURL, cfg.IAFunctionName, cfg.IATimeout)

	server := api.NewServer(cfg, provider, ac, api.Services{
		Turmas:       turmaSvc,
		Alunos:       alunoSvc,
		Observacoes:  observacaoSvc,
		Relatorios:   relatorioSvc,
		Estatisticas: services.NewEstatisticasService(estatisticasRepo, alunoSvc, turmaSvc, ac),
		IA:           services.NewIAService(iaClient, alunoSvc, observacaoSvc, ac),
		Export:       services.NewExportService(turmaSvc, alunoSvc, relatorioSvc, ac, cfg.ExportDir),
		Audit:        auditSvc,
	})
	appLogger.Info("Serviços inicializados.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go limparSessoes(ctx, provider)

	// --- 7. Servidor HTTP ---
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Infof("Servidor HTTP escutando em %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Erro CRÍTICO no servidor HTTP: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	appLogger.Info("Sinal de encerramento recebido.")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Errorf("Erro ao encerrar servidor HTTP: %v", err)
	}
	appLogger.Infof("%s encerrado.", cfg.AppName)
}

// limparSessoes remove periodicamente as sessões expiradas do provedor local.
func limparSessoes(ctx context.Context, provider *auth.LocalProvider) {
	ticker := time.NewTicker(intervaloLimpezaSessoes)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := provider.DeleteExpiredSessions(ctx)
			if err != nil {
				appLogger.Errorf("Erro ao limpar sessões expiradas: %v", err)
				continue
			}
			if n > 0 {
				appLogger.Infof("%d sessões expiradas removidas.", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
