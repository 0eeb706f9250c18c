package data

import (
	"errors"
	"fmt"
	"strings"
	"time"

	puresqlite "github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/data/models"
)

// MemoryDBName faz o motor sqlite_puro abrir um banco em memória (usado em testes).
const MemoryDBName = ":memory:"

// InitializeDB configura e estabelece a conexão com o banco de dados
// e executa migrações automáticas.
func InitializeDB(cfg *core.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	singleConn := false

	appLogger.Infof("Inicializando conexão com banco de dados: %s", cfg.DBEngine)

	gormLogLevel := gormlogger.Silent
	if cfg.AppDebug {
		gormLogLevel = gormlogger.Info
	}
	newGormLogger := gormlogger.New(
		appLogger.WithFields(logrus.Fields{"component": "gorm"}),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormConfig := &gorm.Config{
		Logger: newGormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	switch cfg.DBEngine {
	case "postgresql":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		dialector = postgres.Open(dsn)
		appLogger.Infof("Conectando ao PostgreSQL: host=%s dbname=%s user=%s port=%d", cfg.DBHost, cfg.DBName, cfg.DBUser, cfg.DBPort)
	case "sqlite":
		// Driver cgo (mattn). FKs precisam estar ligadas para o ON DELETE CASCADE.
		dialector = sqlite.Open(cfg.DBName + "?_foreign_keys=on&_busy_timeout=5000")
		appLogger.Infof("Usando banco de dados SQLite: %s", cfg.DBName)
	case "sqlite_puro":
		dsn := cfg.DBName + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		if cfg.DBName == MemoryDBName {
			dsn = "file::memory:?_pragma=foreign_keys(1)"
			singleConn = true
		}
		dialector = puresqlite.Open(dsn)
		appLogger.Infof("Usando banco de dados SQLite (Go puro): %s", cfg.DBName)
	default:
		return nil, fmt.Errorf("%w: motor de banco de dados não suportado: %s", core.ErrConfiguration, cfg.DBEngine)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		appLogger.Errorf("Falha ao conectar ao banco de dados %s: %v", cfg.DBEngine, err)
		return nil, fmt.Errorf("falha ao abrir conexão com %s: %w", cfg.DBEngine, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Errorf("Falha ao obter instância *sql.DB do GORM: %v", err)
		return nil, fmt.Errorf("falha ao configurar pool de conexões: %w", err)
	}
	if singleConn {
		// Cada conexão com :memory: é um banco distinto.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	appLogger.Info("Conexão com banco de dados estabelecida.")

	if err := CreateDatabaseTables(db); err != nil {
		return nil, err
	}
	return db, nil
}

// CreateDatabaseTables executa o AutoMigrate de todos os modelos.
// A ordem importa: turmas antes de alunos, alunos antes de observações e relatórios.
func CreateDatabaseTables(db *gorm.DB) error {
	if db == nil {
		return errors.New("instância de banco de dados é nil, não é possível criar tabelas")
	}
	appLogger.Info("Executando migrações automáticas do GORM...")
	err := db.AutoMigrate(
		&models.DBProfile{},
		&models.DBAuthUser{},
		&models.DBAuthSession{},
		&models.DBTurma{},
		&models.DBAluno{},
		&models.DBObservacao{},
		&models.DBRelatorio{},
		&models.AuditLogEntry{},
	)
	if err != nil {
		appLogger.Errorf("Falha durante AutoMigrate: %v", err)
		return fmt.Errorf("falha na migração do esquema do banco de dados: %w", err)
	}
	appLogger.Info("Migrações automáticas do GORM concluídas.")
	return nil
}

// DriverName devolve o nome do driver database/sql usado pela conexão, no formato esperado pelo sqlx.
func DriverName(db *gorm.DB) string {
	switch strings.ToLower(db.Dialector.Name()) {
	case "postgres":
		return "pgx"
	case "sqlite":
		return "sqlite3"
	default:
		return db.Dialector.Name()
	}
}

// IsPostgres indica se a conexão usa o dialeto PostgreSQL.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// CloseDB fecha a conexão com o banco de dados.
func CloseDB(db *gorm.DB) error {
	if db == nil {
		appLogger.Warn("Tentativa de fechar conexão DB nula.")
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Errorf("Erro ao obter *sql.DB para fechar: %v", err)
		return err
	}
	appLogger.Info("Fechando conexão com o banco de dados...")
	return sqlDB.Close()
}

type DBSessionFunc func(tx *gorm.DB) error

// WithTransaction executa fn dentro de uma transação GORM.
// Faz commit se fn não retornar erro, rollback caso contrário.
func WithTransaction(db *gorm.DB, fn DBSessionFunc) error {
	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("falha ao iniciar transação: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return fmt.Errorf("erro ao executar função (%v) E erro no rollback (%w)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("falha ao commitar transação: %w", err)
	}
	return nil
}
