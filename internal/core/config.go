package core

import (
	"errors"
	"fmt"
	"log" // Usado antes que o logger da aplicação esteja configurado
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "default_jwt_secret_please_change_this_in_production_12345"

// Config armazena todas as configurações da aplicação.
type Config struct {
	AppName    string
	AppVersion string
	AppDebug   bool

	// Database
	DBEngine   string // postgresql | sqlite | sqlite_puro
	DBName     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string

	// Logging
	LogDir         string
	LogLevel       string
	LogMaxBytes    int
	LogBackupCount int
	LogToConsole   bool

	// Auth & Session
	JWTSecret         string
	JWTIssuer         string
	SessionTimeout    time.Duration
	PasswordMinLength int
	AdminEmails       []string

	// IA
	IAFunctionsURL string
	IAFunctionName string
	IATimeout      time.Duration

	// HTTP
	HTTPAddr    string
	CORSOrigins []string

	// Export
	ExportDir string
}

// LoadConfig carrega as configurações do arquivo .env indicado (ou encontrado na árvore de diretórios)
// e das variáveis de ambiente.
func LoadConfig(envPath string) (*Config, error) {
	foundEnvPath, err := findEnvFile(envPath)
	if err != nil {
		log.Printf("Aviso: arquivo .env não encontrado (%v). Usando variáveis de ambiente e valores padrão.", err)
	} else {
		log.Printf("Carregando configurações de: %s", foundEnvPath)
		if err := godotenv.Load(foundEnvPath); err != nil {
			log.Printf("Aviso: erro ao carregar .env de '%s': %v", foundEnvPath, err)
		}
	}

	cfg := &Config{}

	cfg.AppName = getEnv("APP_NAME", "Diario Infantil GO")
	cfg.AppVersion = getEnv("APP_VERSION", "1.0.0-go")
	cfg.AppDebug = getEnvAsBool("APP_DEBUG", false)

	cfg.DBEngine = strings.ToLower(getEnv("APP_DB_ENGINE", "sqlite_puro"))
	cfg.DBName = getEnv("APP_DB_NAME", "diario_infantil.db")
	cfg.DBHost = getEnv("APP_DB_HOST", "localhost")
	cfg.DBPort = getEnvAsInt("APP_DB_PORT", 5432)
	cfg.DBUser = getEnv("APP_DB_USER", "postgres")
	cfg.DBPassword = getEnv("APP_DB_PASSWORD", "")

	cfg.LogDir = getEnv("APP_LOG_DIR", "./app_logs")
	cfg.LogLevel = strings.ToUpper(getEnv("APP_LOG_LEVEL", "INFO"))
	cfg.LogMaxBytes = getEnvAsInt("APP_LOG_MAX_BYTES", 5*1024*1024) // 5MB
	cfg.LogBackupCount = getEnvAsInt("APP_LOG_BACKUP_COUNT", 7)
	cfg.LogToConsole = getEnvAsBool("APP_LOG_TO_CONSOLE", true)

	cfg.JWTSecret = getEnv("APP_JWT_SECRET", defaultJWTSecret)
	cfg.JWTIssuer = getEnv("APP_JWT_ISSUER", "diario-infantil")
	cfg.SessionTimeout = getEnvAsDuration("APP_SESSION_TIMEOUT", 3600) // 1 hora
	cfg.PasswordMinLength = getEnvAsInt("APP_PASSWORD_MIN_LENGTH", 6)
	cfg.AdminEmails = getEnvAsList("APP_ADMIN_EMAILS", nil)

	cfg.IAFunctionsURL = strings.TrimRight(getEnv("APP_IA_FUNCTIONS_URL", ""), "/")
	cfg.IAFunctionName = getEnv("APP_IA_FUNCTION_NAME", "assistente-ia")
	cfg.IATimeout = getEnvAsDuration("APP_IA_TIMEOUT", 60)

	cfg.HTTPAddr = getEnv("APP_HTTP_ADDR", ":8080")
	cfg.CORSOrigins = getEnvAsList("APP_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg.ExportDir = getEnv("APP_EXPORT_DIR", "./app_exports")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDir(cfg.LogDir, true); err != nil {
		return nil, fmt.Errorf("falha ao criar diretório de log essencial '%s': %w", cfg.LogDir, err)
	}
	if cfg.DBEngine != "postgresql" {
		sqliteDir := filepath.Dir(cfg.DBName)
		if sqliteDir != "." && sqliteDir != string(filepath.Separator) {
			if err := ensureDir(sqliteDir, true); err != nil {
				return nil, fmt.Errorf("falha ao criar diretório para banco SQLite '%s': %w", sqliteDir, err)
			}
		}
	}
	_ = ensureDir(cfg.ExportDir, false)

	log.Println("Configurações carregadas e validadas.")
	return cfg, nil
}

// Validate verifica as regras das configurações críticas.
func (c *Config) Validate() error {
	switch c.DBEngine {
	case "postgresql", "sqlite", "sqlite_puro":
	default:
		return fmt.Errorf("%w: motor de banco de dados não suportado: %s", ErrConfiguration, c.DBEngine)
	}
	if !c.AppDebug && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("%w: APP_JWT_SECRET não pode ser o valor padrão fora do modo debug", ErrConfiguration)
	}
	if len(c.JWTSecret) < 32 && !c.AppDebug {
		log.Printf("AVISO: APP_JWT_SECRET tem menos de 32 caracteres (%d).", len(c.JWTSecret))
	}
	if c.PasswordMinLength < 1 {
		return fmt.Errorf("%w: APP_PASSWORD_MIN_LENGTH deve ser positivo", ErrConfiguration)
	}
	return nil
}

// IsAdminEmail indica se o email está na lista de administradores configurada.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if strings.ToLower(e) == email {
			return true
		}
	}
	return false
}

// findEnvFile tenta localizar o arquivo .env no caminho dado e, depois, subindo a partir do CWD.
func findEnvFile(envPath string) (string, error) {
	if _, err := os.Stat(envPath); err == nil {
		absPath, _ := filepath.Abs(envPath)
		return absPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("não foi possível obter o diretório de trabalho atual: %w", err)
	}

	for i := 0; i < 5; i++ {
		tryPath := filepath.Join(cwd, ".env")
		if _, err := os.Stat(tryPath); err == nil {
			return tryPath, nil
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return "", fmt.Errorf("arquivo .env não encontrado em '%s' ou nos diretórios pais", envPath)
}

// ensureDir garante que um diretório exista. Se critical, falhas viram erro; senão, apenas aviso.
func ensureDir(dirPath string, critical bool) error {
	absPath, err := filepath.Abs(dirPath)
	if err == nil {
		err = os.MkdirAll(absPath, os.ModePerm)
	}
	if err != nil {
		msg := fmt.Sprintf("não foi possível criar o diretório '%s': %v", dirPath, err)
		if critical {
			return errors.New(msg)
		}
		log.Println("AVISO:", msg)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration lê a variável em segundos.
func getEnvAsDuration(key string, fallbackSeconds int) time.Duration {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return time.Duration(value) * time.Second
	}
	return time.Duration(fallbackSeconds) * time.Second
}

// getEnvAsList lê uma lista separada por vírgulas, ignorando itens vazios.
func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
