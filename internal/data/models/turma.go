package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/utils"
)

// CorPadrao é a cor usada quando a turma é criada sem cor.
const CorPadrao = "bg-gradient-primary"

// CoresTurma lista as cores de exibição aceitas e seus rótulos.
var CoresTurma = map[string]string{
	"bg-gradient-primary":   "Azul",
	"bg-gradient-secondary": "Amarelo",
	"bg-gradient-success":   "Verde",
	"bg-gradient-accent":    "Roxo",
}

// DBTurma representa uma turma no banco de dados.
type DBTurma struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nome        string    `gorm:"type:varchar(100);not null"`
	FaixaEtaria string    `gorm:"column:faixa_etaria;type:varchar(50);not null"`
	Cor         string    `gorm:"type:varchar(50);not null"`

	// AlunosCount é um agregado em cache; recalculado após cada escrita que muda a composição da turma.
	AlunosCount int `gorm:"column:alunos_count;not null;default:0"`

	ProfessorID uuid.UUID `gorm:"column:professor_id;type:uuid;not null;index"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime;index"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName especifica o nome da tabela para GORM.
func (DBTurma) TableName() string {
	return "turmas"
}

func (t *DBTurma) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TurmaCreate é usado para criar uma nova turma.
type TurmaCreate struct {
	Nome        string `json:"nome"`
	FaixaEtaria string `json:"faixaEtaria"`
	Cor         string `json:"cor"`
}

// CleanAndValidate normaliza e valida os campos de TurmaCreate.
func (tc *TurmaCreate) CleanAndValidate() error {
	nome, err := cleanTurmaNome(tc.Nome)
	if err != nil {
		return err
	}
	tc.Nome = nome

	faixa, err := cleanFaixaEtaria(tc.FaixaEtaria)
	if err != nil {
		return err
	}
	tc.FaixaEtaria = faixa

	cor := strings.TrimSpace(tc.Cor)
	if cor == "" {
		cor = CorPadrao
	}
	if _, ok := CoresTurma[cor]; !ok {
		return appErrors.NewValidationError("Cor de turma inválida.", map[string]string{"cor": "valor não reconhecido"})
	}
	tc.Cor = cor
	return nil
}

// TurmaUpdate é usado para atualização parcial. Campos nil (ou vazios) não são alterados.
type TurmaUpdate struct {
	Nome        *string `json:"nome,omitempty"`
	FaixaEtaria *string `json:"faixaEtaria,omitempty"`
	Cor         *string `json:"cor,omitempty"`
}

// CleanAndValidate normaliza e valida os campos fornecidos.
// Strings vazias são tratadas como "não fornecido", como no formulário de edição.
func (tu *TurmaUpdate) CleanAndValidate() error {
	if tu.Nome != nil {
		if strings.TrimSpace(*tu.Nome) == "" {
			tu.Nome = nil
		} else {
			nome, err := cleanTurmaNome(*tu.Nome)
			if err != nil {
				return err
			}
			tu.Nome = &nome
		}
	}
	if tu.FaixaEtaria != nil {
		if strings.TrimSpace(*tu.FaixaEtaria) == "" {
			tu.FaixaEtaria = nil
		} else {
			faixa, err := cleanFaixaEtaria(*tu.FaixaEtaria)
			if err != nil {
				return err
			}
			tu.FaixaEtaria = &faixa
		}
	}
	if tu.Cor != nil {
		cor := strings.TrimSpace(*tu.Cor)
		if cor == "" {
			tu.Cor = nil
		} else {
			if _, ok := CoresTurma[cor]; !ok {
				return appErrors.NewValidationError("Cor de turma inválida.", map[string]string{"cor": "valor não reconhecido"})
			}
			tu.Cor = &cor
		}
	}
	return nil
}

// IsEmpty indica se nenhum campo foi fornecido.
func (tu *TurmaUpdate) IsEmpty() bool {
	return tu.Nome == nil && tu.FaixaEtaria == nil && tu.Cor == nil
}

// Changes devolve o mapa coluna -> valor para o UPDATE.
func (tu *TurmaUpdate) Changes() map[string]interface{} {
	updates := make(map[string]interface{})
	if tu.Nome != nil {
		updates["nome"] = *tu.Nome
	}
	if tu.FaixaEtaria != nil {
		updates["faixa_etaria"] = *tu.FaixaEtaria
	}
	if tu.Cor != nil {
		updates["cor"] = *tu.Cor
	}
	return updates
}

func cleanTurmaNome(raw string) (string, error) {
	nome := strings.Join(strings.Fields(raw), " ")
	if nome == "" {
		return "", appErrors.NewValidationError("Nome da turma é obrigatório.", map[string]string{"nome": "obrigatório"})
	}
	if !utils.IsValidPersonName(nome, 2, 100) {
		return "", appErrors.NewValidationError(
			"Nome da turma deve ter entre 2 e 100 caracteres (letras, números, espaços, '.', '-').",
			map[string]string{"nome": "formato inválido"},
		)
	}
	return nome, nil
}

func cleanFaixaEtaria(raw string) (string, error) {
	faixa := strings.TrimSpace(raw)
	if faixa == "" {
		return "", appErrors.NewValidationError("Faixa etária é obrigatória.", map[string]string{"faixaEtaria": "obrigatório"})
	}
	if len([]rune(faixa)) > 50 {
		return "", appErrors.NewValidationError("Faixa etária excede 50 caracteres.", map[string]string{"faixaEtaria": "muito longo"})
	}
	return faixa, nil
}
